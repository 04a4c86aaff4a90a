// Package event defines the typed inbound events delivered on the game and chat sockets.
package event

import "time"

// Channel identifies one of the two socket roles.
type Channel string

const (
	ChannelGame Channel = "game"
	ChannelChat Channel = "chat"
)

// Channels lists both roles in connect order.
var Channels = [2]Channel{ChannelGame, ChannelChat}

// Kind identifies an event variant.
type Kind string

const (
	KindMatchState     Kind = "match_state"
	KindNotification   Kind = "notification"
	KindChannelMessage Kind = "channel_message"
	KindPresenceChange Kind = "presence_change"
)

// Event is implemented by every inbound event variant.
type Event interface {
	Kind() Kind
	// Received returns the local time the frame carrying the event was read.
	Received() time.Time
}

// UserPresence describes a user session on a match or chat channel.
type UserPresence struct {
	UserID      string `json:"user_id"`
	SessionID   string `json:"session_id"`
	Username    string `json:"username"`
	Persistence bool   `json:"persistence,omitempty"`
	Status      string `json:"status,omitempty"`
}

// MatchState is realtime match data relayed on the game socket.
type MatchState struct {
	MatchID    string
	OpCode     int64
	Data       []byte
	Presence   *UserPresence // Nil for server-authored state
	Reliable   bool
	ReceivedAt time.Time
}

// Notification is an in-app notification delivered on the game socket.
type Notification struct {
	ID         string
	Subject    string
	Content    string // JSON object as sent by the server
	Code       int
	SenderID   string
	CreateTime time.Time
	Persistent bool
	ReceivedAt time.Time
}

// ChannelMessage is a chat message delivered on the chat socket.
type ChannelMessage struct {
	ChannelID  string
	MessageID  string
	Code       int
	SenderID   string
	Username   string
	Content    string // JSON object as sent by the server
	CreateTime time.Time
	UpdateTime time.Time
	Persistent bool
	RoomName   string
	GroupID    string
	UserIDOne  string
	UserIDTwo  string
	ReceivedAt time.Time
}

// PresenceChange reports users joining and leaving a chat channel.
type PresenceChange struct {
	ChannelID  string
	Joins      []UserPresence
	Leaves     []UserPresence
	RoomName   string
	GroupID    string
	UserIDOne  string
	UserIDTwo  string
	ReceivedAt time.Time
}

func (MatchState) Kind() Kind     { return KindMatchState }
func (Notification) Kind() Kind   { return KindNotification }
func (ChannelMessage) Kind() Kind { return KindChannelMessage }
func (PresenceChange) Kind() Kind { return KindPresenceChange }

func (e MatchState) Received() time.Time     { return e.ReceivedAt }
func (e Notification) Received() time.Time   { return e.ReceivedAt }
func (e ChannelMessage) Received() time.Time { return e.ReceivedAt }
func (e PresenceChange) Received() time.Time { return e.ReceivedAt }

// ChannelOf returns the socket role that carries events of kind k.
func ChannelOf(k Kind) Channel {
	switch k {
	case KindChannelMessage, KindPresenceChange:
		return ChannelChat
	default:
		return ChannelGame
	}
}

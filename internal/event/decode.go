package event

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Wire types for the realtime JSON envelope. Exactly one field is set per frame.

type envelopeWire struct {
	CID                  string               `json:"cid,omitempty"`
	MatchData            *matchDataWire       `json:"match_data,omitempty"`
	Notifications        *notificationsWire   `json:"notifications,omitempty"`
	ChannelMessage       *channelMessageWire  `json:"channel_message,omitempty"`
	ChannelPresenceEvent *channelPresenceWire `json:"channel_presence_event,omitempty"`
	Error                *errorWire           `json:"error,omitempty"`
}

type matchDataWire struct {
	MatchID  string        `json:"match_id"`
	Presence *UserPresence `json:"presence,omitempty"`
	OpCode   json.Number   `json:"op_code"` // int64 is sent as a JSON string
	Data     []byte        `json:"data"`    // base64
	Reliable bool          `json:"reliable"`
}

type notificationsWire struct {
	Notifications []notificationWire `json:"notifications"`
}

type notificationWire struct {
	ID         string    `json:"id"`
	Subject    string    `json:"subject"`
	Content    string    `json:"content"`
	Code       int       `json:"code"`
	SenderID   string    `json:"sender_id"`
	CreateTime time.Time `json:"create_time"`
	Persistent bool      `json:"persistent"`
}

type channelMessageWire struct {
	ChannelID  string    `json:"channel_id"`
	MessageID  string    `json:"message_id"`
	Code       int       `json:"code"`
	SenderID   string    `json:"sender_id"`
	Username   string    `json:"username"`
	Content    string    `json:"content"`
	CreateTime time.Time `json:"create_time"`
	UpdateTime time.Time `json:"update_time"`
	Persistent bool      `json:"persistent"`
	RoomName   string    `json:"room_name"`
	GroupID    string    `json:"group_id"`
	UserIDOne  string    `json:"user_id_one"`
	UserIDTwo  string    `json:"user_id_two"`
}

type channelPresenceWire struct {
	ChannelID string         `json:"channel_id"`
	Joins     []UserPresence `json:"joins"`
	Leaves    []UserPresence `json:"leaves"`
	RoomName  string         `json:"room_name"`
	GroupID   string         `json:"group_id"`
	UserIDOne string         `json:"user_id_one"`
	UserIDTwo string         `json:"user_id_two"`
}

type errorWire struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ServerError is an error envelope sent by the backend on a socket.
type ServerError struct {
	Code    int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Code, e.Message)
}

// Decode parses one socket frame into zero or more events.
// Frames that carry no event this package models (RPC replies, pings) yield
// no events and no error. A server error envelope yields a *ServerError.
func Decode(data []byte, receivedAt time.Time) ([]Event, error) {
	var env envelopeWire
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch {
	case env.MatchData != nil:
		md := env.MatchData
		var opCode int64
		if md.OpCode != "" {
			v, err := strconv.ParseInt(md.OpCode.String(), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("decode match_data op_code: %w", err)
			}
			opCode = v
		}
		return []Event{MatchState{
			MatchID:    md.MatchID,
			OpCode:     opCode,
			Data:       md.Data,
			Presence:   md.Presence,
			Reliable:   md.Reliable,
			ReceivedAt: receivedAt,
		}}, nil

	case env.Notifications != nil:
		events := make([]Event, 0, len(env.Notifications.Notifications))
		for _, n := range env.Notifications.Notifications {
			events = append(events, Notification{
				ID:         n.ID,
				Subject:    n.Subject,
				Content:    n.Content,
				Code:       n.Code,
				SenderID:   n.SenderID,
				CreateTime: n.CreateTime,
				Persistent: n.Persistent,
				ReceivedAt: receivedAt,
			})
		}
		return events, nil

	case env.ChannelMessage != nil:
		m := env.ChannelMessage
		return []Event{ChannelMessage{
			ChannelID:  m.ChannelID,
			MessageID:  m.MessageID,
			Code:       m.Code,
			SenderID:   m.SenderID,
			Username:   m.Username,
			Content:    m.Content,
			CreateTime: m.CreateTime,
			UpdateTime: m.UpdateTime,
			Persistent: m.Persistent,
			RoomName:   m.RoomName,
			GroupID:    m.GroupID,
			UserIDOne:  m.UserIDOne,
			UserIDTwo:  m.UserIDTwo,
			ReceivedAt: receivedAt,
		}}, nil

	case env.ChannelPresenceEvent != nil:
		p := env.ChannelPresenceEvent
		return []Event{PresenceChange{
			ChannelID:  p.ChannelID,
			Joins:      p.Joins,
			Leaves:     p.Leaves,
			RoomName:   p.RoomName,
			GroupID:    p.GroupID,
			UserIDOne:  p.UserIDOne,
			UserIDTwo:  p.UserIDTwo,
			ReceivedAt: receivedAt,
		}}, nil

	case env.Error != nil:
		return nil, &ServerError{Code: env.Error.Code, Message: env.Error.Message}
	}

	return nil, nil
}

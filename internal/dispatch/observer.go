package dispatch

import (
	"log/slog"

	"github.com/rickgao/gamelink/internal/event"
)

// Observer receives dispatched events.
type Observer interface {
	Observe(ev event.Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev event.Event)

func (f ObserverFunc) Observe(ev event.Event) { f(ev) }

// Funcs adapts typed callbacks to Observer. Nil callbacks are skipped.
type Funcs struct {
	OnMatchState     func(event.MatchState)
	OnNotification   func(event.Notification)
	OnChannelMessage func(event.ChannelMessage)
	OnPresenceChange func(event.PresenceChange)
}

func (f Funcs) Observe(ev event.Event) {
	switch e := ev.(type) {
	case event.MatchState:
		if f.OnMatchState != nil {
			f.OnMatchState(e)
		}
	case event.Notification:
		if f.OnNotification != nil {
			f.OnNotification(e)
		}
	case event.ChannelMessage:
		if f.OnChannelMessage != nil {
			f.OnChannelMessage(e)
		}
	case event.PresenceChange:
		if f.OnPresenceChange != nil {
			f.OnPresenceChange(e)
		}
	}
}

// LogObserver logs every event at info level.
func LogObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}

	return Funcs{
		OnMatchState: func(e event.MatchState) {
			logger.Info("match state",
				"match_id", e.MatchID,
				"op_code", e.OpCode,
				"bytes", len(e.Data),
			)
		},
		OnNotification: func(e event.Notification) {
			logger.Info("notification", "id", e.ID, "subject", e.Subject, "code", e.Code)
		},
		OnChannelMessage: func(e event.ChannelMessage) {
			logger.Info("channel message",
				"channel_id", e.ChannelID,
				"message_id", e.MessageID,
				"username", e.Username,
			)
		},
		OnPresenceChange: func(e event.PresenceChange) {
			logger.Info("channel presence",
				"channel_id", e.ChannelID,
				"joins", len(e.Joins),
				"leaves", len(e.Leaves),
			)
		},
	}
}

package notify

import (
	"errors"
	"fmt"

	"github.com/reedfamily/gamewatch/internal/source"
)

var (
	// ErrChannelUnset means no destination channel is configured. Callers
	// treat it as "nothing visible happened", not as a surfaced failure.
	ErrChannelUnset = errors.New("notify: channel not configured")
	// ErrMessageNotFound is returned by chat senders when the message to
	// edit no longer exists.
	ErrMessageNotFound = errors.New("notify: message not found")
)

// ChatSender is the minimal chat surface the dispatcher writes through.
// internal/discord provides the production implementation.
type ChatSender interface {
	SendMessage(channelID, content string) (messageID string, err error)
	EditMessage(channelID, messageID, content string) error
	SetPresence(status string) error
}

// Dispatcher mediates all writes to the chat surface.
type Dispatcher struct {
	chat ChatSender
}

func NewDispatcher(chat ChatSender) *Dispatcher {
	return &Dispatcher{chat: chat}
}

// PostBan announces one newly detected ban.
func (d *Dispatcher) PostBan(rec source.BanRecord, channelID string) error {
	if channelID == "" {
		return ErrChannelUnset
	}
	if _, err := d.chat.SendMessage(channelID, formatBan(rec)); err != nil {
		return fmt.Errorf("post ban %s: %w", rec.ID, err)
	}
	return nil
}

// PostOrEditStatus renders the sample into the status message. When a
// previous message reference exists it is edited in place; if that message
// is gone a fresh one is posted. Returns the reference of the message now
// holding the status.
func (d *Dispatcher) PostOrEditStatus(s *source.PerformanceSample, channelID, prevID string) (string, error) {
	if channelID == "" {
		return "", ErrChannelUnset
	}
	content := formatStatus(s)

	if prevID != "" {
		err := d.chat.EditMessage(channelID, prevID, content)
		if err == nil {
			return prevID, nil
		}
		if !errors.Is(err, ErrMessageNotFound) {
			return "", fmt.Errorf("edit status message: %w", err)
		}
	}

	id, err := d.chat.SendMessage(channelID, content)
	if err != nil {
		return "", fmt.Errorf("post status message: %w", err)
	}
	return id, nil
}

// UpdatePresence sets the short player-count status string.
func (d *Dispatcher) UpdatePresence(players, maxPlayers int) error {
	return d.chat.SetPresence(fmt.Sprintf("%d/%d Playing", players, maxPlayers))
}

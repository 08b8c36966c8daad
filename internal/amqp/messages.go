package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const dayLayout = "2006-01-02"

// Sync scopes understood by the worker.
const (
	ScopePersonal = "personal"
	ScopeFamily   = "family"
)

var ErrInvalidMessage = errors.New("invalid sync message")

// FeedSyncMessage asks the worker to mirror a window of remote transactions.
// From and To are inclusive calendar days; empty means the worker default.
type FeedSyncMessage struct {
	ID          string    `json:"id"`
	Scope       string    `json:"scope"`
	Owner       string    `json:"owner,omitempty"`
	From        string    `json:"from,omitempty"`
	To          string    `json:"to,omitempty"`
	RequestedBy string    `json:"requested_by,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewFeedSyncMessage creates a sync request with a fresh id.
func NewFeedSyncMessage(scope string, from, to time.Time, requestedBy string) *FeedSyncMessage {
	msg := &FeedSyncMessage{
		ID:          uuid.NewString(),
		Scope:       scope,
		RequestedBy: requestedBy,
		Timestamp:   time.Now(),
	}
	if !from.IsZero() {
		msg.From = from.Format(dayLayout)
	}
	if !to.IsZero() {
		msg.To = to.Format(dayLayout)
	}
	return msg
}

// Validate checks the scope and the window.
func (m *FeedSyncMessage) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidMessage)
	}
	if m.Scope != ScopePersonal && m.Scope != ScopeFamily {
		return fmt.Errorf("%w: scope %q", ErrInvalidMessage, m.Scope)
	}
	from, to, err := m.Window()
	if err != nil {
		return err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return fmt.Errorf("%w: window ends before it starts", ErrInvalidMessage)
	}
	return nil
}

// Window parses From and To. Missing bounds are zero.
func (m *FeedSyncMessage) Window() (from, to time.Time, err error) {
	if m.From != "" {
		if from, err = time.Parse(dayLayout, m.From); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: from %q", ErrInvalidMessage, m.From)
		}
	}
	if m.To != "" {
		if to, err = time.Parse(dayLayout, m.To); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: to %q", ErrInvalidMessage, m.To)
		}
	}
	return from, to, nil
}

// ToJSON converts the message to JSON bytes
func (m *FeedSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FeedSyncMessageFromJSON decodes and validates a message.
func FeedSyncMessageFromJSON(data []byte) (*FeedSyncMessage, error) {
	var msg FeedSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Package messaging holds the transport-neutral shapes exchanged between the
// dispatcher and a chat transport
package messaging

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/example/matchbot/pkg/models"
)

// EventMessageNew is the only event type the bot reacts to
const EventMessageNew = "message_new"

// Event is an inbound message addressed to the bot
type Event struct {
	Type     string
	FromSelf bool
	Text     string
	SenderID int64
	// Payload is the raw JSON attached to a tapped button, if any
	Payload string
	// Profile is filled by transports that know the sender's name without a
	// directory lookup
	Profile *models.User
}

// NormalizedText is the text trimmed and lower-cased for command matching
func (e Event) NormalizedText() string {
	return strings.ToLower(strings.TrimSpace(e.Text))
}

// Message is an outbound reply
type Message struct {
	RecipientID int64
	Text        string
	Keyboard    *Keyboard
	// Attachment is a VK attachment reference such as photo123_456
	Attachment string
	// PhotoURL is a direct link to the same photo for transports that cannot
	// use VK attachment references
	PhotoURL string
}

// Sender delivers messages
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Handler processes one inbound event
type Handler func(ctx context.Context, ev Event)

// Transport is a two-way chat connection
type Transport interface {
	Sender
	// Listen blocks, feeding events to h until ctx is cancelled or the
	// connection fails
	Listen(ctx context.Context, h Handler) error
}

// Payload is the JSON carried by buttons
type Payload struct {
	Command string `json:"command"`
	Index   *int   `json:"index,omitempty"`
}

// ParsePayload decodes a button payload. ok is false for empty or malformed
// input. An index that is not an integer is dropped, keeping the command
func ParsePayload(raw string) (p Payload, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Payload{}, false
	}
	var wire struct {
		Command string          `json:"command"`
		Index   json.RawMessage `json:"index"`
	}
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return Payload{}, false
	}
	p.Command = wire.Command
	var idx *int
	if len(wire.Index) > 0 && json.Unmarshal(wire.Index, &idx) == nil {
		p.Index = idx
	}
	return p, p.Command != ""
}

// Encode renders the payload as the JSON string buttons carry
func (p Payload) Encode() string {
	data, _ := json.Marshal(p)
	return string(data)
}

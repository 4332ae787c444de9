package messaging

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Platform limits for keyboards
const (
	MaxButtonsPerRow = 5
	MaxRows          = 10
	MaxInlineRows    = 6
)

// Button colors understood by VK
const (
	ColorPrimary   = "primary"
	ColorSecondary = "secondary"
	ColorNegative  = "negative"
	ColorPositive  = "positive"
)

// Action is a single text button
type Action struct {
	Label   string `json:"label"`
	Color   string `json:"color,omitempty"`
	Payload string `json:"payload,omitempty"`
}

// Keyboard is a button layout attached to a message
type Keyboard struct {
	OneTime bool
	Inline  bool
	Rows    [][]Action
}

type keyboardJSON struct {
	OneTime *bool           `json:"one_time"`
	Inline  bool            `json:"inline"`
	Actions json.RawMessage `json:"actions"`
}

// UnmarshalJSON accepts "actions" as a flat list (one row) or a list of rows.
// one_time defaults to true
func (k *Keyboard) UnmarshalJSON(data []byte) error {
	var raw keyboardJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	k.OneTime = true
	if raw.OneTime != nil {
		k.OneTime = *raw.OneTime
	}
	k.Inline = raw.Inline
	k.Rows = nil

	actions := bytes.TrimSpace(raw.Actions)
	if len(actions) == 0 || bytes.Equal(actions, []byte("null")) {
		return nil
	}

	var rows [][]Action
	if err := json.Unmarshal(actions, &rows); err == nil {
		k.Rows = rows
		return nil
	}
	var flat []Action
	if err := json.Unmarshal(actions, &flat); err != nil {
		return fmt.Errorf("actions must be a list of buttons or a list of rows: %w", err)
	}
	if len(flat) > 0 {
		k.Rows = [][]Action{flat}
	}
	return nil
}

// Validate checks the layout against platform limits
func (k *Keyboard) Validate() error {
	maxRows := MaxRows
	if k.Inline {
		maxRows = MaxInlineRows
	}
	if len(k.Rows) > maxRows {
		return fmt.Errorf("too many rows: %d > %d", len(k.Rows), maxRows)
	}
	for i, row := range k.Rows {
		if len(row) == 0 {
			return fmt.Errorf("row %d is empty", i)
		}
		if len(row) > MaxButtonsPerRow {
			return fmt.Errorf("row %d has %d buttons, max %d", i, len(row), MaxButtonsPerRow)
		}
		for j, a := range row {
			if a.Label == "" {
				return fmt.Errorf("button %d in row %d has no label", j, i)
			}
			switch a.Color {
			case "", ColorPrimary, ColorSecondary, ColorNegative, ColorPositive:
			default:
				return fmt.Errorf("button %q has unknown color %q", a.Label, a.Color)
			}
			if a.Payload != "" && !json.Valid([]byte(a.Payload)) {
				return fmt.Errorf("button %q has invalid payload", a.Label)
			}
		}
	}
	return nil
}

// Clone returns a deep copy so callers can modify payloads safely
func (k *Keyboard) Clone() *Keyboard {
	if k == nil {
		return nil
	}
	out := &Keyboard{OneTime: k.OneTime, Inline: k.Inline, Rows: make([][]Action, len(k.Rows))}
	for i, row := range k.Rows {
		out.Rows[i] = append([]Action(nil), row...)
	}
	return out
}

// WithIndex returns a copy where every button whose payload command equals
// command carries index
func (k *Keyboard) WithIndex(command string, index int) *Keyboard {
	out := k.Clone()
	if out == nil {
		return nil
	}
	for i, row := range out.Rows {
		for j, a := range row {
			p, ok := ParsePayload(a.Payload)
			if !ok || p.Command != command {
				continue
			}
			idx := index
			p.Index = &idx
			out.Rows[i][j].Payload = p.Encode()
		}
	}
	return out
}

// HasPayloads reports whether any button carries a payload
func (k *Keyboard) HasPayloads() bool {
	if k == nil {
		return false
	}
	for _, row := range k.Rows {
		for _, a := range row {
			if a.Payload != "" {
				return true
			}
		}
	}
	return false
}

// UnmarshalJSON accepts the payload either as a JSON object or as a string
// holding JSON
func (a *Action) UnmarshalJSON(data []byte) error {
	var raw struct {
		Label   string          `json:"label"`
		Color   string          `json:"color"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	a.Label, a.Color, a.Payload = raw.Label, raw.Color, ""

	payload := bytes.TrimSpace(raw.Payload)
	switch {
	case len(payload) == 0, bytes.Equal(payload, []byte("null")):
	case payload[0] == '"':
		if err := json.Unmarshal(payload, &a.Payload); err != nil {
			return err
		}
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, payload); err != nil {
			return err
		}
		a.Payload = buf.String()
	}
	return nil
}

package vk

import (
	"encoding/json"

	"github.com/SevereCloud/vksdk/v2/object"
	"github.com/example/matchbot/internal/messaging"
)

// buildKeyboard converts a keyboard into the one messages.send expects.
// Inline keyboards can't be one-time
func buildKeyboard(kb *messaging.Keyboard) *object.MessagesKeyboard {
	var out *object.MessagesKeyboard
	if kb.Inline {
		out = object.NewMessagesKeyboardInline()
	} else {
		out = object.NewMessagesKeyboard(object.BaseBoolInt(kb.OneTime))
	}
	for _, row := range kb.Rows {
		out.AddRow()
		for _, a := range row {
			color := a.Color
			if color == "" {
				color = messaging.ColorSecondary
			}
			var payload interface{}
			if a.Payload != "" {
				payload = json.RawMessage(a.Payload)
			}
			out.AddTextButton(a.Label, payload, color)
		}
	}
	return out
}

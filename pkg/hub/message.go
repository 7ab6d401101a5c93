// Package hub fans session events and camera previews out to dashboard
// websocket clients.
package hub

import (
	"encoding/json"

	"github.com/gofiber/websocket/v2"
)

// Message is one websocket frame queued for every client. Binary frames
// carry JPEG previews; everything else is JSON text.
type Message struct {
	Binary bool
	Data   []byte
}

// JSON encodes v into a text frame.
func JSON(v any) (Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Message{}, err
	}
	return Message{Data: data}, nil
}

// JPEG wraps an encoded preview frame.
func JPEG(data []byte) Message {
	return Message{Binary: true, Data: data}
}

func (m Message) frameType() int {
	if m.Binary {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

package entity

import "encoding/json"

// Frame types pushed over a live connection.
const (
	FrameMessage  = "message"
	FrameAck      = "ack"
	FramePresence = "presence"
)

// Frame is the envelope for everything pushed to a client.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EncodeFrame marshals v into a typed frame ready for a send queue.
func EncodeFrame(frameType string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Type: frameType, Data: data})
}

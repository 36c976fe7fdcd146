package websocket

// ErrorPayload is pushed back to the offending connection when an
// inbound frame is rejected.
type ErrorPayload struct {
	Message string `json:"message"`
}

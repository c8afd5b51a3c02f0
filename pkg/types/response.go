package types

// ErrorEnvelope is the wire shape for every failed request. The error field
// carries a human-readable message; code is the stable machine identifier.
type ErrorEnvelope struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// ListEnvelope wraps collection responses with an optional next-page cursor.
type ListEnvelope struct {
	Data       any    `json:"data"`
	NextCursor string `json:"next_cursor,omitempty"`
}

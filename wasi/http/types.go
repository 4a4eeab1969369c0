package http

// RequestEnvelope is the JSON form of an HTTP request crossing the guest
// boundary, in both directions: inbound events hand one to the guest,
// outbound fetch receives one from it.
type RequestEnvelope struct {
	Method  string            `json:"method"`
	URI     string            `json:"uri"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    []byte            `json:"body,omitempty"`
}

// ResponseEnvelope is the JSON form of an HTTP response crossing the
// guest boundary.
type ResponseEnvelope struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    []byte            `json:"body,omitempty"`
	Error   *ErrorEnvelope    `json:"error,omitempty"`
}

// ErrorEnvelope carries a transport failure to the guest with its stable
// code string.
type ErrorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

package utils

// Envelope is the JSON body every handler writes: a status tag, a
// short human message and either the payload or an error detail.
type Envelope struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func SuccessResponse(message string, data interface{}) Envelope {
	return Envelope{Status: "ok", Message: message, Data: data}
}

func ErrorResponse(message, detail string) Envelope {
	return Envelope{Status: "error", Message: message, Error: detail}
}

package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/goliatone/go-orderfeed/core"
)

type errorBody struct {
	OK         bool         `json:"ok"`
	Error      string       `json:"error"`
	Code       string       `json:"code"`
	StatusCode int          `json:"status_code,omitempty"`
	Validation []fieldError `json:"validation,omitempty"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError renders err through the error envelope. Remote status codes
// kept in error metadata are echoed as status_code.
func writeError(w http.ResponseWriter, err error) {
	envelope := core.ToErrorEnvelope(err)
	body := errorBody{
		Error:      envelope.Message,
		Code:       envelope.TextCode,
		StatusCode: core.RemoteStatusCode(err),
	}
	for _, field := range envelope.AllValidationErrors() {
		body.Validation = append(body.Validation, fieldError{Field: field.Field, Message: field.Message})
	}
	if len(body.Validation) > 0 && body.Error == "" {
		body.Error = body.Validation[0].Message
	}
	writeJSON(w, envelope.Code, body)
}

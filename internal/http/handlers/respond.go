package handlers

import (
	"encoding/json"
	"net/http"
)

// respondJSON writes value as pretty-printed JSON with status, matching the
// wire contract's "objects and arrays are returned JSON pretty-printed"
// rule. A nil value writes status with an empty body instead of the literal
// "null".
func respondJSON(w http.ResponseWriter, status int, value any) {
	if value == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(value)
}

// respondRaw writes body as application/octet-stream, used for the scalar
// (single message body, single attribute value) response shape.
func respondRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// respondEmpty writes a bare status with no body, used for 204 No Content
// and 201 Created-with-no-representation responses.
func respondEmpty(w http.ResponseWriter, status int) {
	w.WriteHeader(status)
}

type errorBody struct {
	Error string `json:"error"`
}

// respondError writes a JSON {"error": message} body with status.
func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: message})
}

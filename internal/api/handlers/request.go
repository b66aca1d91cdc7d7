package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/schema"
)

const maxBodyBytes = 1 << 20

var queryDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

// decodeJSON reads the request body into T. The error is already reported to
// the client when ok is false.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var data T
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		slog.Debug("error parsing request body", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return data, false
	}
	return data, true
}

func decodeQuery[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var data T
	if err := queryDecoder.Decode(&data, r.URL.Query()); err != nil {
		slog.Debug("error decoding query params", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadRequest, "Invalid query parameters")
		return data, false
	}
	return data, true
}

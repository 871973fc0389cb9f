package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
)

const maxBodyBytes = 64 << 10

var errBadBody = errors.New("invalid request body")

// decodeJSON reads a single JSON object from the body. An empty body
// decodes as an empty object.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errBadBody
	}
	if dec.More() {
		return errBadBody
	}
	return nil
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, key string) (int, bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

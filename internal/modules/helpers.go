package modules

import (
	"bytes"
	"encoding/json"

	"github.com/go-faster/errors"
)

// ToJSON marshals any value to a compact JSON string without HTML escaping.
// Used by module handlers to serialize structured tool results.
func ToJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", errors.Wrap(err, "failed to marshal response")
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

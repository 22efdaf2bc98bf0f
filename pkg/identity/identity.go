// Package identity implements the reversible encoding used for workspace
// names in the Authorization header, for session tokens and for stored
// passwords.
//
// The encoding is plain base64. It obscures values in transit and at rest but
// offers no confidentiality: anyone holding a token can recover the name.
package identity

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrMalformed is returned when a value is not valid encoded text
var ErrMalformed = errors.New("malformed identity encoding")

// Encode returns the padded base64 form of s
func Encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// Decode reverses Encode. Whitespace is ignored and the trailing padding may
// be omitted.
func Decode(s string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	enc := base64.StdEncoding
	if !strings.HasSuffix(cleaned, "=") && len(cleaned)%4 != 0 {
		enc = base64.RawStdEncoding
	}

	out, err := enc.DecodeString(cleaned)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return string(out), nil
}

// Package charset normalizes input text to UTF-8.
// MIMIC exports and hand-edited drug lists come in both UTF-8 and ISO-8859-1.
package charset

import (
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Decode returns b as UTF-8. Valid UTF-8 is returned unchanged,
// anything else is decoded from ISO-8859-1.
func Decode(b []byte) ([]byte, error) {
	if utf8.Valid(b) {
		return b, nil
	}

	out, err := io.ReadAll(charmap.ISO8859_1.NewDecoder().Reader(bytes.NewReader(b)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode ISO-8859-1 input: %w", err)
	}
	return out, nil
}

// ReadAll reads r fully and decodes it with Decode
func ReadAll(r io.Reader) ([]byte, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Decode(b)
}

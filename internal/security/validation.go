package security

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Limits for webhook update bodies. Real updates are a few kilobytes and
// rarely nest deeper than eight levels (reply_to_message inside a message
// inside an update).
const (
	DefaultMaxMessageSize = 1 << 20
	DefaultMaxJSONDepth   = 32
)

var (
	ErrMessageTooLarge = errors.New("update exceeds maximum size")
	ErrJSONTooDeep     = errors.New("update nests too deeply")
	ErrInvalidJSON     = errors.New("update is not a JSON object")
)

// ValidateUpdate checks a raw webhook body before it is decoded: at most
// maxSize bytes (DefaultMaxMessageSize when maxSize <= 0), a single JSON
// object, nested no deeper than DefaultMaxJSONDepth.
func ValidateUpdate(data []byte, maxSize int) error {
	if maxSize <= 0 {
		maxSize = DefaultMaxMessageSize
	}
	if len(data) > maxSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrMessageTooLarge, len(data), maxSize)
	}
	return scanObject(data, DefaultMaxJSONDepth)
}

// scanObject walks the tokens of data without building values.
func scanObject(data []byte, maxDepth int) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	first, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}
	if first != json.Delim('{') {
		return fmt.Errorf("%w: starts with %v", ErrInvalidJSON, first)
	}

	for depth := 1; depth > 0; {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return fmt.Errorf("%w: %w", ErrInvalidJSON, err)
		}
		switch tok {
		case json.Delim('{'), json.Delim('['):
			if depth++; depth > maxDepth {
				return fmt.Errorf("%w: depth %d (max %d)", ErrJSONTooDeep, depth, maxDepth)
			}
		case json.Delim('}'), json.Delim(']'):
			depth--
		}
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data", ErrInvalidJSON)
	}
	return nil
}

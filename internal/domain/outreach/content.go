package outreach

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// EmailContent is the finalized message handed to an email provider.
type EmailContent struct {
	Subject  string `json:"subject"`
	BodyHTML string `json:"body_html"`
	BodyText string `json:"body_text"`
}

// CallContent is the script handed to a voice provider for text-to-speech.
type CallContent struct {
	Script string `json:"script"`
}

// ContentHash returns the SHA-256 hex digest of the given content parts.
// Attempts carrying the same hash are duplicates by definition, which is the
// dedup target under the at-least-once delivery model.
func ContentHash(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{'|'})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// EncodeContent serializes content payloads for approval queue storage.
func EncodeContent(v interface{}) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding content: %w", err)
	}
	return raw, nil
}

package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskStringEmails(t *testing.T) {
	masked := MaskString("sent to owner@example.com today")
	assert.Equal(t, "sent to ow***@example.com today", masked)
}

func TestMaskStringPhones(t *testing.T) {
	masked := MaskString("called +1 (555) 123-4567")
	assert.Equal(t, "called +1***4567", masked)
}

func TestMaskDetailsRedactsSecrets(t *testing.T) {
	details := map[string]interface{}{
		"api_key":  "sk-1234567890abcdef",
		"password": "short",
		"to":       "owner@example.com",
		"nested": map[string]interface{}{
			"auth_token": "tok-aaaa-bbbb-cccc",
		},
		"count": 3,
	}

	masked := MaskDetails(details)
	assert.Equal(t, "sk-1...cdef", masked["api_key"])
	assert.Equal(t, "****", masked["password"])
	assert.Equal(t, "ow***@example.com", masked["to"])
	assert.Equal(t, 3, masked["count"])

	nested := masked["nested"].(map[string]interface{})
	assert.Equal(t, "tok-...cccc", nested["auth_token"])

	// Input is not mutated.
	assert.Equal(t, "sk-1234567890abcdef", details["api_key"])
}

package outreach

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectIntent(t *testing.T) {
	tests := []struct {
		name       string
		transcript string
		want       Intent
	}{
		{"empty transcript", "", IntentUnknown},
		{"interested", "Yes, tell me more about it", IntentInterested},
		{"not interested", "not interested, thank you", IntentNotInterested},
		{"remove wins over interested", "yes please just remove me from your list", IntentRemove},
		{"stop keyword", "please STOP calling this number", IntentRemove},
		{"do not call", "do not call us again", IntentRemove},
		{"call back", "I'm busy now, try another time", IntentCallBack},
		{"talk to human", "can I speak to someone, a real person", IntentTalkToHuman},
		{"now is not a refusal", "yes, call me now", IntentInterested},
		{"know is not a refusal", "I know about it, tell me more", IntentInterested},
		{"nothing is not a refusal", "there is nothing else I need", IntentUnknown},
		{"bare refusal", "no, thank you", IntentNotInterested},
		{"unrelated speech", "the weather is nice today", IntentUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectIntent(tt.transcript))
		})
	}
}

func TestContentHashStable(t *testing.T) {
	a := ContentHash("subject", "body")
	b := ContentHash("subject", "body")
	c := ContentHash("subject", "different body")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

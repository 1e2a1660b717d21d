package outreach

import (
	"strings"
	"unicode"
)

// Intent is the disposition extracted from a call transcript.
type Intent string

const (
	IntentInterested    Intent = "interested"
	IntentNotInterested Intent = "not_interested"
	IntentRemove        Intent = "remove"
	IntentCallBack      Intent = "call_back"
	IntentTalkToHuman   Intent = "talk_to_human"
	IntentUnknown       Intent = "unknown"
)

// intentKeywords maps each intent to its trigger phrases. Order matters:
// remove is checked first so "stop, not interested" still opts the contact
// out, and talk_to_human beats the bare "yes"/"okay" of interested.
var intentKeywords = []struct {
	intent   Intent
	keywords []string
}{
	{IntentRemove, []string{"remove", "stop", "do not call", "don't call", "unsubscribe"}},
	{IntentTalkToHuman, []string{"human", "person", "representative", "agent", "speak to someone"}},
	{IntentCallBack, []string{"call back", "later", "another time", "busy now"}},
	{IntentNotInterested, []string{"no", "not interested", "no thanks", "not now"}},
	{IntentInterested, []string{"yes", "interested", "tell me more", "sounds good", "okay"}},
}

// DetectIntent matches transcript text against the fixed keyword taxonomy.
// Matching is whole-word so a short keyword like "no" cannot fire inside
// "now" or "know".
func DetectIntent(transcript string) Intent {
	words := tokenize(transcript)
	if len(words) == 0 {
		return IntentUnknown
	}
	for _, group := range intentKeywords {
		for _, kw := range group.keywords {
			if containsPhrase(words, tokenize(kw)) {
				return group.intent
			}
		}
	}
	return IntentUnknown
}

// tokenize lowercases and splits on anything that is not a letter, digit, or
// apostrophe. The apostrophe stays so "don't" survives as one word.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// containsPhrase reports whether phrase appears as a contiguous run of words.
func containsPhrase(words, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(words) {
		return false
	}
	for i := 0; i+len(phrase) <= len(words); i++ {
		match := true
		for j, p := range phrase {
			if words[i+j] != p {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

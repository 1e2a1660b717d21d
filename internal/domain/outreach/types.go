package outreach

// Channel identifies an outreach medium.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelCall  Channel = "call"
)

// ParseChannel validates a channel string from configuration or the API.
func ParseChannel(s string) (Channel, bool) {
	switch Channel(s) {
	case ChannelEmail, ChannelCall:
		return Channel(s), true
	}
	return "", false
}

// ContactType returns the opt-out contact type backing the channel.
func (c Channel) ContactType() string {
	if c == ChannelCall {
		return "phone"
	}
	return "email"
}

// AttemptStatus tracks the lifecycle of a single send.
type AttemptStatus string

const (
	StatusPending   AttemptStatus = "pending"
	StatusSent      AttemptStatus = "sent"
	StatusFailed    AttemptStatus = "failed"
	StatusDelivered AttemptStatus = "delivered"
	StatusBounced   AttemptStatus = "bounced"
)

// CallOutcome is the terminal disposition of a placed call. Every outcome
// below counts as "contacted" for cooldown purposes.
type CallOutcome string

const (
	OutcomeAnswered  CallOutcome = "answered"
	OutcomeVoicemail CallOutcome = "voicemail"
	OutcomeBusy      CallOutcome = "busy"
	OutcomeNoAnswer  CallOutcome = "no-answer"
	OutcomeFailed    CallOutcome = "failed"
)

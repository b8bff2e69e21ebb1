package models

import "time"

// OTP delivery channels.
const (
	ChannelSMS   = "sms"
	ChannelEmail = "email"
)

// OTPRecord stores a one-time code issued for an identifier. Only the
// bcrypt hash of the code is persisted; the raw code never leaves the
// dispatch path.
type OTPRecord struct {
	ID         string
	Identifier string // phone number or email address
	Channel    string
	CodeHash   string
	Attempts   int
	CreatedAt  time.Time
	ExpiresAt  time.Time
	ConsumedAt *time.Time
}

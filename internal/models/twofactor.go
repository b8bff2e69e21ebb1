package models

import "time"

// Two-factor methods.
const (
	TwoFactorMethodTOTP = "totp"
)

// BackupCodeEntry is a single-use recovery code, stored bcrypt-hashed.
type BackupCodeEntry struct {
	CodeHash  string     `json:"code_hash"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// TwoFactorSecret holds a user's second-factor enrollment.
//
// Lifecycle: a Setup call creates the row with Pending=true and Enabled=false;
// the first successful verification flips it to Enabled. Disabling requires a
// currently valid code and deletes the row.
type TwoFactorSecret struct {
	ID              string
	UserID          string
	Method          string
	SecretEncrypted []byte
	SecretNonce     []byte
	BackupCodes     []BackupCodeEntry
	Enabled         bool
	Pending         bool
	CreatedAt       time.Time
	ActivatedAt     *time.Time
	LastUsedAt      *time.Time
}

// UnusedBackupCodes returns the number of backup codes still available.
func (t *TwoFactorSecret) UnusedBackupCodes() int {
	n := 0
	for _, c := range t.BackupCodes {
		if c.UsedAt == nil {
			n++
		}
	}
	return n
}

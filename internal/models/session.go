package models

import "time"

// Session tracks one login per (user, device). A new login on the same
// device updates the existing active row instead of inserting a duplicate.
type Session struct {
	ID             string     `json:"sessionId"`
	UserID         string     `json:"userId"`
	DeviceID       string     `json:"deviceId"`
	DeviceType     string     `json:"deviceType,omitempty"`
	DeviceName     string     `json:"deviceName,omitempty"`
	PushToken      string     `json:"-"`
	RefreshTokenID string     `json:"-"` // jti of the refresh token bound to this session
	IPAddress      string     `json:"ipAddress"`
	UserAgent      string     `json:"-"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastActiveAt   time.Time  `json:"lastActiveAt"`
	ExpiresAt      time.Time  `json:"expiresAt"`
	IsActive       bool       `json:"isActive"`
	RevokedAt      *time.Time `json:"revokedAt,omitempty"`
	RevokedReason  *string    `json:"revokedReason,omitempty"`
}

// Live reports whether the session can still back a refresh token.
func (s *Session) Live(now time.Time) bool {
	return s.IsActive && now.Before(s.ExpiresAt)
}

// ClientInfo describes the calling client, extracted from the request.
type ClientInfo struct {
	IPAddress  string
	UserAgent  string
	DeviceID   string
	DeviceType string
	DeviceName string
	PushToken  string
}

package models

import "time"

// NotificationSettings holds a user's per-event notification switches,
// keyed by platform user id.
type NotificationSettings struct {
	UserPlatformID   int64     `json:"user_platform_id"`
	NotifyOnComplete bool      `json:"notify_on_complete"`
	NotifyOnError    bool      `json:"notify_on_error"`
	UpdatedAt        time.Time `json:"updated_at"`
}

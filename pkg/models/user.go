package models

import "time"

// User is a platform identity. Users are created on first contact and
// updated in place on every subsequent contact (upsert by PlatformID);
// they are never hard-deleted.
type User struct {
	ID         int64     `json:"id"`
	PlatformID int64     `json:"platform_id"` // unique platform identity id
	Username   string    `json:"username"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}

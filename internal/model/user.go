package model

import "time"

// AccessAll is the administrative wildcard access level.
const AccessAll = "all"

// User represents an authenticated user in the system.
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Email        string    `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string    `json:"-" gorm:"size:255;not null"` // Never expose in JSON
	FullName     string    `json:"full_name,omitempty" gorm:"size:255"`
	AccessLevel  string    `json:"access_level" gorm:"size:50;not null;default:'setosa'"`
	Active       bool      `json:"is_active" gorm:"default:true;index"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

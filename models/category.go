package models

import "time"

// Category is immutable reference data. ID is the client-side slug; Name is
// the display label and the semantic key the stock store partitions by, so it
// must match stock rows exactly (case and diacritics included).
type Category struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"uniqueIndex;not null"`
	Group     string    `json:"group" gorm:"not null"`
	Prompt    string    `json:"prompt"`
	ImageURL  string    `json:"image_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

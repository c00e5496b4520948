package models

import (
	"time"

	"gorm.io/gorm"
)

// StockQuestion is a pre-authored question in the stock, partitioned by
// category display name and points. Sources holds a JSON-encoded list of
// grounding citations when the row came out of the authoring pipeline.
type StockQuestion struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	Category     string         `json:"category" gorm:"index:idx_stock_cat_points;not null"`
	Points       int            `json:"points" gorm:"index:idx_stock_cat_points;not null"`
	QuestionText string         `json:"question_text" gorm:"not null"`
	AnswerText   string         `json:"answer_text" gorm:"not null"`
	MediaURL     string         `json:"media_url"`
	MediaType    string         `json:"media_type"`
	Sources      string         `json:"sources"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}

// QuestionUsage marks a stock question as consumed for one user key, so it is
// excluded from that user's future fetches.
type QuestionUsage struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	UserKey         string    `json:"user_key" gorm:"uniqueIndex:idx_usage_user_question;not null"`
	StockQuestionID uint      `json:"stock_question_id" gorm:"uniqueIndex:idx_usage_user_question;not null"`
	Category        string    `json:"category" gorm:"index"`
	CreatedAt       time.Time `json:"created_at"`
}

package models

import "fmt"

// QuestionStatus is the lifecycle of a board cell. A question is created
// unplayed, opened once, then answered exactly once; the answered states are
// terminal.
type QuestionStatus string

const (
	StatusUnplayed          QuestionStatus = "unplayed"
	StatusOpened            QuestionStatus = "opened"
	StatusAnsweredCorrect   QuestionStatus = "answered-correct"
	StatusAnsweredIncorrect QuestionStatus = "answered-incorrect"
)

// CanTransition reports whether a status change is legal.
func CanTransition(from, to QuestionStatus) bool {
	switch from {
	case StatusUnplayed:
		return to == StatusOpened
	case StatusOpened:
		return to == StatusAnsweredCorrect || to == StatusAnsweredIncorrect
	default:
		return false
	}
}

// PointsLadder is the fixed set of point values every category offers.
var PointsLadder = []int{100, 200, 300, 400, 500}

// GroundingSource is a web citation attached to an authored question.
type GroundingSource struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// Question is one board cell, held in memory for the duration of a game.
type Question struct {
	ID            string            `json:"id"`
	CategoryID    string            `json:"category_id"`
	Points        int               `json:"points"`
	QuestionText  string            `json:"question_text"`
	AnswerText    string            `json:"answer_text"`
	Status        QuestionStatus    `json:"status"`
	AudioURL      string            `json:"audio_url,omitempty"`
	VideoURL      string            `json:"video_url,omitempty"`
	ImageURL      string            `json:"image_url,omitempty"`
	MediaType     string            `json:"media_type,omitempty"`
	IsEnumeration bool              `json:"is_enumeration"`
	Sources       []GroundingSource `json:"sources,omitempty"`
}

// BoardKey is the board map key for a (category, points) cell.
func BoardKey(categoryID string, points int) string {
	return fmt.Sprintf("%s-%d", categoryID, points)
}

package services

import (
	"errors"
	"strings"

	"tahadi/models"
)

// StockRow is the validated intermediate between the stock store and the
// mapper. The store may populate either of the paired text fields; Validate
// rejects rows that carry neither before they reach the board.
type StockRow struct {
	ID           uint                     `json:"id"`
	Category     string                   `json:"category"`
	Points       int                      `json:"points"`
	QuestionText string                   `json:"question_text"`
	Question     string                   `json:"question"`
	AnswerText   string                   `json:"answer_text"`
	Answer       string                   `json:"answer"`
	MediaURL     string                   `json:"media_url"`
	ImageURL     string                   `json:"image_url"`
	MediaType    string                   `json:"media_type"`
	Sources      []models.GroundingSource `json:"sources,omitempty"`
}

func (r StockRow) Validate() error {
	if strings.TrimSpace(r.QuestionText) == "" && strings.TrimSpace(r.Question) == "" {
		return errors.New("stock row has no question text")
	}
	if strings.TrimSpace(r.AnswerText) == "" && strings.TrimSpace(r.Answer) == "" {
		return errors.New("stock row has no answer text")
	}
	return nil
}

// MapStockRow normalizes one raw stock row into a board question. It is a
// pure function and never fails: missing text fields fall back to fixed
// placeholders instead of erroring.
func MapStockRow(row StockRow, cat models.Category, points int) models.Question {
	questionText := firstNonEmpty(row.QuestionText, row.Question, missingQuestionText)
	answerText := firstNonEmpty(row.AnswerText, row.Answer, missingAnswerText)

	q := models.Question{
		ID:           models.BoardKey(cat.ID, points),
		CategoryID:   cat.ID,
		Points:       points,
		QuestionText: questionText,
		AnswerText:   answerText,
		Status:       models.StatusUnplayed,
		IsEnumeration: categoryHasListMarker(cat) ||
			strings.Contains(questionText, enumerationQuestionToken),
		Sources: row.Sources,
	}

	// At most one media field is populated; the type tag follows it exactly.
	mediaURL := firstNonEmpty(row.MediaURL, row.ImageURL, "")
	if mediaURL != "" {
		switch strings.ToLower(strings.TrimSpace(row.MediaType)) {
		case "audio", MediaTagAudio:
			q.AudioURL = mediaURL
			q.MediaType = MediaTagAudio
		case "video", MediaTagVideo:
			q.VideoURL = mediaURL
			q.MediaType = MediaTagVideo
		default:
			q.ImageURL = mediaURL
			q.MediaType = MediaTagImage
		}
	}

	return q
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

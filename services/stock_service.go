package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"tahadi/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockStore is the remote question stock as the supply engine consumes it.
// Absence of a question is a normal outcome, not an error.
type StockStore interface {
	// BatchBoard returns at most one unused row per (category, points) pair
	// for the given user key, across all requested category names.
	BatchBoard(ctx context.Context, userKey string, categoryNames []string) ([]StockRow, error)
	// SingleQuestion returns one unused row for the cell, or (nil, nil) when
	// the stock is exhausted.
	SingleQuestion(ctx context.Context, userKey, categoryName string, points int) (*StockRow, error)
	// RemainingRounds reports how many full boards the category can still
	// serve this user key.
	RemainingRounds(ctx context.Context, userKey, categoryName string) (int, error)
	// RecordUsage marks a question consumed for the user key. Best effort.
	RecordUsage(ctx context.Context, userKey string, questionID uint, categoryName string) error
}

// StockService implements StockStore on top of the stock tables. It also
// receives the authoring pipeline's output.
type StockService struct {
	db *gorm.DB
}

func NewStockService(db *gorm.DB) *StockService {
	return &StockService{db: db}
}

type stockScanRow struct {
	ID           uint
	Category     string
	Points       int
	QuestionText string
	AnswerText   string
	MediaURL     string
	MediaType    string
	Sources      string
}

func (r stockScanRow) toStockRow() StockRow {
	row := StockRow{
		ID:           r.ID,
		Category:     r.Category,
		Points:       r.Points,
		QuestionText: r.QuestionText,
		AnswerText:   r.AnswerText,
		MediaURL:     r.MediaURL,
		MediaType:    r.MediaType,
	}
	if r.Sources != "" {
		if err := json.Unmarshal([]byte(r.Sources), &row.Sources); err != nil {
			log.Printf("Ignoring malformed sources on stock question %d: %v", r.ID, err)
		}
	}
	return row
}

func (s *StockService) BatchBoard(ctx context.Context, userKey string, categoryNames []string) ([]StockRow, error) {
	if len(categoryNames) == 0 {
		return nil, errors.New("no categories requested")
	}

	var scanned []stockScanRow
	err := s.db.WithContext(ctx).Raw(`
		SELECT DISTINCT ON (s.category, s.points)
			s.id, s.category, s.points, s.question_text, s.answer_text,
			s.media_url, s.media_type, s.sources
		FROM stock_questions s
		WHERE s.category IN ? AND s.deleted_at IS NULL
		AND NOT EXISTS (
			SELECT 1 FROM question_usages u
			WHERE u.stock_question_id = s.id AND u.user_key = ?
		)
		ORDER BY s.category, s.points, random()`,
		categoryNames, userKey).Scan(&scanned).Error
	if err != nil {
		return nil, err
	}

	rows := make([]StockRow, 0, len(scanned))
	for _, r := range scanned {
		rows = append(rows, r.toStockRow())
	}
	return rows, nil
}

func (s *StockService) SingleQuestion(ctx context.Context, userKey, categoryName string, points int) (*StockRow, error) {
	var scanned []stockScanRow
	err := s.db.WithContext(ctx).Raw(`
		SELECT s.id, s.category, s.points, s.question_text, s.answer_text,
			s.media_url, s.media_type, s.sources
		FROM stock_questions s
		WHERE s.category = ? AND s.points = ? AND s.deleted_at IS NULL
		AND NOT EXISTS (
			SELECT 1 FROM question_usages u
			WHERE u.stock_question_id = s.id AND u.user_key = ?
		)
		ORDER BY random()
		LIMIT 1`,
		categoryName, points, userKey).Scan(&scanned).Error
	if err != nil {
		return nil, err
	}
	if len(scanned) == 0 {
		return nil, nil
	}
	row := scanned[0].toStockRow()
	return &row, nil
}

func (s *StockService) RemainingRounds(ctx context.Context, userKey, categoryName string) (int, error) {
	var counts []struct {
		Points int
		Total  int
	}
	err := s.db.WithContext(ctx).Raw(`
		SELECT s.points AS points, COUNT(*) AS total
		FROM stock_questions s
		WHERE s.category = ? AND s.deleted_at IS NULL
		AND NOT EXISTS (
			SELECT 1 FROM question_usages u
			WHERE u.stock_question_id = s.id AND u.user_key = ?
		)
		GROUP BY s.points`,
		categoryName, userKey).Scan(&counts).Error
	if err != nil {
		return 0, err
	}

	// A full round needs one question at every level; the scarcest level caps
	// the count.
	byPoints := make(map[int]int, len(counts))
	for _, c := range counts {
		byPoints[c.Points] = c.Total
	}
	rounds := -1
	for _, points := range models.PointsLadder {
		if rounds == -1 || byPoints[points] < rounds {
			rounds = byPoints[points]
		}
	}
	if rounds < 0 {
		rounds = 0
	}
	return rounds, nil
}

func (s *StockService) RecordUsage(ctx context.Context, userKey string, questionID uint, categoryName string) error {
	usage := models.QuestionUsage{
		UserKey:         userKey,
		StockQuestionID: questionID,
		Category:        categoryName,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&usage).Error
}

// InsertAuthored persists one category's authoring output into the stock.
func (s *StockService) InsertAuthored(ctx context.Context, cat models.Category, questions []AuthoredQuestion) error {
	if len(questions) == 0 {
		return nil
	}

	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	for _, q := range questions {
		sources := ""
		if len(q.Sources) > 0 {
			data, err := json.Marshal(q.Sources)
			if err != nil {
				tx.Rollback()
				return err
			}
			sources = string(data)
		}

		stock := models.StockQuestion{
			Category:     cat.Name,
			Points:       q.Points,
			QuestionText: q.Question,
			AnswerText:   q.Answer,
			Sources:      sources,
		}
		if err := tx.Create(&stock).Error; err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit().Error
}

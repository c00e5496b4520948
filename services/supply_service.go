package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"tahadi/config"
	"tahadi/models"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// ErrNoIdentity is returned before any network activity when the caller has
// no stable user key for exhaustion bookkeeping.
var ErrNoIdentity = errors.New("no user identity available")

// ErrBoardNotFound is returned when a board session has expired or never
// existed.
var ErrBoardNotFound = errors.New("board not found")

// ProgressFunc receives a percentage in [0,100]. Calls may arrive from
// overlapping fetch completions; the engine guarantees the sequence is
// non-decreasing and ends at 100.
type ProgressFunc func(percent int)

// BoardResult is a complete board: exactly 5 x |categories| keys, shortage
// cells filled with placeholders, plus one diagnostic per shortage.
type BoardResult struct {
	Questions map[string]models.Question `json:"questions"`
	Errors    []string                   `json:"errors"`
}

type SupplyService struct {
	store       StockStore
	redis       *redis.Client
	concurrency int
	callTimeout time.Duration
}

func NewSupplyService(store StockStore, redisClient *redis.Client, cfg *config.Config) *SupplyService {
	concurrency := cfg.SupplyConcurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	callTimeout := time.Duration(cfg.SupplyCallTimeoutSec) * time.Second
	if callTimeout <= 0 {
		callTimeout = 10 * time.Second
	}
	return &SupplyService{
		store:       store,
		redis:       redisClient,
		concurrency: concurrency,
		callTimeout: callTimeout,
	}
}

// BuildBoard resolves the full question grid for the selected categories.
// It prefers one batched store call and degrades to bounded concurrent
// per-cell fetches when the batch fails; in both paths every cell key is
// present on return.
func (s *SupplyService) BuildBoard(ctx context.Context, userKey string, categories []models.Category, onProgress ProgressFunc) (*BoardResult, error) {
	if strings.TrimSpace(userKey) == "" {
		return nil, ErrNoIdentity
	}

	report := monotonicProgress(onProgress)
	result := &BoardResult{Questions: make(map[string]models.Question)}

	report(5)

	rows, err := s.fetchBatch(ctx, userKey, categories)
	if err == nil {
		report(50)
		s.fillFromBatch(ctx, userKey, categories, rows, result)
	} else {
		log.Printf("Batch board fetch failed, falling back to per-cell fetches: %v", err)
		s.fillPerCell(ctx, userKey, categories, result, report)
	}

	report(100)
	return result, nil
}

func (s *SupplyService) fetchBatch(ctx context.Context, userKey string, categories []models.Category) ([]StockRow, error) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	names := make([]string, len(categories))
	for i, cat := range categories {
		names[i] = cat.Name
	}
	return s.store.BatchBoard(ctx, userKey, names)
}

func (s *SupplyService) fillFromBatch(ctx context.Context, userKey string, categories []models.Category, rows []StockRow, result *BoardResult) {
	// Rows are keyed back to categories by exact name equality; rows naming
	// an unselected category are discarded.
	byName := make(map[string]models.Category, len(categories))
	for _, cat := range categories {
		byName[cat.Name] = cat
	}

	fetched := make(map[string]StockRow, len(rows))
	for _, row := range rows {
		cat, ok := byName[row.Category]
		if !ok {
			continue
		}
		if err := row.Validate(); err != nil {
			log.Printf("Rejecting stock row %d for %s: %v", row.ID, row.Category, err)
			continue
		}
		fetched[models.BoardKey(cat.ID, row.Points)] = row
	}

	for _, cat := range categories {
		for _, points := range models.PointsLadder {
			key := models.BoardKey(cat.ID, points)
			row, ok := fetched[key]
			if !ok {
				result.Questions[key] = NewShortagePlaceholder(cat, points)
				result.Errors = append(result.Errors, ShortageMessage(cat.Name, points))
				continue
			}
			result.Questions[key] = MapStockRow(row, cat, points)
			if err := s.store.RecordUsage(ctx, userKey, row.ID, cat.Name); err != nil {
				log.Printf("Failed to record usage of question %d for %s: %v", row.ID, userKey, err)
			}
		}
	}
}

func (s *SupplyService) fillPerCell(ctx context.Context, userKey string, categories []models.Category, result *BoardResult, report ProgressFunc) {
	total := len(categories) * len(models.PointsLadder)
	completed := 0

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, cat := range categories {
		for _, points := range models.PointsLadder {
			cat, points := cat, points
			g.Go(func() error {
				q := s.fetchSingle(gctx, userKey, cat, points)
				key := models.BoardKey(cat.ID, points)

				mu.Lock()
				if q != nil {
					result.Questions[key] = *q
				} else {
					result.Questions[key] = NewShortagePlaceholder(cat, points)
					result.Errors = append(result.Errors, ShortageMessage(cat.Name, points))
				}
				completed++
				percent := 10 + (85*completed)/total
				mu.Unlock()

				report(percent)
				return nil
			})
		}
	}

	// Tasks never return errors: a failed cell becomes a placeholder.
	_ = g.Wait()
}

// fetchSingle requests exactly one question for a cell. A store error and an
// empty stock are the same expected outcome: nil. On success the question is
// recorded as used for this user key, which is part of the fetch contract.
func (s *SupplyService) fetchSingle(ctx context.Context, userKey string, cat models.Category, points int) *models.Question {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	row, err := s.store.SingleQuestion(ctx, userKey, cat.Name, points)
	if err != nil {
		log.Printf("Single question fetch failed for %s (%d): %v", cat.Name, points, err)
		return nil
	}
	if row == nil {
		return nil
	}
	if err := row.Validate(); err != nil {
		log.Printf("Rejecting stock row %d for %s: %v", row.ID, cat.Name, err)
		return nil
	}

	q := MapStockRow(*row, cat, points)
	if err := s.store.RecordUsage(ctx, userKey, row.ID, cat.Name); err != nil {
		log.Printf("Failed to record usage of question %d for %s: %v", row.ID, userKey, err)
	}
	return &q
}

// monotonicProgress wraps a callback so reported percentages never decrease,
// whatever order concurrent completions land in.
func monotonicProgress(onProgress ProgressFunc) ProgressFunc {
	if onProgress == nil {
		return func(int) {}
	}
	var mu sync.Mutex
	last := -1
	return func(percent int) {
		mu.Lock()
		defer mu.Unlock()
		if percent < last {
			return
		}
		last = percent
		onProgress(percent)
	}
}

// ---- Board sessions ----
//
// A built board is held under a job key for the duration of a game so that
// status transitions are applied exactly once.

const boardSessionTTL = 4 * time.Hour

func boardSessionKey(jobID string) string {
	return "board:" + jobID
}

func (s *SupplyService) StoreBoard(ctx context.Context, jobID string, result *BoardResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal board: %w", err)
	}
	return s.redis.Set(ctx, boardSessionKey(jobID), data, boardSessionTTL).Err()
}

func (s *SupplyService) GetBoard(ctx context.Context, jobID string) (*BoardResult, error) {
	data, err := s.redis.Get(ctx, boardSessionKey(jobID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrBoardNotFound
		}
		return nil, err
	}

	var result BoardResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal board: %w", err)
	}
	return &result, nil
}

// TransitionQuestion applies one status change to a board cell and persists
// the board back. Placeholder cells are already terminal, so they reject
// every transition.
func (s *SupplyService) TransitionQuestion(ctx context.Context, jobID, questionID string, to models.QuestionStatus) (*models.Question, error) {
	board, err := s.GetBoard(ctx, jobID)
	if err != nil {
		return nil, err
	}

	q, ok := board.Questions[questionID]
	if !ok {
		return nil, fmt.Errorf("question %s not on board", questionID)
	}
	if !models.CanTransition(q.Status, to) {
		return nil, fmt.Errorf("illegal status transition %s -> %s", q.Status, to)
	}

	q.Status = to
	board.Questions[questionID] = q

	if err := s.StoreBoard(ctx, jobID, board); err != nil {
		return nil, err
	}
	return &q, nil
}

package services

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// LedgerEntry is one surfaced question recorded against a category.
type LedgerEntry struct {
	Text   string `json:"text"`
	Points int    `json:"points"`
}

// Ledger records previously surfaced question texts per category and hands
// them back as exclusion context for the authoring pipeline. Callers must
// tolerate a failing or empty ledger silently.
type Ledger interface {
	History(ctx context.Context, categoryName string) ([]string, error)
	Record(ctx context.Context, categoryName string, entries []LedgerEntry) error
}

// RedisLedger keeps one capped list of question texts per category.
type RedisLedger struct {
	redis      *redis.Client
	maxEntries int64
}

func NewRedisLedger(redisClient *redis.Client, maxEntries int) *RedisLedger {
	if maxEntries <= 0 {
		maxEntries = 500
	}
	return &RedisLedger{redis: redisClient, maxEntries: int64(maxEntries)}
}

func ledgerKey(categoryName string) string {
	return "ledger:" + categoryName
}

func (l *RedisLedger) History(ctx context.Context, categoryName string) ([]string, error) {
	texts, err := l.redis.LRange(ctx, ledgerKey(categoryName), 0, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	return texts, nil
}

func (l *RedisLedger) Record(ctx context.Context, categoryName string, entries []LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	texts := make([]interface{}, 0, len(entries))
	for _, e := range entries {
		if e.Text == "" {
			continue
		}
		texts = append(texts, e.Text)
	}
	if len(texts) == 0 {
		return nil
	}

	key := ledgerKey(categoryName)
	if err := l.redis.RPush(ctx, key, texts...).Err(); err != nil {
		return err
	}
	return l.redis.LTrim(ctx, key, -l.maxEntries, -1).Err()
}

// NoopLedger is the legal substitution when persistence is unavailable.
type NoopLedger struct{}

func (NoopLedger) History(ctx context.Context, categoryName string) ([]string, error) {
	return nil, nil
}

func (NoopLedger) Record(ctx context.Context, categoryName string, entries []LedgerEntry) error {
	return nil
}

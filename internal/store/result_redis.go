package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/uchi736/rag-preprocessing-optimizer/internal/analyzer"
)

// ResultStore persists document analysis results in Redis: the full
// DocumentResult as one JSON blob plus a per-page hash for cheap single-page
// lookups.
type ResultStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewResultStore(redisURL string, ttl time.Duration) (*ResultStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opt)
	if err := c.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ResultStore{client: c, ttl: ttl}, nil
}

func (s *ResultStore) Close() error { return s.client.Close() }

func (s *ResultStore) resultKey(jobID string) string {
	return fmt.Sprintf("job:%s:result", jobID)
}

func (s *ResultStore) pagesKey(jobID string) string {
	return fmt.Sprintf("job:%s:pages", jobID)
}

// SaveResult stores the complete document result and its page entries.
func (s *ResultStore) SaveResult(ctx context.Context, jobID string, res *analyzer.DocumentResult) error {
	blob, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := s.client.Set(ctx, s.resultKey(jobID), blob, s.ttl).Err(); err != nil {
		return fmt.Errorf("save result: %w", err)
	}

	pages := make(map[string]interface{}, len(res.Pages))
	for _, pr := range res.Pages {
		b, err := json.Marshal(pr)
		if err != nil {
			return fmt.Errorf("marshal page %d: %w", pr.Page, err)
		}
		pages[fmt.Sprintf("%d", pr.Page)] = string(b)
	}
	if len(pages) > 0 {
		if err := s.client.HSet(ctx, s.pagesKey(jobID), pages).Err(); err != nil {
			return fmt.Errorf("save pages: %w", err)
		}
		if err := s.client.Expire(ctx, s.pagesKey(jobID), s.ttl).Err(); err != nil {
			return fmt.Errorf("expire pages: %w", err)
		}
	}
	return nil
}

// GetResult loads the full document result; the bool reports presence.
func (s *ResultStore) GetResult(ctx context.Context, jobID string) (*analyzer.DocumentResult, bool, error) {
	blob, err := s.client.Get(ctx, s.resultKey(jobID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var res analyzer.DocumentResult
	if err := json.Unmarshal(blob, &res); err != nil {
		return nil, false, fmt.Errorf("unmarshal result: %w", err)
	}
	return &res, true, nil
}

// GetPage loads one page entry; the bool reports presence.
func (s *ResultStore) GetPage(ctx context.Context, jobID string, page int) (analyzer.PageResult, bool, error) {
	blob, err := s.client.HGet(ctx, s.pagesKey(jobID), fmt.Sprintf("%d", page)).Result()
	if err == redis.Nil {
		return analyzer.PageResult{}, false, nil
	}
	if err != nil {
		return analyzer.PageResult{}, false, err
	}
	var pr analyzer.PageResult
	if err := json.Unmarshal([]byte(blob), &pr); err != nil {
		return analyzer.PageResult{}, false, fmt.Errorf("unmarshal page: %w", err)
	}
	return pr, true, nil
}

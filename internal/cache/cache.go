// Package cache memoizes deterministic completions in Redis.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"basegraph.app/triage/common/llm"
	"basegraph.app/triage/common/logger"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "triage:completion:"

// Recorder receives one of "hit", "miss", "error" or "skip" per request.
type Recorder interface {
	CacheLookup(result string)
}

// Client decorates an llm.Client. Only temperature-0 requests are cached:
// anything sampled above zero is expected to vary between calls.
type Client struct {
	next     llm.Client
	rdb      redis.Cmdable
	ttl      time.Duration
	recorder Recorder
}

func New(next llm.Client, rdb redis.Cmdable, ttl time.Duration, recorder Recorder) *Client {
	return &Client{next: next, rdb: rdb, ttl: ttl, recorder: recorder}
}

func (c *Client) Model() string {
	return c.next.Model()
}

func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.Completion, error) {
	if !Cacheable(req) {
		c.record("skip")
		return c.next.Complete(ctx, req)
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "triage.cache"})
	key := Key(c.next.Model(), req)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached llm.Completion
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil && cached.Content != "" {
			c.record("hit")
			return &cached, nil
		}
		c.record("error")
	case errors.Is(err, redis.Nil):
		c.record("miss")
	default:
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.WarnContext(ctx, "completion cache lookup failed", "error", err)
		c.record("error")
	}

	resp, err := c.next.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(resp); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			slog.WarnContext(ctx, "completion cache store failed", "error", err)
		}
	}
	return resp, nil
}

func (c *Client) record(result string) {
	if c.recorder != nil {
		c.recorder.CacheLookup(result)
	}
}

// Cacheable reports whether req is deterministic enough to memoize.
func Cacheable(req llm.CompletionRequest) bool {
	return req.Temperature != nil && *req.Temperature == 0
}

// Key derives the Redis key from the model and the full request.
func Key(model string, req llm.CompletionRequest) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	_ = json.NewEncoder(h).Encode(req)
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

var _ llm.Client = (*Client)(nil)

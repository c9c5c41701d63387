package storage

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// HistoryCache keeps a rolling window of the most recent messages per
// conversation so resync/history fetches don't always hit mongo.
// Best-effort only: every miss or error falls through to the durable store.
type HistoryCache struct {
	rdb    *redis.Client
	window int64
}

func NewHistoryCache(rdb *redis.Client, window int64) *HistoryCache {
	if window <= 0 {
		window = 200
	}
	return &HistoryCache{rdb: rdb, window: window}
}

func historyKey(conversationID string) string { return "im:history:" + conversationID }

// Push prepends a message payload and trims to the rolling window.
func (h *HistoryCache) Push(ctx context.Context, conversationID string, v any) error {
	if h == nil || h.rdb == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	pipe := h.rdb.TxPipeline()
	pipe.LPush(ctx, historyKey(conversationID), b)
	pipe.LTrim(ctx, historyKey(conversationID), 0, h.window-1)
	_, err = pipe.Exec(ctx)
	return err
}

// Recent returns up to n cached payloads, newest first. A nil slice means
// cache miss (or cache disabled) and the caller should read mongo.
func (h *HistoryCache) Recent(ctx context.Context, conversationID string, n int64) ([][]byte, error) {
	if h == nil || h.rdb == nil {
		return nil, nil
	}
	if n <= 0 || n > h.window {
		n = h.window
	}
	vals, err := h.rdb.LRange(ctx, historyKey(conversationID), 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(vals))
	for _, v := range vals {
		out = append(out, []byte(v))
	}
	return out, nil
}

// Invalidate drops the cached window for a conversation.
func (h *HistoryCache) Invalidate(ctx context.Context, conversationID string) error {
	if h == nil || h.rdb == nil {
		return nil
	}
	return h.rdb.Del(ctx, historyKey(conversationID)).Err()
}

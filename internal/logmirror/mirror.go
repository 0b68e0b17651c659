// Package logmirror optionally publishes captured log lines and final
// results to Redis, namespaced by context/execution/code id. It is
// strictly additive observability: the filesystem-backed execution
// storage remains authoritative and nothing is ever read back from the
// mirror to short-circuit a run.
package logmirror

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Mirror publishes execution output to Redis. The zero value is a
// no-op mirror: every method is safe to call on it and does nothing,
// so callers that never configure Redis don't need to branch on a nil
// check everywhere.
type Mirror struct {
	client *redis.Client
	ttl    time.Duration
}

// New returns a Mirror backed by the given Redis address. An empty
// addr returns the no-op zero value.
func New(addr string, ttl time.Duration) *Mirror {
	if addr == "" {
		return &Mirror{}
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Mirror{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

func (m *Mirror) enabled() bool { return m != nil && m.client != nil }

func key(contextID, executionID, codeID, suffix string) string {
	return fmt.Sprintf("coderunner:%s:%s:%s:%s", contextID, executionID, codeID, suffix)
}

// AppendLine publishes one captured stdout/stderr line. Failures are
// logged by the caller, not returned as fatal: log mirroring must
// never fail an execution that otherwise succeeded.
func (m *Mirror) AppendLine(ctx context.Context, contextID, executionID, codeID, stream, line string) error {
	if !m.enabled() {
		return nil
	}
	k := key(contextID, executionID, codeID, "log:"+stream)
	if err := m.client.RPush(ctx, k, line).Err(); err != nil {
		return fmt.Errorf("logmirror: append line: %w", err)
	}
	return m.client.Expire(ctx, k, m.ttl).Err()
}

// PublishResult stores the final JSON-encodable result under a single
// key, replacing any previous value for this invocation.
func (m *Mirror) PublishResult(ctx context.Context, contextID, executionID, codeID string, result any) error {
	if !m.enabled() {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("logmirror: marshal result: %w", err)
	}
	k := key(contextID, executionID, codeID, "result")
	return m.client.Set(ctx, k, data, m.ttl).Err()
}

// Close releases the underlying Redis client, if any.
func (m *Mirror) Close() error {
	if !m.enabled() {
		return nil
	}
	return m.client.Close()
}

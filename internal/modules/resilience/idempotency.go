package resilience

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"revi/agent-core/internal/infrastructure/cache"
)

// ResultOperation is an operation whose settled result (payload or error) is
// shared between callers holding the same idempotency key.
type ResultOperation func(ctx context.Context) ([]byte, error)

type inflightCall struct {
	done   chan struct{}
	result []byte
	err    error
}

type settledResult struct {
	Result []byte `json:"result,omitempty"`
	Err    string `json:"err,omitempty"`
}

// Idempotency deduplicates concurrent and replayed submissions. An in-flight
// operation for a key is joined, a settled one is answered from the memo
// cache until the TTL expires.
type Idempotency struct {
	cache cache.Cache
	ttl   time.Duration

	mu       sync.Mutex
	inflight map[string]*inflightCall
}

func NewIdempotency(c cache.Cache, ttl time.Duration) *Idempotency {
	return &Idempotency{
		cache:    c,
		ttl:      ttl,
		inflight: make(map[string]*inflightCall),
	}
}

// Key derives the default idempotency key from the operation name and a
// stable digest of its payload.
func Key(opName string, payload []byte) string {
	sum := sha256.Sum256(payload)
	return opName + ":" + hex.EncodeToString(sum[:])
}

// Execute runs op under key. Concurrent callers with the same key all
// receive the first invocation's settled result; op runs once.
func (i *Idempotency) Execute(ctx context.Context, key string, op ResultOperation) ([]byte, error) {
	if raw, ok := i.cache.Get(ctx, key); ok {
		var settled settledResult
		if err := json.Unmarshal(raw, &settled); err == nil {
			if settled.Err != "" {
				return settled.Result, errors.New(settled.Err)
			}
			return settled.Result, nil
		}
	}

	i.mu.Lock()
	if call, ok := i.inflight[key]; ok {
		i.mu.Unlock()
		select {
		case <-call.done:
			return call.result, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	call := &inflightCall{done: make(chan struct{})}
	i.inflight[key] = call
	i.mu.Unlock()

	call.result, call.err = op(ctx)
	close(call.done)

	// Memoize before releasing the in-flight slot so a caller arriving in
	// between still observes the settled result.
	settled := settledResult{Result: call.result}
	if call.err != nil {
		settled.Err = call.err.Error()
	}
	if raw, err := json.Marshal(settled); err == nil {
		_ = i.cache.Set(ctx, key, raw, i.ttl)
	}

	i.mu.Lock()
	delete(i.inflight, key)
	i.mu.Unlock()

	return call.result, call.err
}

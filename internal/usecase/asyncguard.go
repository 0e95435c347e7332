package usecase

import (
	"sync"

	"juno-ai/internal/domain"
)

// OpStatus is the lifecycle state of a guarded remote operation.
type OpStatus int

const (
	OpIdle OpStatus = iota
	OpPending
	OpSucceeded
	OpFailed
)

func (s OpStatus) String() string {
	switch s {
	case OpPending:
		return "pending"
	case OpSucceeded:
		return "succeeded"
	case OpFailed:
		return "failed"
	default:
		return "idle"
	}
}

// OpSnapshot is a copyable view of a guard's state for rendering.
type OpSnapshot struct {
	Status      OpStatus
	ErrorDetail string
}

// AsyncOperationGuard tracks one logical remote operation (e.g. "fetch models
// for the selected provider"). Each invocation gets a monotonically
// increasing token; a completion is applied only while its token is still
// current, so rapid re-invocations silently invalidate earlier in-flight
// results instead of racing them. There is no blocking and no cancellation;
// correctness comes purely from the token comparison.
type AsyncOperationGuard struct {
	mu     sync.Mutex
	token  uint64
	status OpStatus
	detail string
}

// Begin starts a new invocation: bumps the token, moves to pending and
// clears any previous error. Returns the token the eventual completion must
// present.
func (g *AsyncOperationGuard) Begin() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.token++
	g.status = OpPending
	g.detail = ""
	return g.token
}

// Resolve marks the invocation identified by token as succeeded. Returns
// ErrStaleResponse when a newer invocation has superseded it, in which case
// the caller must not apply the result.
func (g *AsyncOperationGuard) Resolve(token uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if token != g.token {
		return domain.ErrStaleResponse
	}
	g.status = OpSucceeded
	return nil
}

// Reject marks the invocation identified by token as failed with detail.
// Stale rejections are discarded the same way stale successes are.
func (g *AsyncOperationGuard) Reject(token uint64, detail string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if token != g.token {
		return domain.ErrStaleResponse
	}
	g.status = OpFailed
	g.detail = detail
	return nil
}

// Current reports whether token is still the live invocation.
func (g *AsyncOperationGuard) Current(token uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return token == g.token
}

// Invalidate supersedes any in-flight invocation without starting a new one.
// Used on session teardown so late arrivals die on the token check.
func (g *AsyncOperationGuard) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.token++
	if g.status == OpPending {
		g.status = OpIdle
	}
}

// Snapshot returns the state for rendering.
func (g *AsyncOperationGuard) Snapshot() OpSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return OpSnapshot{Status: g.status, ErrorDetail: g.detail}
}

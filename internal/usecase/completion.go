package usecase

import (
	"sync"

	"juno-ai/internal/domain"
)

// CompletionAggregator records which stages have been successfully committed
// during the session. Flags are monotonic: nothing in normal stage flow sets
// one back to false. The final summary reads them out.
type CompletionAggregator struct {
	mu    sync.Mutex
	flags domain.CompletionFlags
}

func (c *CompletionAggregator) MarkProvider() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flags.Provider = true
}

func (c *CompletionAggregator) MarkMessaging() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flags.Messaging = true
}

func (c *CompletionAggregator) MarkSoul() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flags.Soul = true
}

func (c *CompletionAggregator) MarkDaemon() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flags.Daemon = true
}

// Flags returns a snapshot of the completion state.
func (c *CompletionAggregator) Flags() domain.CompletionFlags {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flags
}

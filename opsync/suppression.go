package opsync

import (
	"sync"
	"sync/atomic"
)

// Suppression disables publishing while a consumer applies operations that were
// received from a remote replica, so that applying them does not publish them again.
//
// Scopes nest. The publisher tree is suppressed while any guard is open.
// A nil `*Suppression` is never suppressed.
//
// The scope is the session, not the goroutine: while a guard is open, local edits
// made on any goroutine are not published. Mutating one graph from several goroutines
// already needs external synchronization, so hosts apply remote operations while holding
// the same lock they hold for local edits.
type Suppression struct {
	depth atomic.Int32
}

func NewSuppression() *Suppression {
	return &Suppression{}
}

func (self *Suppression) IsSuppressed() bool {
	if self == nil {
		return false
	}
	return 0 < self.depth.Load()
}

func (self *Suppression) Enter() *SuppressionGuard {
	self.depth.Add(1)
	return &SuppressionGuard{
		suppression: self,
	}
}

type SuppressionGuard struct {
	suppression *Suppression
	closeOnce   sync.Once
}

// closing more than once has no effect
func (self *SuppressionGuard) Close() {
	self.closeOnce.Do(func() {
		self.suppression.depth.Add(-1)
	})
}

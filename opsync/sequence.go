package opsync

import (
	"sync/atomic"
)

// One generator is shared by every publisher in a session.
// It is the only ordering authority for the merged operation stream.
type SequenceGenerator struct {
	last atomic.Uint64
}

func NewSequenceGenerator() *SequenceGenerator {
	return &SequenceGenerator{}
}

// starts at 1. Never reused.
func (self *SequenceGenerator) GetNext() uint64 {
	return self.last.Add(1)
}

// the last number returned from `GetNext`, or 0 if none
func (self *SequenceGenerator) Last() uint64 {
	return self.last.Load()
}

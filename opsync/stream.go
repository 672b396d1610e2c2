package opsync

import (
	"sync"
)

type Observer interface {
	OnNext(op SyncOperation)
	OnCompleted()
}

// an observer that ignores completion
type ObserverFunc func(op SyncOperation)

func (self ObserverFunc) OnNext(op SyncOperation) {
	self(op)
}

func (self ObserverFunc) OnCompleted() {
}

// OperationStream fans out operations to observers in the order they are pushed.
// It completes at most once. Operations pushed after completion are dropped.
type OperationStream struct {
	stateLock sync.Mutex
	completed bool

	observers *CallbackList[Observer]
}

func NewOperationStream() *OperationStream {
	return &OperationStream{
		observers: NewCallbackList[Observer](),
	}
}

// returns a function that removes the observer.
// Subscribing to a completed stream completes the observer immediately.
func (self *OperationStream) Subscribe(observer Observer) func() {
	self.stateLock.Lock()
	completed := self.completed
	self.stateLock.Unlock()

	if completed {
		HandleError(observer.OnCompleted)
		return func() {}
	}
	return self.observers.Subscribe(observer)
}

func (self *OperationStream) IsCompleted() bool {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.completed
}

// Observer implementation

func (self *OperationStream) OnNext(op SyncOperation) {
	if self.IsCompleted() {
		return
	}
	for _, observer := range self.observers.Get() {
		HandleError(func() {
			observer.OnNext(op)
		})
	}
}

func (self *OperationStream) OnCompleted() {
	self.stateLock.Lock()
	if self.completed {
		self.stateLock.Unlock()
		return
	}
	self.completed = true
	self.stateLock.Unlock()

	for _, observer := range self.observers.Get() {
		HandleError(observer.OnCompleted)
	}
}

package opsync

import (
	"container/heap"
	"sync"
)

type ByteCount = int64

type queuedOperation struct {
	op        SyncOperation
	byteCount ByteCount

	// the index of the item in the heap
	heapIndex int
	// the index of the item in the max heap
	maxHeapIndex int
}

func (self *queuedOperation) sequenceNumber() uint64 {
	return self.op.Header().SequenceNumber
}

// OperationQueue holds received operations ordered by sequence number.
// Each sequence number is held at most once.
type OperationQueue struct {
	stateLock sync.Mutex

	orderedItems []*queuedOperation
	maxHeap      *operationQueueMaxHeap
	// sequence number -> item
	sequenceNumberItems map[uint64]*queuedOperation
	byteCount           ByteCount
}

func NewOperationQueue() *OperationQueue {
	queue := &OperationQueue{
		orderedItems:        []*queuedOperation{},
		maxHeap:             &operationQueueMaxHeap{},
		sequenceNumberItems: map[uint64]*queuedOperation{},
	}
	heap.Init(queue)
	return queue
}

func (self *OperationQueue) QueueSize() (int, ByteCount) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	return len(self.orderedItems), self.byteCount
}

// returns false if an operation with the same sequence number is already queued
func (self *OperationQueue) Add(op SyncOperation, byteCount ByteCount) bool {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	sequenceNumber := op.Header().SequenceNumber
	if _, ok := self.sequenceNumberItems[sequenceNumber]; ok {
		return false
	}
	item := &queuedOperation{
		op:        op,
		byteCount: byteCount,
	}
	self.sequenceNumberItems[sequenceNumber] = item
	heap.Push(self, item)
	heap.Push(self.maxHeap, item)
	self.byteCount += byteCount
	return true
}

func (self *OperationQueue) Contains(sequenceNumber uint64) bool {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	_, ok := self.sequenceNumberItems[sequenceNumber]
	return ok
}

func (self *OperationQueue) GetBySequenceNumber(sequenceNumber uint64) SyncOperation {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	item, ok := self.sequenceNumberItems[sequenceNumber]
	if !ok {
		return nil
	}
	return item.op
}

func (self *OperationQueue) RemoveBySequenceNumber(sequenceNumber uint64) SyncOperation {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	item, ok := self.sequenceNumberItems[sequenceNumber]
	if !ok {
		return nil
	}
	self.remove(item)
	return item.op
}

func (self *OperationQueue) remove(item *queuedOperation) {
	delete(self.sequenceNumberItems, item.sequenceNumber())
	item_ := heap.Remove(self, item.heapIndex)
	if item != item_ {
		panic("Heap invariant broken.")
	}
	heap.Remove(self.maxHeap, item.maxHeapIndex)
	self.byteCount -= item.byteCount
}

func (self *OperationQueue) RemoveFirst() SyncOperation {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if len(self.orderedItems) == 0 {
		return nil
	}
	item := self.orderedItems[0]
	self.remove(item)
	return item.op
}

// the operation with the lowest sequence number
func (self *OperationQueue) PeekFirst() SyncOperation {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if len(self.orderedItems) == 0 {
		return nil
	}
	return self.orderedItems[0].op
}

// the operation with the highest sequence number
func (self *OperationQueue) PeekLast() SyncOperation {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if len(self.maxHeap.orderedItems) == 0 {
		return nil
	}
	return self.maxHeap.orderedItems[0].op
}

// heap.Interface

func (self *OperationQueue) Push(x any) {
	item := x.(*queuedOperation)
	item.heapIndex = len(self.orderedItems)
	self.orderedItems = append(self.orderedItems, item)
}

func (self *OperationQueue) Pop() any {
	n := len(self.orderedItems)
	i := n - 1
	item := self.orderedItems[i]
	self.orderedItems[i] = nil
	self.orderedItems = self.orderedItems[:n-1]
	return item
}

// sort.Interface

func (self *OperationQueue) Len() int {
	return len(self.orderedItems)
}

func (self *OperationQueue) Less(i int, j int) bool {
	return self.orderedItems[i].sequenceNumber() < self.orderedItems[j].sequenceNumber()
}

func (self *OperationQueue) Swap(i int, j int) {
	a := self.orderedItems[i]
	b := self.orderedItems[j]
	b.heapIndex = i
	self.orderedItems[i] = b
	a.heapIndex = j
	self.orderedItems[j] = a
}

// ordered by sequence number descending
type operationQueueMaxHeap struct {
	orderedItems []*queuedOperation
}

// heap.Interface

func (self *operationQueueMaxHeap) Push(x any) {
	item := x.(*queuedOperation)
	item.maxHeapIndex = len(self.orderedItems)
	self.orderedItems = append(self.orderedItems, item)
}

func (self *operationQueueMaxHeap) Pop() any {
	n := len(self.orderedItems)
	i := n - 1
	item := self.orderedItems[i]
	self.orderedItems[i] = nil
	self.orderedItems = self.orderedItems[:n-1]
	return item
}

// sort.Interface

func (self *operationQueueMaxHeap) Len() int {
	return len(self.orderedItems)
}

func (self *operationQueueMaxHeap) Less(i int, j int) bool {
	return self.orderedItems[j].sequenceNumber() < self.orderedItems[i].sequenceNumber()
}

func (self *operationQueueMaxHeap) Swap(i int, j int) {
	a := self.orderedItems[i]
	b := self.orderedItems[j]
	b.maxHeapIndex = i
	self.orderedItems[i] = b
	a.maxHeapIndex = j
	self.orderedItems[j] = a
}

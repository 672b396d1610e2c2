package opsync

import (
	"sync"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

var ErrStaleOperation = errors.New("Stale operation.")
var ErrDuplicateOperation = errors.New("Duplicate operation.")

type ReceiveOperationFunction func(op SyncOperation)

type ReceiverSettings struct {
	// when more operations than this are waiting on a gap, the gap is skipped
	MaxBufferCount int
	// the first sequence number expected
	InitialSequenceNumber uint64
}

func DefaultReceiverSettings() *ReceiverSettings {
	return &ReceiverSettings{
		MaxBufferCount:        1024,
		InitialSequenceNumber: 1,
	}
}

// OperationReceiver restores sequence order on the consumer side.
// Operations are delivered to the callback in strictly increasing sequence order,
// each at most once. Out of order operations wait in a queue until the gap fills.
type OperationReceiver struct {
	receiveCallback ReceiveOperationFunction
	settings        *ReceiverSettings

	// serializes delivery
	receiveLock sync.Mutex

	stateLock sync.Mutex
	// the next sequence number to deliver
	nextSequenceNumber uint64
	queue              *OperationQueue
	skippedCount       uint64
}

func NewOperationReceiverWithDefaults(receiveCallback ReceiveOperationFunction) *OperationReceiver {
	return NewOperationReceiver(receiveCallback, DefaultReceiverSettings())
}

func NewOperationReceiver(receiveCallback ReceiveOperationFunction, settings *ReceiverSettings) *OperationReceiver {
	nextSequenceNumber := settings.InitialSequenceNumber
	if nextSequenceNumber == 0 {
		nextSequenceNumber = 1
	}
	return &OperationReceiver{
		receiveCallback:    receiveCallback,
		settings:           settings,
		nextSequenceNumber: nextSequenceNumber,
		queue:              NewOperationQueue(),
	}
}

// decodes one frame and receives it
func (self *OperationReceiver) ReceiveFrame(frame []byte) error {
	op, err := DecodeOperation(frame)
	if err != nil {
		return err
	}
	return self.receive(op, ByteCount(len(frame)))
}

func (self *OperationReceiver) Receive(op SyncOperation) error {
	return self.receive(op, 0)
}

func (self *OperationReceiver) receive(op SyncOperation, byteCount ByteCount) error {
	self.receiveLock.Lock()
	defer self.receiveLock.Unlock()

	ready, err := func() ([]SyncOperation, error) {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()

		sequenceNumber := op.Header().SequenceNumber
		if sequenceNumber < self.nextSequenceNumber {
			return nil, errors.Wrapf(ErrStaleOperation, "sequence %d", sequenceNumber)
		}
		if !self.queue.Add(op, byteCount) {
			return nil, errors.Wrapf(ErrDuplicateOperation, "sequence %d", sequenceNumber)
		}
		ready := self.pollReady()
		if queueCount, _ := self.queue.QueueSize(); self.settings.MaxBufferCount < queueCount {
			// give up on the gap
			first := self.queue.PeekFirst().Header().SequenceNumber
			glog.Infof("[r]skip gap [%d, %d) with %d waiting\n", self.nextSequenceNumber, first, queueCount)
			self.skippedCount += first - self.nextSequenceNumber
			self.nextSequenceNumber = first
			ready = append(ready, self.pollReady()...)
		}
		return ready, nil
	}()
	if err != nil {
		return err
	}
	self.deliver(ready)
	return nil
}

// must be called with the state lock
func (self *OperationReceiver) pollReady() []SyncOperation {
	ready := []SyncOperation{}
	for {
		first := self.queue.PeekFirst()
		if first == nil || first.Header().SequenceNumber != self.nextSequenceNumber {
			return ready
		}
		self.queue.RemoveFirst()
		ready = append(ready, first)
		self.nextSequenceNumber += 1
	}
}

func (self *OperationReceiver) deliver(ops []SyncOperation) {
	for _, op := range ops {
		HandleError(func() {
			self.receiveCallback(op)
		})
	}
}

// Flush delivers everything still waiting, skipping gaps.
func (self *OperationReceiver) Flush() {
	self.receiveLock.Lock()
	defer self.receiveLock.Unlock()

	ready := func() []SyncOperation {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()

		ready := []SyncOperation{}
		for {
			first := self.queue.RemoveFirst()
			if first == nil {
				return ready
			}
			sequenceNumber := first.Header().SequenceNumber
			if self.nextSequenceNumber < sequenceNumber {
				glog.Infof("[r]flush skip gap [%d, %d)\n", self.nextSequenceNumber, sequenceNumber)
				self.skippedCount += sequenceNumber - self.nextSequenceNumber
			}
			ready = append(ready, first)
			self.nextSequenceNumber = sequenceNumber + 1
		}
	}()
	self.deliver(ready)
}

func (self *OperationReceiver) NextSequenceNumber() uint64 {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.nextSequenceNumber
}

// the number of sequence numbers given up on
func (self *OperationReceiver) SkippedCount() uint64 {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.skippedCount
}

// the number of operations waiting on a gap
func (self *OperationReceiver) PendingCount() int {
	count, _ := self.queue.QueueSize()
	return count
}

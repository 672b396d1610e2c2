package opsync

import (
	"errors"
	mathrand "math/rand"
	"testing"

	"github.com/go-playground/assert/v2"
)

func newTestOperation(sequenceNumber uint64) SyncOperation {
	return &RemoveCollectionRange{
		OperationHeader: OperationHeader{
			SequenceNumber: sequenceNumber,
			PropertyPath:   "Items",
		},
		Index: 0,
		Count: 1,
	}
}

func TestOperationQueue(t *testing.T) {
	queue := NewOperationQueue()

	size, byteCount := queue.QueueSize()
	assert.Equal(t, size, 0)
	assert.Equal(t, byteCount, ByteCount(0))
	assert.Equal(t, queue.PeekFirst(), nil)
	assert.Equal(t, queue.PeekLast(), nil)
	assert.Equal(t, queue.RemoveFirst(), nil)

	n := 100
	sequenceNumbers := []uint64{}
	for i := 0; i < n; i += 1 {
		sequenceNumbers = append(sequenceNumbers, uint64(i+1))
	}
	mathrand.Shuffle(len(sequenceNumbers), func(i int, j int) {
		sequenceNumbers[i], sequenceNumbers[j] = sequenceNumbers[j], sequenceNumbers[i]
	})
	for _, sequenceNumber := range sequenceNumbers {
		assert.Equal(t, queue.Add(newTestOperation(sequenceNumber), ByteCount(1)), true)
	}
	// one per sequence number
	assert.Equal(t, queue.Add(newTestOperation(1), ByteCount(1)), false)

	size, byteCount = queue.QueueSize()
	assert.Equal(t, size, n)
	assert.Equal(t, byteCount, ByteCount(n))

	assert.Equal(t, queue.PeekFirst().Header().SequenceNumber, uint64(1))
	assert.Equal(t, queue.PeekLast().Header().SequenceNumber, uint64(n))
	assert.Equal(t, queue.Contains(50), true)
	assert.Equal(t, queue.GetBySequenceNumber(50).Header().SequenceNumber, uint64(50))

	// remove from the middle and both ends
	assert.Equal(t, queue.RemoveBySequenceNumber(50).Header().SequenceNumber, uint64(50))
	assert.Equal(t, queue.RemoveBySequenceNumber(50), nil)
	assert.Equal(t, queue.Contains(50), false)
	assert.Equal(t, queue.RemoveBySequenceNumber(uint64(n)).Header().SequenceNumber, uint64(n))
	assert.Equal(t, queue.PeekLast().Header().SequenceNumber, uint64(n-1))

	previous := uint64(0)
	for {
		op := queue.RemoveFirst()
		if op == nil {
			break
		}
		assert.Equal(t, previous < op.Header().SequenceNumber, true)
		previous = op.Header().SequenceNumber
	}
	assert.Equal(t, previous, uint64(n-1))

	size, byteCount = queue.QueueSize()
	assert.Equal(t, size, 0)
	assert.Equal(t, byteCount, ByteCount(0))
}

func TestOperationReceiverOrder(t *testing.T) {
	received := []uint64{}
	receiver := NewOperationReceiverWithDefaults(func(op SyncOperation) {
		received = append(received, op.Header().SequenceNumber)
	})

	n := 64
	sequenceNumbers := []uint64{}
	for i := 0; i < n; i += 1 {
		sequenceNumbers = append(sequenceNumbers, uint64(i+1))
	}
	mathrand.Shuffle(len(sequenceNumbers), func(i int, j int) {
		sequenceNumbers[i], sequenceNumbers[j] = sequenceNumbers[j], sequenceNumbers[i]
	})
	for _, sequenceNumber := range sequenceNumbers {
		assert.Equal(t, receiver.Receive(newTestOperation(sequenceNumber)), nil)
	}

	assert.Equal(t, len(received), n)
	for i, sequenceNumber := range received {
		assert.Equal(t, sequenceNumber, uint64(i+1))
	}
	assert.Equal(t, receiver.NextSequenceNumber(), uint64(n+1))
	assert.Equal(t, receiver.PendingCount(), 0)
}

func TestOperationReceiverReject(t *testing.T) {
	received := []uint64{}
	receiver := NewOperationReceiverWithDefaults(func(op SyncOperation) {
		received = append(received, op.Header().SequenceNumber)
	})

	assert.Equal(t, receiver.Receive(newTestOperation(1)), nil)
	assert.Equal(t, receiver.Receive(newTestOperation(3)), nil)
	assert.Equal(t, received, []uint64{1})
	assert.Equal(t, receiver.PendingCount(), 1)

	err := receiver.Receive(newTestOperation(1))
	assert.Equal(t, errors.Is(err, ErrStaleOperation), true)

	err = receiver.Receive(newTestOperation(3))
	assert.Equal(t, errors.Is(err, ErrDuplicateOperation), true)

	assert.Equal(t, receiver.Receive(newTestOperation(2)), nil)
	assert.Equal(t, received, []uint64{1, 2, 3})

	err = receiver.Receive(newTestOperation(2))
	assert.Equal(t, errors.Is(err, ErrStaleOperation), true)
}

func TestOperationReceiverSkipGap(t *testing.T) {
	received := []uint64{}
	settings := DefaultReceiverSettings()
	settings.MaxBufferCount = 2
	receiver := NewOperationReceiver(func(op SyncOperation) {
		received = append(received, op.Header().SequenceNumber)
	}, settings)

	// 1 is lost
	assert.Equal(t, receiver.Receive(newTestOperation(2)), nil)
	assert.Equal(t, receiver.Receive(newTestOperation(3)), nil)
	assert.Equal(t, len(received), 0)

	assert.Equal(t, receiver.Receive(newTestOperation(5)), nil)
	assert.Equal(t, received, []uint64{2, 3})
	assert.Equal(t, receiver.SkippedCount(), uint64(1))
	assert.Equal(t, receiver.PendingCount(), 1)

	// a late arrival of the lost operation is stale
	err := receiver.Receive(newTestOperation(1))
	assert.Equal(t, errors.Is(err, ErrStaleOperation), true)

	receiver.Flush()
	assert.Equal(t, received, []uint64{2, 3, 5})
	assert.Equal(t, receiver.SkippedCount(), uint64(2))
	assert.Equal(t, receiver.NextSequenceNumber(), uint64(6))
}

func TestOperationReceiverFrame(t *testing.T) {
	received := []SyncOperation{}
	receiver := NewOperationReceiverWithDefaults(func(op SyncOperation) {
		received = append(received, op)
	})

	ops := testOperations()
	// frames are numbered 1-5 and then 1<<40
	for i := len(ops) - 2; 0 <= i; i -= 1 {
		assert.Equal(t, receiver.ReceiveFrame(RequireEncodeOperation(ops[i])), nil)
	}
	assert.Equal(t, len(received), 5)
	assert.Equal(t, received[0], ops[0])
	assert.Equal(t, received[4], ops[4])

	assert.NotEqual(t, receiver.ReceiveFrame([]byte{0xff}), nil)
}

package opsync

import (
	"sync"
	"testing"

	"github.com/go-playground/assert/v2"
	"golang.org/x/exp/slices"
)

func TestSequenceGenerator(t *testing.T) {
	sequence := NewSequenceGenerator()
	assert.Equal(t, sequence.Last(), uint64(0))
	assert.Equal(t, sequence.GetNext(), uint64(1))
	assert.Equal(t, sequence.GetNext(), uint64(2))
	assert.Equal(t, sequence.Last(), uint64(2))
}

func TestSequenceGeneratorConcurrent(t *testing.T) {
	sequence := NewSequenceGenerator()

	n := 16
	m := 1000

	var stateLock sync.Mutex
	sequenceNumbers := []uint64{}

	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := []uint64{}
			for range m {
				next := sequence.GetNext()
				// each goroutine observes strictly increasing values
				if 0 < len(local) && next <= local[len(local)-1] {
					t.Errorf("Sequence went backwards %d <= %d.", next, local[len(local)-1])
				}
				local = append(local, next)
			}
			stateLock.Lock()
			defer stateLock.Unlock()
			sequenceNumbers = append(sequenceNumbers, local...)
		}()
	}
	wg.Wait()

	// never reused, no gaps
	slices.Sort(sequenceNumbers)
	assert.Equal(t, len(sequenceNumbers), n*m)
	for i, sequenceNumber := range sequenceNumbers {
		assert.Equal(t, sequenceNumber, uint64(i+1))
	}
}

func TestSuppression(t *testing.T) {
	var nilSuppression *Suppression
	assert.Equal(t, nilSuppression.IsSuppressed(), false)

	suppression := NewSuppression()
	assert.Equal(t, suppression.IsSuppressed(), false)

	outer := suppression.Enter()
	assert.Equal(t, suppression.IsSuppressed(), true)

	inner := suppression.Enter()
	assert.Equal(t, suppression.IsSuppressed(), true)

	// leaving the inner scope keeps the outer scope active
	inner.Close()
	assert.Equal(t, suppression.IsSuppressed(), true)

	// closing twice does not end the outer scope
	inner.Close()
	assert.Equal(t, suppression.IsSuppressed(), true)

	outer.Close()
	assert.Equal(t, suppression.IsSuppressed(), false)
	outer.Close()
	assert.Equal(t, suppression.IsSuppressed(), false)
}

func TestSuppressionSessionScope(t *testing.T) {
	suppression := NewSuppression()
	guard := suppression.Enter()

	// an open guard suppresses edits from every goroutine of the session
	suppressed := make(chan bool)
	go func() {
		suppressed <- suppression.IsSuppressed()
	}()
	assert.Equal(t, <-suppressed, true)

	guard.Close()
	go func() {
		suppressed <- suppression.IsSuppressed()
	}()
	assert.Equal(t, <-suppressed, false)
}

package opsync

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

type completionLog struct {
	names []string
}

func (self *completionLog) observer(name string) Observer {
	return &completionObserver{
		name: name,
		log:  self,
	}
}

type completionObserver struct {
	name string
	log  *completionLog
}

func (self *completionObserver) OnNext(op SyncOperation) {
}

func (self *completionObserver) OnCompleted() {
	self.log.names = append(self.log.names, self.name)
}

// a publisher that fails to close
type panicPublisher struct {
	operations *OperationStream
	closeCount int
}

func (self *panicPublisher) Path() string {
	return "Broken"
}

func (self *panicPublisher) Operations() *OperationStream {
	return self.operations
}

func (self *panicPublisher) Close() {
	self.closeCount += 1
	panic("close failed")
}

// records when the publisher stops listening to the object
type unsubLogObject struct {
	*Object
	log *completionLog
}

func (self *unsubLogObject) AddPropertyChangedCallback(callback PropertyChangedFunction) func() {
	unsub := self.Object.AddPropertyChangedCallback(callback)
	return func() {
		self.log.names = append(self.log.names, "unsubscribe")
		unsub()
	}
}

func TestClosePublishersRecovers(t *testing.T) {
	owner := newTestObject("Owner")
	sequence := NewSequenceGenerator()

	first, err := NewCollectionPublisher(nil, owner, NewList(), "First", sequence, nil, nil)
	assert.Equal(t, err, nil)
	second, err := NewCollectionPublisher(nil, owner, NewList(), "Second", sequence, nil, nil)
	assert.Equal(t, err, nil)
	broken := &panicPublisher{
		operations: NewOperationStream(),
	}

	closePublishers("", first, nil, broken, second)

	assert.Equal(t, broken.closeCount, 1)
	assert.Equal(t, first.Operations().IsCompleted(), true)
	assert.Equal(t, second.Operations().IsCompleted(), true)
}

func TestObjectPublisherCloseOrder(t *testing.T) {
	log := &completionLog{}

	// declared collection first, so the close order is by kind and not by declaration
	object := newTestObject("Root", "Items", "Child")
	object.Set("Items", NewList())
	object.Set("Child", newTestObject("Child", "Name"))
	object.AddEngineProperty(NewValue("Opacity", "float64", 1.0))
	root := &unsubLogObject{
		Object: object,
		log:    log,
	}

	publisher, err := NewObjectPublisherWithDefaults(log.observer("root"), root, NewSequenceGenerator())
	assert.Equal(t, err, nil)
	publisher.Child("Items").Operations().Subscribe(log.observer("Items"))
	publisher.Child("Child").Operations().Subscribe(log.observer("Child"))
	publisher.Child("Opacity").Operations().Subscribe(log.observer("Opacity"))

	publisher.Close()
	assert.Equal(t, log.names, []string{"unsubscribe", "Child", "Items", "Opacity", "root"})

	publisher.Close()
	assert.Equal(t, len(log.names), 5)
}

package opsync

import (
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/exp/slices"
)

type CollectionAction int

const (
	CollectionActionAdd     CollectionAction = 0
	CollectionActionRemove  CollectionAction = 1
	CollectionActionReplace CollectionAction = 2
	CollectionActionMove    CollectionAction = 3
	// the collection was cleared. `OldItems` holds everything that was removed.
	CollectionActionReset CollectionAction = 4
)

func (self CollectionAction) String() string {
	switch self {
	case CollectionActionAdd:
		return "add"
	case CollectionActionRemove:
		return "remove"
	case CollectionActionReplace:
		return "replace"
	case CollectionActionMove:
		return "move"
	case CollectionActionReset:
		return "reset"
	default:
		return fmt.Sprintf("CollectionAction(%d)", int(self))
	}
}

// indexes are positions in the collection before the change for old items
// and after the change for new items
type CollectionChangedEvent struct {
	Action        CollectionAction
	NewItems      []any
	NewStartIndex int
	OldItems      []any
	OldStartIndex int
}

type CollectionChangedFunction func(event *CollectionChangedEvent) error

type TrackedCollection interface {
	Len() int
	At(index int) any
	// returns a function that removes the callback
	AddCollectionChangedCallback(callback CollectionChangedFunction) func()
}

// List is the tracked collection used by hosts and tests.
// Each structural edit raises exactly one event.
type List struct {
	stateLock sync.Mutex
	items     []any

	collectionChangedCallbacks *CallbackList[CollectionChangedFunction]
}

func NewList(items ...any) *List {
	return &List{
		items:                      slices.Clone(items),
		collectionChangedCallbacks: NewCallbackList[CollectionChangedFunction](),
	}
}

func (self *List) Len() int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return len(self.items)
}

func (self *List) At(index int) any {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.items[index]
}

func (self *List) Items() []any {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return slices.Clone(self.items)
}

func (self *List) IndexOf(item any) int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	for i, v := range self.items {
		if valuesEqual(v, item) {
			return i
		}
	}
	return -1
}

func (self *List) AddCollectionChangedCallback(callback CollectionChangedFunction) func() {
	return self.collectionChangedCallbacks.Subscribe(callback)
}

func (self *List) notify(event *CollectionChangedEvent) error {
	errs := []error{}
	for _, callback := range self.collectionChangedCallbacks.Get() {
		errs = append(errs, callback(event))
	}
	return joinErrors(errs...)
}

func (self *List) Add(items ...any) error {
	self.stateLock.Lock()
	index := len(self.items)
	self.stateLock.Unlock()
	return self.Insert(index, items...)
}

func (self *List) Insert(index int, items ...any) error {
	if len(items) == 0 {
		return nil
	}
	self.stateLock.Lock()
	if index < 0 || len(self.items) < index {
		n := len(self.items)
		self.stateLock.Unlock()
		return fmt.Errorf("Insert index %d out of range [0, %d].", index, n)
	}
	newItems := slices.Clone(items)
	self.items = slices.Insert(self.items, index, newItems...)
	self.stateLock.Unlock()

	return self.notify(&CollectionChangedEvent{
		Action:        CollectionActionAdd,
		NewItems:      newItems,
		NewStartIndex: index,
	})
}

func (self *List) RemoveAt(index int) error {
	return self.RemoveRange(index, 1)
}

// removes the first equal item. Removing an item that is not present does nothing.
func (self *List) Remove(item any) error {
	index := self.IndexOf(item)
	if index < 0 {
		return nil
	}
	return self.RemoveAt(index)
}

func (self *List) RemoveRange(index int, count int) error {
	if count == 0 {
		return nil
	}
	self.stateLock.Lock()
	if index < 0 || count < 0 || len(self.items) < index+count {
		n := len(self.items)
		self.stateLock.Unlock()
		return fmt.Errorf("Remove range [%d, %d) out of range [0, %d).", index, index+count, n)
	}
	oldItems := slices.Clone(self.items[index : index+count])
	self.items = slices.Delete(self.items, index, index+count)
	self.stateLock.Unlock()

	return self.notify(&CollectionChangedEvent{
		Action:        CollectionActionRemove,
		OldItems:      oldItems,
		OldStartIndex: index,
	})
}

// replaces `count` items at `index` with `items`
func (self *List) Replace(index int, count int, items ...any) error {
	if count == 0 && len(items) == 0 {
		return nil
	}
	self.stateLock.Lock()
	if index < 0 || count < 0 || len(self.items) < index+count {
		n := len(self.items)
		self.stateLock.Unlock()
		return fmt.Errorf("Replace range [%d, %d) out of range [0, %d).", index, index+count, n)
	}
	oldItems := slices.Clone(self.items[index : index+count])
	newItems := slices.Clone(items)
	self.items = slices.Replace(self.items, index, index+count, newItems...)
	self.stateLock.Unlock()

	return self.notify(&CollectionChangedEvent{
		Action:        CollectionActionReplace,
		NewItems:      newItems,
		NewStartIndex: index,
		OldItems:      oldItems,
		OldStartIndex: index,
	})
}

func (self *List) Set(index int, item any) error {
	return self.Replace(index, 1, item)
}

// `newIndex` is the position of the item after the move
func (self *List) Move(oldIndex int, newIndex int) error {
	return self.MoveRange(oldIndex, 1, newIndex)
}

// `newIndex` is the position of the first moved item after the move
func (self *List) MoveRange(oldIndex int, count int, newIndex int) error {
	if count == 0 || oldIndex == newIndex {
		return nil
	}
	self.stateLock.Lock()
	n := len(self.items)
	if oldIndex < 0 || count < 0 || n < oldIndex+count || newIndex < 0 || n-count < newIndex {
		self.stateLock.Unlock()
		return fmt.Errorf("Move [%d, %d)->%d out of range [0, %d).", oldIndex, oldIndex+count, newIndex, n)
	}
	moved := slices.Clone(self.items[oldIndex : oldIndex+count])
	self.items = slices.Delete(self.items, oldIndex, oldIndex+count)
	self.items = slices.Insert(self.items, newIndex, moved...)
	self.stateLock.Unlock()

	return self.notify(&CollectionChangedEvent{
		Action:        CollectionActionMove,
		NewItems:      moved,
		NewStartIndex: newIndex,
		OldItems:      moved,
		OldStartIndex: oldIndex,
	})
}

func (self *List) Clear() error {
	self.stateLock.Lock()
	if len(self.items) == 0 {
		self.stateLock.Unlock()
		return nil
	}
	oldItems := self.items
	self.items = []any{}
	self.stateLock.Unlock()

	return self.notify(&CollectionChangedEvent{
		Action:        CollectionActionReset,
		OldItems:      oldItems,
		OldStartIndex: 0,
	})
}

func (self *List) MarshalJSON() ([]byte, error) {
	items := self.Items()
	if items == nil {
		items = []any{}
	}
	return json.Marshal(items)
}

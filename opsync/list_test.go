package opsync

import (
	"errors"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestList(t *testing.T) {
	list := NewList("a", "b")

	events := []*CollectionChangedEvent{}
	unsub := list.AddCollectionChangedCallback(func(event *CollectionChangedEvent) error {
		events = append(events, event)
		return nil
	})

	assert.Equal(t, list.Add("c", "d"), nil)
	assert.Equal(t, list.Items(), []any{"a", "b", "c", "d"})
	assert.Equal(t, events[0].Action, CollectionActionAdd)
	assert.Equal(t, events[0].NewStartIndex, 2)
	assert.Equal(t, events[0].NewItems, []any{"c", "d"})

	assert.Equal(t, list.Insert(0, "z"), nil)
	assert.Equal(t, list.Items(), []any{"z", "a", "b", "c", "d"})

	assert.Equal(t, list.Remove("a"), nil)
	assert.Equal(t, list.Items(), []any{"z", "b", "c", "d"})
	assert.Equal(t, events[2].Action, CollectionActionRemove)
	assert.Equal(t, events[2].OldStartIndex, 1)
	assert.Equal(t, events[2].OldItems, []any{"a"})

	// not present
	assert.Equal(t, list.Remove("a"), nil)
	assert.Equal(t, len(events), 3)

	assert.Equal(t, list.Set(0, "y"), nil)
	assert.Equal(t, events[3].Action, CollectionActionReplace)
	assert.Equal(t, events[3].OldItems, []any{"z"})
	assert.Equal(t, events[3].NewItems, []any{"y"})

	assert.Equal(t, list.Move(0, 3), nil)
	assert.Equal(t, list.Items(), []any{"b", "c", "d", "y"})
	assert.Equal(t, events[4].Action, CollectionActionMove)
	assert.Equal(t, events[4].OldStartIndex, 0)
	assert.Equal(t, events[4].NewStartIndex, 3)

	assert.Equal(t, list.MoveRange(1, 2, 0), nil)
	assert.Equal(t, list.Items(), []any{"c", "d", "b", "y"})
	assert.Equal(t, list.IndexOf("b"), 2)
	assert.Equal(t, list.IndexOf("a"), -1)

	assert.Equal(t, list.Clear(), nil)
	assert.Equal(t, list.Len(), 0)
	assert.Equal(t, events[6].Action, CollectionActionReset)
	assert.Equal(t, events[6].OldItems, []any{"c", "d", "b", "y"})

	// no-ops raise no event
	assert.Equal(t, list.Clear(), nil)
	assert.Equal(t, list.Insert(0), nil)
	assert.Equal(t, len(events), 7)

	unsub()
	assert.Equal(t, list.Add("x"), nil)
	assert.Equal(t, len(events), 7)
}

func TestListOutOfRange(t *testing.T) {
	list := NewList(1, 2, 3)

	assert.NotEqual(t, list.Insert(4, 0), nil)
	assert.NotEqual(t, list.Insert(-1, 0), nil)
	assert.NotEqual(t, list.RemoveRange(2, 2), nil)
	assert.NotEqual(t, list.Replace(3, 1, 0), nil)
	assert.NotEqual(t, list.MoveRange(0, 2, 2), nil)
	assert.NotEqual(t, list.Move(3, 0), nil)
	assert.Equal(t, list.Items(), []any{1, 2, 3})
}

func TestListCallbackError(t *testing.T) {
	list := NewList()
	callbackErr := errors.New("callback error")
	list.AddCollectionChangedCallback(func(event *CollectionChangedEvent) error {
		return callbackErr
	})

	// the edit is applied even when a callback fails
	err := list.Add(1)
	assert.NotEqual(t, err, nil)
	assert.Equal(t, list.Items(), []any{1})
}

func TestListJson(t *testing.T) {
	b, err := NewList().MarshalJSON()
	assert.Equal(t, err, nil)
	assert.Equal(t, string(b), "[]")

	b, err = NewList(1, "a").MarshalJSON()
	assert.Equal(t, err, nil)
	assert.Equal(t, string(b), `[1,"a"]`)
}

func TestObjectProperties(t *testing.T) {
	object := newTestObject("Node", "Name")

	assert.NotEqual(t, object.Set("Missing", 1), nil)
	// a property declared on another object
	assert.NotEqual(t, object.SetValue(NewProperty("Name", "string"), 1), nil)

	assert.Equal(t, object.Set("Name", "a"), nil)
	assert.Equal(t, object.Get("Name"), "a")
	assert.Equal(t, object.Get("Missing"), nil)

	notifyCount := 0
	object.AddPropertyChangedCallback(func(event *PropertyChangedEvent) error {
		notifyCount += 1
		return nil
	})
	// equal values do not notify
	assert.Equal(t, object.Set("Name", "a"), nil)
	assert.Equal(t, notifyCount, 0)
	assert.Equal(t, object.Set("Name", nil), nil)
	assert.Equal(t, notifyCount, 1)
	assert.Equal(t, object.Get("Name"), nil)

	parent := newTestObject("Node")
	assert.Equal(t, object.SetParent(parent), nil)
	assert.Equal(t, object.Parent(), TrackedObject(parent))

	defer func() {
		assert.NotEqual(t, recover(), nil)
	}()
	NewObject("Node", NewProperty("A", "string"), NewProperty("A", "string"))
}

func TestClassifyValue(t *testing.T) {
	var nilObject *Object
	assert.Equal(t, ClassifyValue(nil), PropertyKindScalar)
	assert.Equal(t, ClassifyValue(nilObject), PropertyKindScalar)
	assert.Equal(t, ClassifyValue(1), PropertyKindScalar)
	assert.Equal(t, ClassifyValue(NewList()), PropertyKindCollection)
	assert.Equal(t, ClassifyValue(newTestObject("Node")), PropertyKindObject)

	assert.Equal(t, valuesEqual(nil, nilObject), true)
	assert.Equal(t, valuesEqual(1, int64(1)), false)
	assert.Equal(t, valuesEqual([]int{1}, []int{1}), false)
	assert.Equal(t, valuesEqual("a", "a"), true)
}

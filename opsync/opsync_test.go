package opsync

import (
	"encoding/json"
	"flag"
	"testing"

	"github.com/go-playground/assert/v2"
)

func init() {
	initGlog()
}

func initGlog() {
	flag.Set("logtostderr", "true")
	flag.Set("stderrthreshold", "INFO")
	flag.Set("v", "0")
}

func TestIdOrder(t *testing.T) {
	// ulids are ordered by create time
	a := NewId()
	for range 1024 {
		b := NewId()
		assert.Equal(t, a.LessThan(b), true)
		assert.Equal(t, b.LessThan(a), false)
		a = b
	}
}

func TestIdParse(t *testing.T) {
	id := NewId()

	parsedId, err := ParseId(id.String())
	assert.Equal(t, err, nil)
	assert.Equal(t, parsedId, id)

	b, err := json.Marshal(id)
	assert.Equal(t, err, nil)
	var unmarshalledId Id
	err = json.Unmarshal(b, &unmarshalledId)
	assert.Equal(t, err, nil)
	assert.Equal(t, unmarshalledId, id)

	bytesId, err := IdFromBytes(id.Bytes())
	assert.Equal(t, err, nil)
	assert.Equal(t, bytesId, id)

	_, err = IdFromBytes([]byte{1, 2, 3})
	assert.NotEqual(t, err, nil)

	_, err = ParseId("not an id")
	assert.NotEqual(t, err, nil)

	assert.Equal(t, Id{}.IsZero(), true)
	assert.Equal(t, id.IsZero(), false)
}

func TestCallbackList(t *testing.T) {
	callbacks := NewCallbackList[func() int]()

	aId := callbacks.Add(func() int { return 1 })
	unsubB := callbacks.Subscribe(func() int { return 2 })
	callbacks.Add(func() int { return 3 })
	assert.Equal(t, callbacks.Len(), 3)

	// a snapshot is not changed by later updates
	snapshot := callbacks.Get()
	callbacks.Remove(aId)
	assert.Equal(t, len(snapshot), 3)
	assert.Equal(t, callbacks.Len(), 2)

	unsubB()
	unsubB()
	callbacks.Remove(aId)
	assert.Equal(t, callbacks.Len(), 1)
	assert.Equal(t, callbacks.Get()[0](), 3)
}

func TestHandleError(t *testing.T) {
	handled := []string{}
	r := HandleError(func() {
		panic("test")
	}, func() {
		handled = append(handled, "func")
	}, func(err error) {
		handled = append(handled, err.Error())
	})
	assert.Equal(t, r, "test")
	assert.Equal(t, handled, []string{"func", "test"})

	r = HandleError(func() {})
	assert.Equal(t, r, nil)
}

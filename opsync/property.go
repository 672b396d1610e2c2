package opsync

import (
	"reflect"
	"sync/atomic"
)

var nextPropertyId atomic.Int64

// a declared property of the reflection model.
// Ids are unique in the process and stable for the property's lifetime.
type Property struct {
	id        int
	name      string
	valueType string
	tracked   bool
}

func NewProperty(name string, valueType string) *Property {
	return &Property{
		id:        int(nextPropertyId.Add(1)),
		name:      name,
		valueType: valueType,
		tracked:   true,
	}
}

// changes to an untracked property are never published
func NewUntrackedProperty(name string, valueType string) *Property {
	property := NewProperty(name, valueType)
	property.tracked = false
	return property
}

func (self *Property) Id() int {
	return self.id
}

func (self *Property) Name() string {
	return self.name
}

func (self *Property) ValueType() string {
	return self.valueType
}

func (self *Property) Tracked() bool {
	return self.tracked
}

func (self *Property) String() string {
	return self.name
}

// The back-link from a child to its parent.
// Publishers never follow it, since walking it would climb back up the tree.
var ParentProperty = NewProperty("Parent", "object")

type PropertyKind int

const (
	PropertyKindScalar     PropertyKind = 0
	PropertyKindCollection PropertyKind = 1
	PropertyKindObject     PropertyKind = 2
)

func (self PropertyKind) String() string {
	switch self {
	case PropertyKindCollection:
		return "collection"
	case PropertyKindObject:
		return "object"
	default:
		return "scalar"
	}
}

// computed once per assigned value. Nil and typed nil values are scalars.
func ClassifyValue(value any) PropertyKind {
	if isNilValue(value) {
		return PropertyKindScalar
	}
	switch value.(type) {
	case TrackedCollection:
		return PropertyKindCollection
	case TrackedObject:
		return PropertyKindObject
	default:
		return PropertyKindScalar
	}
}

func isNilValue(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return v.IsNil()
	default:
		return false
	}
}

func valuesEqual(a any, b any) bool {
	if isNilValue(a) || isNilValue(b) {
		return isNilValue(a) && isNilValue(b)
	}
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	if !reflect.TypeOf(a).Comparable() {
		return false
	}
	equal := false
	// comparable types can still hold uncomparable interface values
	HandleError(func() {
		equal = a == b
	})
	return equal
}

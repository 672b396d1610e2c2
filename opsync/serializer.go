package opsync

import (
	"encoding/json"
	"fmt"
)

// Serializer converts values to the opaque payloads carried by update and insert operations.
type Serializer interface {
	// nil values serialize to nil
	Serialize(value any) ([]byte, error)
	// the type tag carried with a value, e.g. for animations
	TypeName(value any) string
}

type TypeNamer interface {
	TypeName() string
}

type JsonSerializer struct {
}

func NewJsonSerializer() *JsonSerializer {
	return &JsonSerializer{}
}

func (self *JsonSerializer) Serialize(value any) ([]byte, error) {
	if isNilValue(value) {
		return nil, nil
	}
	return json.Marshal(value)
}

func (self *JsonSerializer) TypeName(value any) string {
	if isNilValue(value) {
		return ""
	}
	if typeNamer, ok := value.(TypeNamer); ok {
		return typeNamer.TypeName()
	}
	return fmt.Sprintf("%T", value)
}

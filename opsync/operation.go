package opsync

import (
	"encoding/json"
	"fmt"
)

type OperationType int

const (
	OperationTypeUnknown               OperationType = 0
	OperationTypeUpdatePropertyValue   OperationType = 1
	OperationTypeInsertCollectionItem  OperationType = 2
	OperationTypeRemoveCollectionRange OperationType = 3
	OperationTypeMoveCollectionItem    OperationType = 4
	OperationTypeMoveCollectionRange   OperationType = 5
)

func (self OperationType) String() string {
	switch self {
	case OperationTypeUpdatePropertyValue:
		return "UpdatePropertyValue"
	case OperationTypeInsertCollectionItem:
		return "InsertCollectionItem"
	case OperationTypeRemoveCollectionRange:
		return "RemoveCollectionRange"
	case OperationTypeMoveCollectionItem:
		return "MoveCollectionItem"
	case OperationTypeMoveCollectionRange:
		return "MoveCollectionRange"
	default:
		return fmt.Sprintf("OperationType(%d)", int(self))
	}
}

func ParseOperationType(s string) (OperationType, error) {
	for _, operationType := range []OperationType{
		OperationTypeUpdatePropertyValue,
		OperationTypeInsertCollectionItem,
		OperationTypeRemoveCollectionRange,
		OperationTypeMoveCollectionItem,
		OperationTypeMoveCollectionRange,
	} {
		if operationType.String() == s {
			return operationType, nil
		}
	}
	return OperationTypeUnknown, fmt.Errorf("Unknown operation type: %s", s)
}

// SyncOperation is one atomic, ordered description of a single graph mutation.
// The concrete type is one of the `*UpdatePropertyValue`, `*InsertCollectionItem`,
// `*RemoveCollectionRange`, `*MoveCollectionItem`, `*MoveCollectionRange` variants.
type SyncOperation interface {
	Header() *OperationHeader
	OperationType() OperationType
}

type OperationHeader struct {
	SequenceNumber uint64
	// id of the tracked object that owns the mutated slot
	ObjectId Id
	// dot-delimited, relative to the publishing root
	PropertyPath string
}

func (self *OperationHeader) Header() *OperationHeader {
	return self
}

// `Value` is nil when the slot was cleared
type UpdatePropertyValue struct {
	OperationHeader
	ValueType string
	Value     []byte
	OldValue  []byte
}

func (self *UpdatePropertyValue) OperationType() OperationType {
	return OperationTypeUpdatePropertyValue
}

type InsertCollectionItem struct {
	OperationHeader
	Index int
	Item  []byte
}

func (self *InsertCollectionItem) OperationType() OperationType {
	return OperationTypeInsertCollectionItem
}

type RemoveCollectionRange struct {
	OperationHeader
	Index int
	Count int
}

func (self *RemoveCollectionRange) OperationType() OperationType {
	return OperationTypeRemoveCollectionRange
}

// moves are addressed by id since indexes alone are ambiguous under concurrent edits
type MoveCollectionItem struct {
	OperationHeader
	ItemId   Id
	NewIndex int
}

func (self *MoveCollectionItem) OperationType() OperationType {
	return OperationTypeMoveCollectionItem
}

// the moved block keeps its internal order
type MoveCollectionRange struct {
	OperationHeader
	OldIndex int
	NewIndex int
	Count    int
}

func (self *MoveCollectionRange) OperationType() OperationType {
	return OperationTypeMoveCollectionRange
}

func OperationString(op SyncOperation) string {
	header := op.Header()
	switch v := op.(type) {
	case *UpdatePropertyValue:
		return fmt.Sprintf("[%d]update %s (%s) %d bytes", header.SequenceNumber, header.PropertyPath, v.ValueType, len(v.Value))
	case *InsertCollectionItem:
		return fmt.Sprintf("[%d]insert %s[%d] %d bytes", header.SequenceNumber, header.PropertyPath, v.Index, len(v.Item))
	case *RemoveCollectionRange:
		return fmt.Sprintf("[%d]remove %s[%d:%d]", header.SequenceNumber, header.PropertyPath, v.Index, v.Index+v.Count)
	case *MoveCollectionItem:
		return fmt.Sprintf("[%d]move %s %s->%d", header.SequenceNumber, header.PropertyPath, v.ItemId, v.NewIndex)
	case *MoveCollectionRange:
		return fmt.Sprintf("[%d]move %s[%d:%d]->%d", header.SequenceNumber, header.PropertyPath, v.OldIndex, v.OldIndex+v.Count, v.NewIndex)
	default:
		return fmt.Sprintf("[%d]%s %s", header.SequenceNumber, op.OperationType(), header.PropertyPath)
	}
}

// self-describing json form, used for logs and the control tool
type operationJson struct {
	Type           string          `json:"type"`
	SequenceNumber uint64          `json:"sequence_number"`
	ObjectId       Id              `json:"object_id"`
	PropertyPath   string          `json:"property_path"`
	ValueType      string          `json:"value_type,omitempty"`
	Value          json.RawMessage `json:"value,omitempty"`
	OldValue       json.RawMessage `json:"old_value,omitempty"`
	Index          *int            `json:"index,omitempty"`
	Item           json.RawMessage `json:"item,omitempty"`
	Count          *int            `json:"count,omitempty"`
	ItemId         *Id             `json:"item_id,omitempty"`
	OldIndex       *int            `json:"old_index,omitempty"`
	NewIndex       *int            `json:"new_index,omitempty"`
}

// payloads that are not valid json are rendered as json strings
func rawJson(b []byte) json.RawMessage {
	if b == nil {
		return nil
	}
	if json.Valid(b) {
		return json.RawMessage(b)
	}
	s, _ := json.Marshal(string(b))
	return json.RawMessage(s)
}

func MarshalOperationJson(op SyncOperation) ([]byte, error) {
	header := op.Header()
	j := &operationJson{
		Type:           op.OperationType().String(),
		SequenceNumber: header.SequenceNumber,
		ObjectId:       header.ObjectId,
		PropertyPath:   header.PropertyPath,
	}
	switch v := op.(type) {
	case *UpdatePropertyValue:
		j.ValueType = v.ValueType
		j.Value = rawJson(v.Value)
		j.OldValue = rawJson(v.OldValue)
	case *InsertCollectionItem:
		j.Index = &v.Index
		j.Item = rawJson(v.Item)
	case *RemoveCollectionRange:
		j.Index = &v.Index
		j.Count = &v.Count
	case *MoveCollectionItem:
		j.ItemId = &v.ItemId
		j.NewIndex = &v.NewIndex
	case *MoveCollectionRange:
		j.OldIndex = &v.OldIndex
		j.NewIndex = &v.NewIndex
		j.Count = &v.Count
	default:
		return nil, fmt.Errorf("Unknown operation: %T", v)
	}
	return json.Marshal(j)
}

func UnmarshalOperationJson(b []byte) (SyncOperation, error) {
	j := &operationJson{}
	if err := json.Unmarshal(b, j); err != nil {
		return nil, err
	}
	operationType, err := ParseOperationType(j.Type)
	if err != nil {
		return nil, err
	}
	header := OperationHeader{
		SequenceNumber: j.SequenceNumber,
		ObjectId:       j.ObjectId,
		PropertyPath:   j.PropertyPath,
	}
	intOrZero := func(v *int) int {
		if v == nil {
			return 0
		}
		return *v
	}
	bytesOrNil := func(v json.RawMessage) []byte {
		if len(v) == 0 {
			return nil
		}
		return []byte(v)
	}
	switch operationType {
	case OperationTypeUpdatePropertyValue:
		return &UpdatePropertyValue{
			OperationHeader: header,
			ValueType:       j.ValueType,
			Value:           bytesOrNil(j.Value),
			OldValue:        bytesOrNil(j.OldValue),
		}, nil
	case OperationTypeInsertCollectionItem:
		return &InsertCollectionItem{
			OperationHeader: header,
			Index:           intOrZero(j.Index),
			Item:            bytesOrNil(j.Item),
		}, nil
	case OperationTypeRemoveCollectionRange:
		return &RemoveCollectionRange{
			OperationHeader: header,
			Index:           intOrZero(j.Index),
			Count:           intOrZero(j.Count),
		}, nil
	case OperationTypeMoveCollectionItem:
		var itemId Id
		if j.ItemId != nil {
			itemId = *j.ItemId
		}
		return &MoveCollectionItem{
			OperationHeader: header,
			ItemId:          itemId,
			NewIndex:        intOrZero(j.NewIndex),
		}, nil
	default:
		return &MoveCollectionRange{
			OperationHeader: header,
			OldIndex:        intOrZero(j.OldIndex),
			NewIndex:        intOrZero(j.NewIndex),
			Count:           intOrZero(j.Count),
		}, nil
	}
}

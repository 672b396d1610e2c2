package opsync

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Frames follow `protocol/opsync.proto`.
// A frame is self-describing: the version and operation type come first,
// then the common header, then the variant fields.
// Decoders skip fields they do not know so that newer minor additions stay readable.

const FrameVersion = 1

const (
	frameFieldVersion        protowire.Number = 1
	frameFieldType           protowire.Number = 2
	frameFieldSequenceNumber protowire.Number = 3
	frameFieldObjectId       protowire.Number = 4
	frameFieldPropertyPath   protowire.Number = 5

	frameFieldValueType protowire.Number = 10
	frameFieldValue     protowire.Number = 11
	frameFieldOldValue  protowire.Number = 12
	frameFieldIndex     protowire.Number = 13
	frameFieldItem      protowire.Number = 14
	frameFieldCount     protowire.Number = 15
	frameFieldItemId    protowire.Number = 16
	frameFieldOldIndex  protowire.Number = 17
	frameFieldNewIndex  protowire.Number = 18
)

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendIndexField(b []byte, num protowire.Number, v int) ([]byte, error) {
	if v < 0 {
		return nil, fmt.Errorf("Negative index in field %d: %d", num, v)
	}
	return appendVarintField(b, num, uint64(v)), nil
}

func EncodeOperation(op SyncOperation) ([]byte, error) {
	header := op.Header()

	b := []byte{}
	b = appendVarintField(b, frameFieldVersion, FrameVersion)
	b = appendVarintField(b, frameFieldType, uint64(op.OperationType()))
	b = appendVarintField(b, frameFieldSequenceNumber, header.SequenceNumber)
	b = appendBytesField(b, frameFieldObjectId, header.ObjectId.Bytes())
	b = protowire.AppendTag(b, frameFieldPropertyPath, protowire.BytesType)
	b = protowire.AppendString(b, header.PropertyPath)

	var err error
	switch v := op.(type) {
	case *UpdatePropertyValue:
		b = protowire.AppendTag(b, frameFieldValueType, protowire.BytesType)
		b = protowire.AppendString(b, v.ValueType)
		// absent means nil
		if v.Value != nil {
			b = appendBytesField(b, frameFieldValue, v.Value)
		}
		if v.OldValue != nil {
			b = appendBytesField(b, frameFieldOldValue, v.OldValue)
		}
	case *InsertCollectionItem:
		if b, err = appendIndexField(b, frameFieldIndex, v.Index); err != nil {
			return nil, err
		}
		if v.Item != nil {
			b = appendBytesField(b, frameFieldItem, v.Item)
		}
	case *RemoveCollectionRange:
		if b, err = appendIndexField(b, frameFieldIndex, v.Index); err != nil {
			return nil, err
		}
		if b, err = appendIndexField(b, frameFieldCount, v.Count); err != nil {
			return nil, err
		}
	case *MoveCollectionItem:
		b = appendBytesField(b, frameFieldItemId, v.ItemId.Bytes())
		if b, err = appendIndexField(b, frameFieldNewIndex, v.NewIndex); err != nil {
			return nil, err
		}
	case *MoveCollectionRange:
		if b, err = appendIndexField(b, frameFieldOldIndex, v.OldIndex); err != nil {
			return nil, err
		}
		if b, err = appendIndexField(b, frameFieldNewIndex, v.NewIndex); err != nil {
			return nil, err
		}
		if b, err = appendIndexField(b, frameFieldCount, v.Count); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("Unknown operation: %T", v)
	}
	return b, nil
}

func RequireEncodeOperation(op SyncOperation) []byte {
	b, err := EncodeOperation(op)
	if err != nil {
		panic(err)
	}
	return b
}

type frameFields struct {
	version        uint64
	operationType  OperationType
	sequenceNumber uint64
	objectId       Id
	propertyPath   string
	valueType      string
	value          []byte
	oldValue       []byte
	index          int
	item           []byte
	count          int
	itemId         Id
	oldIndex       int
	newIndex       int
}

func cloneBytes(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

func DecodeOperation(b []byte) (SyncOperation, error) {
	fields := &frameFields{}

	for 0 < len(b) {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]

		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
			switch num {
			case frameFieldIndex, frameFieldCount, frameFieldOldIndex, frameFieldNewIndex:
				if math.MaxInt32 < v {
					return nil, fmt.Errorf("Frame field %d out of range: %d", num, v)
				}
			}
			switch num {
			case frameFieldVersion:
				fields.version = v
			case frameFieldType:
				fields.operationType = OperationType(v)
			case frameFieldSequenceNumber:
				fields.sequenceNumber = v
			case frameFieldIndex:
				fields.index = int(v)
			case frameFieldCount:
				fields.count = int(v)
			case frameFieldOldIndex:
				fields.oldIndex = int(v)
			case frameFieldNewIndex:
				fields.newIndex = int(v)
			}
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
			var err error
			switch num {
			case frameFieldObjectId:
				fields.objectId, err = IdFromBytes(v)
			case frameFieldPropertyPath:
				fields.propertyPath = string(v)
			case frameFieldValueType:
				fields.valueType = string(v)
			case frameFieldValue:
				fields.value = cloneBytes(v)
			case frameFieldOldValue:
				fields.oldValue = cloneBytes(v)
			case frameFieldItem:
				fields.item = cloneBytes(v)
			case frameFieldItemId:
				fields.itemId, err = IdFromBytes(v)
			}
			if err != nil {
				return nil, err
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}

	if fields.version == 0 {
		return nil, fmt.Errorf("Frame is missing a version.")
	}
	if FrameVersion < fields.version {
		return nil, fmt.Errorf("Unsupported frame version: %d", fields.version)
	}

	header := OperationHeader{
		SequenceNumber: fields.sequenceNumber,
		ObjectId:       fields.objectId,
		PropertyPath:   fields.propertyPath,
	}
	switch fields.operationType {
	case OperationTypeUpdatePropertyValue:
		return &UpdatePropertyValue{
			OperationHeader: header,
			ValueType:       fields.valueType,
			Value:           fields.value,
			OldValue:        fields.oldValue,
		}, nil
	case OperationTypeInsertCollectionItem:
		return &InsertCollectionItem{
			OperationHeader: header,
			Index:           fields.index,
			Item:            fields.item,
		}, nil
	case OperationTypeRemoveCollectionRange:
		return &RemoveCollectionRange{
			OperationHeader: header,
			Index:           fields.index,
			Count:           fields.count,
		}, nil
	case OperationTypeMoveCollectionItem:
		return &MoveCollectionItem{
			OperationHeader: header,
			ItemId:          fields.itemId,
			NewIndex:        fields.newIndex,
		}, nil
	case OperationTypeMoveCollectionRange:
		return &MoveCollectionRange{
			OperationHeader: header,
			OldIndex:        fields.oldIndex,
			NewIndex:        fields.newIndex,
			Count:           fields.count,
		}, nil
	default:
		return nil, fmt.Errorf("Unknown operation type: %s", fields.operationType)
	}
}

func RequireDecodeOperation(b []byte) SyncOperation {
	op, err := DecodeOperation(b)
	if err != nil {
		panic(err)
	}
	return op
}

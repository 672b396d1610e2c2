package opsync

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/go-playground/assert/v2"
	"google.golang.org/protobuf/encoding/protowire"
)

func testOperations() []SyncOperation {
	objectId := NewId()
	return []SyncOperation{
		&UpdatePropertyValue{
			OperationHeader: OperationHeader{SequenceNumber: 1, ObjectId: objectId, PropertyPath: "Name"},
			ValueType:       "string",
			Value:           []byte(`"y"`),
			OldValue:        []byte(`"x"`),
		},
		&UpdatePropertyValue{
			OperationHeader: OperationHeader{SequenceNumber: 2, ObjectId: objectId, PropertyPath: "Child"},
			ValueType:       "object",
		},
		&InsertCollectionItem{
			OperationHeader: OperationHeader{SequenceNumber: 3, ObjectId: objectId, PropertyPath: "Items"},
			Index:           4,
			Item:            []byte(`{"a":1}`),
		},
		&RemoveCollectionRange{
			OperationHeader: OperationHeader{SequenceNumber: 4, ObjectId: objectId, PropertyPath: "Items"},
			Index:           1,
			Count:           2,
		},
		&MoveCollectionItem{
			OperationHeader: OperationHeader{SequenceNumber: 5, ObjectId: objectId, PropertyPath: "Items"},
			ItemId:          NewId(),
			NewIndex:        3,
		},
		&MoveCollectionRange{
			OperationHeader: OperationHeader{SequenceNumber: 1 << 40, ObjectId: objectId, PropertyPath: "A.B.Items"},
			OldIndex:        0,
			NewIndex:        7,
			Count:           3,
		},
	}
}

func TestFrameRoundTrip(t *testing.T) {
	for _, op := range testOperations() {
		frame, err := EncodeOperation(op)
		assert.Equal(t, err, nil)

		decodedOp, err := DecodeOperation(frame)
		assert.Equal(t, err, nil)
		assert.Equal(t, decodedOp.OperationType(), op.OperationType())
		assert.Equal(t, decodedOp, op)
	}
}

func TestFrameUnknownFields(t *testing.T) {
	op := testOperations()[0]
	frame := RequireEncodeOperation(op)

	// fields added by a newer minor revision
	frame = protowire.AppendTag(frame, 99, protowire.VarintType)
	frame = protowire.AppendVarint(frame, 12345)
	frame = protowire.AppendTag(frame, 100, protowire.BytesType)
	frame = protowire.AppendBytes(frame, []byte("future"))
	frame = protowire.AppendTag(frame, 101, protowire.Fixed32Type)
	frame = protowire.AppendFixed32(frame, 7)

	decodedOp, err := DecodeOperation(frame)
	assert.Equal(t, err, nil)
	assert.Equal(t, decodedOp, op)
}

func TestFrameVersion(t *testing.T) {
	newerFrame := protowire.AppendTag(nil, frameFieldVersion, protowire.VarintType)
	newerFrame = protowire.AppendVarint(newerFrame, FrameVersion+1)
	newerFrame = protowire.AppendTag(newerFrame, frameFieldType, protowire.VarintType)
	newerFrame = protowire.AppendVarint(newerFrame, uint64(OperationTypeRemoveCollectionRange))
	_, err := DecodeOperation(newerFrame)
	assert.NotEqual(t, err, nil)

	missingVersionFrame := protowire.AppendTag(nil, frameFieldType, protowire.VarintType)
	missingVersionFrame = protowire.AppendVarint(missingVersionFrame, uint64(OperationTypeRemoveCollectionRange))
	_, err = DecodeOperation(missingVersionFrame)
	assert.NotEqual(t, err, nil)

	unknownTypeFrame := protowire.AppendTag(nil, frameFieldVersion, protowire.VarintType)
	unknownTypeFrame = protowire.AppendVarint(unknownTypeFrame, FrameVersion)
	unknownTypeFrame = protowire.AppendTag(unknownTypeFrame, frameFieldType, protowire.VarintType)
	unknownTypeFrame = protowire.AppendVarint(unknownTypeFrame, 42)
	_, err = DecodeOperation(unknownTypeFrame)
	assert.NotEqual(t, err, nil)
}

func TestFrameErrors(t *testing.T) {
	_, err := EncodeOperation(&InsertCollectionItem{Index: -1})
	assert.NotEqual(t, err, nil)

	frame := RequireEncodeOperation(testOperations()[2])
	_, err = DecodeOperation(frame[:len(frame)-3])
	assert.NotEqual(t, err, nil)

	// indexes and counts must fit an int32
	for _, fieldNumber := range []protowire.Number{frameFieldIndex, frameFieldCount, frameFieldOldIndex, frameFieldNewIndex} {
		hugeFrame := protowire.AppendTag(nil, frameFieldVersion, protowire.VarintType)
		hugeFrame = protowire.AppendVarint(hugeFrame, FrameVersion)
		hugeFrame = protowire.AppendTag(hugeFrame, frameFieldType, protowire.VarintType)
		hugeFrame = protowire.AppendVarint(hugeFrame, uint64(OperationTypeMoveCollectionRange))
		hugeFrame = protowire.AppendTag(hugeFrame, fieldNumber, protowire.VarintType)
		hugeFrame = protowire.AppendVarint(hugeFrame, 1<<63)
		_, err = DecodeOperation(hugeFrame)
		assert.NotEqual(t, err, nil)
	}

	maxFrame := protowire.AppendTag(nil, frameFieldVersion, protowire.VarintType)
	maxFrame = protowire.AppendVarint(maxFrame, FrameVersion)
	maxFrame = protowire.AppendTag(maxFrame, frameFieldType, protowire.VarintType)
	maxFrame = protowire.AppendVarint(maxFrame, uint64(OperationTypeRemoveCollectionRange))
	maxFrame = protowire.AppendTag(maxFrame, frameFieldCount, protowire.VarintType)
	maxFrame = protowire.AppendVarint(maxFrame, math.MaxInt32)
	op, err := DecodeOperation(maxFrame)
	assert.Equal(t, err, nil)
	assert.Equal(t, op.(*RemoveCollectionRange).Count, math.MaxInt32)
}

func TestOperationJson(t *testing.T) {
	for _, op := range testOperations() {
		b, err := MarshalOperationJson(op)
		assert.Equal(t, err, nil)

		decodedOp, err := UnmarshalOperationJson(b)
		assert.Equal(t, err, nil)
		assert.Equal(t, decodedOp, op)
	}

	// payloads that are not json are carried as strings
	b, err := MarshalOperationJson(&InsertCollectionItem{
		OperationHeader: OperationHeader{SequenceNumber: 1, PropertyPath: "Items"},
		Item:            []byte("not json"),
	})
	assert.Equal(t, err, nil)
	var j map[string]any
	assert.Equal(t, json.Unmarshal(b, &j), nil)
	assert.Equal(t, j["type"], "InsertCollectionItem")
	assert.Equal(t, j["item"], "not json")

	_, err = UnmarshalOperationJson([]byte(`{"type":"Nope"}`))
	assert.NotEqual(t, err, nil)
}

package opsync

import (
	"github.com/golang/glog"
)

// CollectionPublisher turns structural edits of one collection into
// insert, remove and move operations.
//
// Items are serialized once when inserted. Later changes inside an item are only
// published when `PublisherSettings.TrackCollectionItems` is set.
type CollectionPublisher struct {
	*publisherBase

	owner      TrackedObject
	collection TrackedCollection

	// item id -> publisher, when items are tracked
	itemPublishers map[Id]*collectionItemPublisher

	collectionChangedUnsub func()
}

type collectionItemPublisher struct {
	publisher *ObjectPublisher
	// the item may appear more than once in the collection
	count int
}

func NewCollectionPublisher(
	observer Observer,
	owner TrackedObject,
	collection TrackedCollection,
	path string,
	sequence *SequenceGenerator,
	filter *PathFilter,
	settings *PublisherSettings,
) (*CollectionPublisher, error) {
	return newCollectionPublisher(nil, observer, owner, collection, path, sequence, filter, settings)
}

func newCollectionPublisher(
	parent *OperationStream,
	observer Observer,
	owner TrackedObject,
	collection TrackedCollection,
	path string,
	sequence *SequenceGenerator,
	filter *PathFilter,
	settings *PublisherSettings,
) (*CollectionPublisher, error) {
	if isNilValue(owner) {
		return nil, newConstructionError(path, "missing owner")
	}
	if isNilValue(collection) {
		return nil, newConstructionError(path, "missing collection")
	}
	base, err := newPublisherBase(parent, observer, path, sequence, filter, settings)
	if err != nil {
		return nil, err
	}

	publisher := &CollectionPublisher{
		publisherBase:  base,
		owner:          owner,
		collection:     collection,
		itemPublishers: map[Id]*collectionItemPublisher{},
	}

	if publisher.settings.TrackCollectionItems {
		items := []any{}
		for i := 0; i < collection.Len(); i += 1 {
			items = append(items, collection.At(i))
		}
		if err := publisher.trackItems(items); err != nil {
			publisher.Close()
			return nil, err
		}
	}

	publisher.collectionChangedUnsub = collection.AddCollectionChangedCallback(publisher.collectionChanged)
	return publisher, nil
}

func (self *CollectionPublisher) Collection() TrackedCollection {
	return self.collection
}

// the live item publishers. Empty unless items are tracked.
func (self *CollectionPublisher) ItemPublishers() map[Id]*ObjectPublisher {
	itemPublishers := map[Id]*ObjectPublisher{}
	for itemId, itemPublisher := range self.itemPublishers {
		itemPublishers[itemId] = itemPublisher.publisher
	}
	return itemPublishers
}

func (self *CollectionPublisher) trackItems(items []any) error {
	if !self.settings.TrackCollectionItems {
		return nil
	}
	for _, item := range items {
		if ClassifyValue(item) != PropertyKindObject {
			continue
		}
		trackedItem := item.(TrackedObject)
		itemId := trackedItem.ObjectId()
		if itemPublisher, ok := self.itemPublishers[itemId]; ok {
			itemPublisher.count += 1
			continue
		}
		publisher, err := newObjectPublisher(
			self.operations,
			nil,
			trackedItem,
			self.sequence,
			self.path,
			self.filter,
			self.settings,
		)
		if err != nil {
			return err
		}
		self.itemPublishers[itemId] = &collectionItemPublisher{
			publisher: publisher,
			count:     1,
		}
	}
	return nil
}

func (self *CollectionPublisher) untrackItems(items []any) {
	if !self.settings.TrackCollectionItems {
		return
	}
	closed := []Publisher{}
	for _, item := range items {
		identified, ok := item.(Identified)
		if !ok || isNilValue(item) {
			continue
		}
		itemId := identified.ObjectId()
		itemPublisher, ok := self.itemPublishers[itemId]
		if !ok {
			continue
		}
		itemPublisher.count -= 1
		if itemPublisher.count <= 0 {
			delete(self.itemPublishers, itemId)
			closed = append(closed, itemPublisher.publisher)
		}
	}
	closePublishers(self.path, closed...)
}

func (self *CollectionPublisher) header() OperationHeader {
	return OperationHeader{
		ObjectId:     self.owner.ObjectId(),
		PropertyPath: self.path,
	}
}

func (self *CollectionPublisher) emitInserts(startIndex int, serializedItems [][]byte) {
	for i, item := range serializedItems {
		self.emit(&InsertCollectionItem{
			OperationHeader: self.header(),
			Index:           startIndex + i,
			Item:            item,
		})
	}
}

func (self *CollectionPublisher) emitRemove(index int, count int) {
	if count <= 0 {
		return
	}
	self.emit(&RemoveCollectionRange{
		OperationHeader: self.header(),
		Index:           index,
		Count:           count,
	})
}

// CollectionChangedFunction
func (self *CollectionPublisher) collectionChanged(event *CollectionChangedEvent) error {
	if self.closed {
		return nil
	}
	// item publishers follow the collection even while suppressed
	if self.suppressed() {
		switch event.Action {
		case CollectionActionAdd:
			return self.trackItems(event.NewItems)
		case CollectionActionReplace:
			self.untrackItems(event.OldItems)
			return self.trackItems(event.NewItems)
		case CollectionActionRemove, CollectionActionReset:
			self.untrackItems(event.OldItems)
		}
		return nil
	}

	switch event.Action {
	case CollectionActionAdd:
		trackErr := self.trackItems(event.NewItems)
		serializedItems, err := self.serializeItems(self.path, event.NewItems)
		if err != nil {
			return joinErrors(trackErr, err)
		}
		self.emitInserts(event.NewStartIndex, serializedItems)
		return trackErr

	case CollectionActionRemove:
		self.untrackItems(event.OldItems)
		self.emitRemove(event.OldStartIndex, len(event.OldItems))
		return nil

	case CollectionActionMove:
		count := len(event.OldItems)
		if count == 0 {
			return nil
		}
		if count == 1 {
			if identified, ok := event.OldItems[0].(Identified); ok && !isNilValue(identified) {
				self.emit(&MoveCollectionItem{
					OperationHeader: self.header(),
					ItemId:          identified.ObjectId(),
					NewIndex:        event.NewStartIndex,
				})
				return nil
			}
		}
		// items without a stable id move as a range
		self.emit(&MoveCollectionRange{
			OperationHeader: self.header(),
			OldIndex:        event.OldStartIndex,
			NewIndex:        event.NewStartIndex,
			Count:           count,
		})
		return nil

	case CollectionActionReplace:
		// a replace is a remove followed by inserts, never a single operation
		self.untrackItems(event.OldItems)
		trackErr := self.trackItems(event.NewItems)
		serializedItems, err := self.serializeItems(self.path, event.NewItems)
		if err != nil {
			return joinErrors(trackErr, err)
		}
		self.emitRemove(event.OldStartIndex, len(event.OldItems))
		self.emitInserts(event.NewStartIndex, serializedItems)
		return trackErr

	case CollectionActionReset:
		self.untrackItems(event.OldItems)
		self.emitRemove(0, len(event.OldItems))
		return nil

	default:
		glog.Infof("[pub]%s unknown collection action %s\n", self.path, event.Action)
		return nil
	}
}

func (self *CollectionPublisher) Close() {
	if self.closed {
		return
	}
	self.closed = true

	if self.collectionChangedUnsub != nil {
		self.collectionChangedUnsub()
		self.collectionChangedUnsub = nil
	}

	itemPublishers := []Publisher{}
	for _, itemPublisher := range self.itemPublishers {
		itemPublishers = append(itemPublishers, itemPublisher.publisher)
	}
	self.itemPublishers = map[Id]*collectionItemPublisher{}
	closePublishers(self.path, itemPublishers...)

	glog.V(2).Infof("[pub]close collection %s\n", self.path)
	self.complete()
}

package opsync

import (
	"github.com/golang/glog"
)

// valueSlot holds the publisher for the value currently assigned to one property.
// Reflection properties and both engine property channels go through it, so that
// replacing a value always closes the old publisher before the new one is built.
type valueSlot struct {
	parent *publisherBase
	owner  TrackedObject
	path   string
	filter *PathFilter

	kind      PropertyKind
	publisher Publisher
}

func newValueSlot(parent *publisherBase, owner TrackedObject, path string, filter *PathFilter) *valueSlot {
	return &valueSlot{
		parent: parent,
		owner:  owner,
		path:   path,
		filter: filter,
	}
}

// closes the current publisher and builds one for `value` if it is a collection or object.
// On error the slot is left empty.
func (self *valueSlot) replace(value any) error {
	self.clear()

	kind := ClassifyValue(value)
	var publisher Publisher
	var err error
	switch kind {
	case PropertyKindCollection:
		publisher, err = newCollectionPublisher(
			self.parent.operations,
			nil,
			self.owner,
			value.(TrackedCollection),
			self.path,
			self.parent.sequence,
			self.filter,
			self.parent.settings,
		)
	case PropertyKindObject:
		publisher, err = newObjectPublisher(
			self.parent.operations,
			nil,
			value.(TrackedObject),
			self.parent.sequence,
			self.path,
			self.filter,
			self.parent.settings,
		)
	default:
		return nil
	}
	if err != nil {
		return err
	}
	glog.V(2).Infof("[pub]build %s %s\n", kind, self.path)
	self.kind = kind
	self.publisher = publisher
	return nil
}

func (self *valueSlot) clear() {
	if self.publisher != nil {
		publisher := self.publisher
		self.publisher = nil
		self.kind = PropertyKindScalar
		closePublishers(self.path, publisher)
	}
}

package opsync

import (
	"github.com/golang/glog"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ObjectPublisher mirrors a whole tracked object.
// It keeps one slot per tracked property, builds child publishers for values that are
// collections or tracked objects, and one engine property publisher per engine property.
type ObjectPublisher struct {
	*publisherBase

	object TrackedObject

	// nil when all names are tracked
	trackedNames map[string]bool

	// property id -> slot
	slots            map[int]*valueSlot
	enginePublishers map[string]*EnginePropertyPublisher
	// engine property names in declaration order
	engineNames []string

	propertyChangedUnsub func()
}

func NewObjectPublisherWithDefaults(
	observer Observer,
	object TrackedObject,
	sequence *SequenceGenerator,
) (*ObjectPublisher, error) {
	return NewObjectPublisher(observer, object, sequence, "", nil, DefaultPublisherSettings())
}

// `observer` may be nil. The publisher still tracks and its stream can be subscribed.
// `filter` may be nil to publish everything.
func NewObjectPublisher(
	observer Observer,
	object TrackedObject,
	sequence *SequenceGenerator,
	path string,
	filter *PathFilter,
	settings *PublisherSettings,
) (*ObjectPublisher, error) {
	return newObjectPublisher(nil, observer, object, sequence, path, filter, settings)
}

func newObjectPublisher(
	parent *OperationStream,
	observer Observer,
	object TrackedObject,
	sequence *SequenceGenerator,
	path string,
	filter *PathFilter,
	settings *PublisherSettings,
) (*ObjectPublisher, error) {
	if isNilValue(object) {
		return nil, newConstructionError(path, "missing tracked object")
	}
	base, err := newPublisherBase(parent, observer, path, sequence, filter, settings)
	if err != nil {
		return nil, err
	}

	trackedNames, all := filter.Names(path)
	if all {
		trackedNames = nil
	}

	publisher := &ObjectPublisher{
		publisherBase:    base,
		object:           object,
		trackedNames:     trackedNames,
		slots:            map[int]*valueSlot{},
		enginePublishers: map[string]*EnginePropertyPublisher{},
		engineNames:      []string{},
	}

	if err := publisher.initSlots(); err != nil {
		publisher.Close()
		return nil, err
	}
	publisher.propertyChangedUnsub = object.AddPropertyChangedCallback(publisher.propertyChanged)

	if engineObject, ok := object.(EngineObject); ok {
		if err := publisher.initEnginePublishers(engineObject); err != nil {
			publisher.Close()
			return nil, err
		}
	}

	return publisher, nil
}

func (self *ObjectPublisher) Object() TrackedObject {
	return self.object
}

func (self *ObjectPublisher) tracks(property *Property) bool {
	if property.Id() == ParentProperty.Id() || !property.Tracked() {
		return false
	}
	if self.trackedNames == nil {
		return true
	}
	return self.trackedNames[property.Name()]
}

func (self *ObjectPublisher) initSlots() error {
	seen := map[int]bool{}
	for _, property := range self.object.Properties() {
		if property == nil {
			return newConstructionError(self.path, "nil property declared")
		}
		if seen[property.Id()] {
			return newConstructionError(self.path, "property %s declared more than once", property.Name())
		}
		seen[property.Id()] = true

		if !self.tracks(property) {
			continue
		}

		slot := newValueSlot(self.publisherBase, self.object, self.childPath(property.Name()), self.filter)
		self.slots[property.Id()] = slot
		if err := slot.replace(self.object.GetValue(property)); err != nil {
			return err
		}
	}
	return nil
}

func (self *ObjectPublisher) initEnginePublishers(engineObject EngineObject) error {
	seen := map[string]bool{}
	for _, engineProperty := range engineObject.EngineProperties() {
		if isNilValue(engineProperty) {
			return newConstructionError(self.path, "nil engine property declared")
		}
		name := engineProperty.Name()
		if name == "" {
			return newConstructionError(self.path, "engine property without a name")
		}
		if seen[name] {
			return newConstructionError(self.path, "engine property %s declared more than once", name)
		}
		seen[name] = true
		if self.trackedNames != nil && !self.trackedNames[name] {
			continue
		}

		enginePublisher, err := newEnginePropertyPublisher(
			self.operations,
			nil,
			self.object,
			engineProperty,
			self.sequence,
			self.childPath(name),
			self.filter,
			self.settings,
		)
		if err != nil {
			return err
		}
		self.enginePublishers[name] = enginePublisher
		self.engineNames = append(self.engineNames, name)
	}
	return nil
}

// PropertyChangedFunction
func (self *ObjectPublisher) propertyChanged(event *PropertyChangedEvent) error {
	if self.closed {
		return nil
	}
	property := event.Property
	if property == nil || !self.tracks(property) {
		return nil
	}

	path := self.childPath(property.Name())

	// update the child publishers before pushing, so that a failed or suppressed push
	// leaves the tree consistent with the new value
	slot, ok := self.slots[property.Id()]
	if !ok {
		slot = newValueSlot(self.publisherBase, self.object, path, self.filter)
		self.slots[property.Id()] = slot
	}
	buildErr := slot.replace(event.NewValue)
	if self.suppressed() {
		return buildErr
	}

	value, err := self.serialize(path, event.NewValue)
	if err != nil {
		return joinErrors(buildErr, err)
	}
	oldValue, err := self.serialize(path, event.OldValue)
	if err != nil {
		return joinErrors(buildErr, err)
	}

	self.emit(&UpdatePropertyValue{
		OperationHeader: OperationHeader{
			ObjectId:     self.object.ObjectId(),
			PropertyPath: path,
		},
		ValueType: property.ValueType(),
		Value:     value,
		OldValue:  oldValue,
	})
	return buildErr
}

// the live child publishers, in property declaration order
func (self *ObjectPublisher) Children() []Publisher {
	children := []Publisher{}
	for _, property := range self.object.Properties() {
		if property == nil {
			continue
		}
		if slot, ok := self.slots[property.Id()]; ok && slot.publisher != nil {
			children = append(children, slot.publisher)
		}
	}
	for _, name := range self.engineNames {
		children = append(children, self.enginePublishers[name])
	}
	return children
}

func (self *ObjectPublisher) Child(name string) Publisher {
	for _, property := range self.object.Properties() {
		if property != nil && property.Name() == name {
			if slot, ok := self.slots[property.Id()]; ok && slot.publisher != nil {
				return slot.publisher
			}
			return nil
		}
	}
	if enginePublisher, ok := self.enginePublishers[name]; ok {
		return enginePublisher
	}
	return nil
}

func (self *ObjectPublisher) EnginePublisher(name string) *EnginePropertyPublisher {
	return self.enginePublishers[name]
}

func (self *ObjectPublisher) slotPublishers(kind PropertyKind) []Publisher {
	propertyIds := maps.Keys(self.slots)
	slices.Sort(propertyIds)
	publishers := []Publisher{}
	for _, propertyId := range propertyIds {
		slot := self.slots[propertyId]
		if slot.publisher != nil && slot.kind == kind {
			publishers = append(publishers, slot.publisher)
			slot.publisher = nil
			slot.kind = PropertyKindScalar
		}
	}
	return publishers
}

// Close order: stop listening, close child object publishers, child collection publishers,
// engine property publishers, then complete.
func (self *ObjectPublisher) Close() {
	if self.closed {
		return
	}
	self.closed = true

	if self.propertyChangedUnsub != nil {
		self.propertyChangedUnsub()
		self.propertyChangedUnsub = nil
	}

	closePublishers(self.path, self.slotPublishers(PropertyKindObject)...)
	closePublishers(self.path, self.slotPublishers(PropertyKindCollection)...)

	enginePublishers := []Publisher{}
	for _, name := range self.engineNames {
		enginePublishers = append(enginePublishers, self.enginePublishers[name])
	}
	closePublishers(self.path, enginePublishers...)
	self.slots = map[int]*valueSlot{}
	self.enginePublishers = map[string]*EnginePropertyPublisher{}
	self.engineNames = []string{}

	glog.V(2).Infof("[pub]close %s\n", self.path)
	self.complete()
}

package opsync

import (
	"github.com/golang/glog"
)

// filter segments below an engine property path
const (
	EngineValueSegment      = "CurrentValue"
	EngineAnimationSegment  = "Animation"
	EngineExpressionSegment = "Expression"
)

// EnginePropertyPublisher mirrors one engine property.
// The value, the animation and the expression are independent channels,
// and the filter selects any combination of them.
//
// Value changes publish at the property path, animation changes at `<path>.Animation`,
// and expression changes at `<path>.Expression`.
type EnginePropertyPublisher struct {
	*publisherBase

	owner    TrackedObject
	property EngineProperty

	valueSlot     *valueSlot
	animationSlot *valueSlot

	valueChangedUnsub      func()
	animationChangedUnsub  func()
	expressionChangedUnsub func()
}

func NewEnginePropertyPublisher(
	observer Observer,
	owner TrackedObject,
	property EngineProperty,
	sequence *SequenceGenerator,
	path string,
	filter *PathFilter,
	settings *PublisherSettings,
) (*EnginePropertyPublisher, error) {
	return newEnginePropertyPublisher(nil, observer, owner, property, sequence, path, filter, settings)
}

func newEnginePropertyPublisher(
	parent *OperationStream,
	observer Observer,
	owner TrackedObject,
	property EngineProperty,
	sequence *SequenceGenerator,
	path string,
	filter *PathFilter,
	settings *PublisherSettings,
) (*EnginePropertyPublisher, error) {
	if isNilValue(owner) {
		return nil, newConstructionError(path, "missing owner")
	}
	if isNilValue(property) {
		return nil, newConstructionError(path, "missing engine property")
	}
	base, err := newPublisherBase(parent, observer, path, sequence, filter, settings)
	if err != nil {
		return nil, err
	}

	publisher := &EnginePropertyPublisher{
		publisherBase: base,
		owner:         owner,
		property:      property,
	}

	if err := publisher.init(); err != nil {
		publisher.Close()
		return nil, err
	}
	return publisher, nil
}

func (self *EnginePropertyPublisher) init() error {
	names, all := self.filter.Names(self.path)
	tracks := func(segment string) bool {
		return all || names[segment]
	}

	if tracks(EngineValueSegment) {
		valueFilter := self.filter.Rebase(JoinPath(self.path, EngineValueSegment), self.path)
		self.valueSlot = newValueSlot(self.publisherBase, self.owner, self.path, valueFilter)
		if err := self.valueSlot.replace(self.property.CurrentValue()); err != nil {
			return err
		}
		self.valueChangedUnsub = self.property.AddValueChangedCallback(self.valueChanged)
	}

	if animatable, ok := self.property.(AnimatableProperty); ok && tracks(EngineAnimationSegment) {
		self.animationSlot = newValueSlot(
			self.publisherBase,
			self.owner,
			JoinPath(self.path, EngineAnimationSegment),
			self.filter,
		)
		if err := self.animationSlot.replace(animatable.Animation()); err != nil {
			return err
		}
		self.animationChangedUnsub = animatable.AddAnimationChangedCallback(self.animationChanged)
	}

	if expressive, ok := self.property.(ExpressionProperty); ok && tracks(EngineExpressionSegment) {
		self.expressionChangedUnsub = expressive.AddExpressionChangedCallback(self.expressionChanged)
	}

	return nil
}

func (self *EnginePropertyPublisher) Property() EngineProperty {
	return self.property
}

func (self *EnginePropertyPublisher) TracksValue() bool {
	return self.valueSlot != nil
}

func (self *EnginePropertyPublisher) TracksAnimation() bool {
	return self.animationSlot != nil
}

func (self *EnginePropertyPublisher) TracksExpression() bool {
	return self.expressionChangedUnsub != nil
}

// the publisher for the current value, if it is a collection or object
func (self *EnginePropertyPublisher) ValuePublisher() Publisher {
	if self.valueSlot == nil {
		return nil
	}
	return self.valueSlot.publisher
}

// the publisher for the current animation, if any
func (self *EnginePropertyPublisher) AnimationPublisher() Publisher {
	if self.animationSlot == nil {
		return nil
	}
	return self.animationSlot.publisher
}

func (self *EnginePropertyPublisher) publishUpdate(
	slot *valueSlot,
	path string,
	valueType string,
	oldValue any,
	newValue any,
) error {
	if self.closed {
		return nil
	}

	var buildErr error
	if slot != nil {
		buildErr = slot.replace(newValue)
	}
	if self.suppressed() {
		return buildErr
	}

	value, err := self.serialize(path, newValue)
	if err != nil {
		return joinErrors(buildErr, err)
	}
	old, err := self.serialize(path, oldValue)
	if err != nil {
		return joinErrors(buildErr, err)
	}

	self.emit(&UpdatePropertyValue{
		OperationHeader: OperationHeader{
			ObjectId:     self.owner.ObjectId(),
			PropertyPath: path,
		},
		ValueType: valueType,
		Value:     value,
		OldValue:  old,
	})
	return buildErr
}

// ValueChangedFunction
func (self *EnginePropertyPublisher) valueChanged(oldValue any, newValue any) error {
	return self.publishUpdate(self.valueSlot, self.path, self.property.ValueType(), oldValue, newValue)
}

// ValueChangedFunction
func (self *EnginePropertyPublisher) animationChanged(oldValue any, newValue any) error {
	return self.publishUpdate(
		self.animationSlot,
		JoinPath(self.path, EngineAnimationSegment),
		self.settings.Serializer.TypeName(newValue),
		oldValue,
		newValue,
	)
}

// ValueChangedFunction
func (self *EnginePropertyPublisher) expressionChanged(oldValue any, newValue any) error {
	return self.publishUpdate(
		nil,
		JoinPath(self.path, EngineExpressionSegment),
		self.settings.Serializer.TypeName(newValue),
		oldValue,
		newValue,
	)
}

func (self *EnginePropertyPublisher) Close() {
	if self.closed {
		return
	}
	self.closed = true

	for _, unsub := range []func(){
		self.valueChangedUnsub,
		self.animationChangedUnsub,
		self.expressionChangedUnsub,
	} {
		if unsub != nil {
			unsub()
		}
	}

	if self.valueSlot != nil {
		self.valueSlot.clear()
	}
	if self.animationSlot != nil {
		self.animationSlot.clear()
	}

	glog.V(2).Infof("[pub]close engine %s\n", self.path)
	self.complete()
}

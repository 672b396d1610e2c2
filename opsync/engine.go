package opsync

import (
	"encoding/json"
	"sync"
)

type ValueChangedFunction func(oldValue any, newValue any) error

// a property of the engine model. Each property carries its own value and change event,
// independent of the owning object's property-changed event.
type EngineProperty interface {
	Name() string
	ValueType() string
	CurrentValue() any
	// returns a function that removes the callback
	AddValueChangedCallback(callback ValueChangedFunction) func()
}

// an engine property whose value can additionally be driven by a time-based animation
type AnimatableProperty interface {
	EngineProperty
	// nil when the property is not animated
	Animation() TrackedObject
	AddAnimationChangedCallback(callback ValueChangedFunction) func()
}

// an engine property whose value can additionally be driven by an expression
type ExpressionProperty interface {
	EngineProperty
	// nil when the property has no expression
	Expression() any
	AddExpressionChangedCallback(callback ValueChangedFunction) func()
}

type EngineObject interface {
	TrackedObject
	EngineProperties() []EngineProperty
}

func notifyValueChanged(callbacks *CallbackList[ValueChangedFunction], oldValue any, newValue any) error {
	errs := []error{}
	for _, callback := range callbacks.Get() {
		errs = append(errs, callback(oldValue, newValue))
	}
	return joinErrors(errs...)
}

type Value struct {
	name      string
	valueType string

	stateLock    sync.Mutex
	currentValue any

	valueChangedCallbacks *CallbackList[ValueChangedFunction]
}

func NewValue(name string, valueType string, initialValue any) *Value {
	return &Value{
		name:                  name,
		valueType:             valueType,
		currentValue:          initialValue,
		valueChangedCallbacks: NewCallbackList[ValueChangedFunction](),
	}
}

func (self *Value) Name() string {
	return self.name
}

func (self *Value) ValueType() string {
	return self.valueType
}

func (self *Value) CurrentValue() any {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.currentValue
}

func (self *Value) AddValueChangedCallback(callback ValueChangedFunction) func() {
	return self.valueChangedCallbacks.Subscribe(callback)
}

func (self *Value) SetCurrentValue(value any) error {
	self.stateLock.Lock()
	oldValue := self.currentValue
	if valuesEqual(oldValue, value) {
		self.stateLock.Unlock()
		return nil
	}
	self.currentValue = value
	self.stateLock.Unlock()

	return notifyValueChanged(self.valueChangedCallbacks, oldValue, value)
}

func (self *Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"value": self.CurrentValue(),
	})
}

type AnimatableValue struct {
	Value

	animation  TrackedObject
	expression any

	animationChangedCallbacks  *CallbackList[ValueChangedFunction]
	expressionChangedCallbacks *CallbackList[ValueChangedFunction]
}

func NewAnimatableValue(name string, valueType string, initialValue any) *AnimatableValue {
	return &AnimatableValue{
		Value: Value{
			name:                  name,
			valueType:             valueType,
			currentValue:          initialValue,
			valueChangedCallbacks: NewCallbackList[ValueChangedFunction](),
		},
		animationChangedCallbacks:  NewCallbackList[ValueChangedFunction](),
		expressionChangedCallbacks: NewCallbackList[ValueChangedFunction](),
	}
}

func (self *AnimatableValue) Animation() TrackedObject {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.animation
}

func (self *AnimatableValue) AddAnimationChangedCallback(callback ValueChangedFunction) func() {
	return self.animationChangedCallbacks.Subscribe(callback)
}

// nil clears the animation
func (self *AnimatableValue) SetAnimation(animation TrackedObject) error {
	if isNilValue(animation) {
		animation = nil
	}
	self.stateLock.Lock()
	oldAnimation := self.animation
	if oldAnimation == animation {
		self.stateLock.Unlock()
		return nil
	}
	self.animation = animation
	self.stateLock.Unlock()

	var oldValue any
	if oldAnimation != nil {
		oldValue = oldAnimation
	}
	var newValue any
	if animation != nil {
		newValue = animation
	}
	return notifyValueChanged(self.animationChangedCallbacks, oldValue, newValue)
}

func (self *AnimatableValue) Expression() any {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.expression
}

func (self *AnimatableValue) AddExpressionChangedCallback(callback ValueChangedFunction) func() {
	return self.expressionChangedCallbacks.Subscribe(callback)
}

// nil clears the expression
func (self *AnimatableValue) SetExpression(expression any) error {
	self.stateLock.Lock()
	oldExpression := self.expression
	if valuesEqual(oldExpression, expression) {
		self.stateLock.Unlock()
		return nil
	}
	self.expression = expression
	self.stateLock.Unlock()

	return notifyValueChanged(self.expressionChangedCallbacks, oldExpression, expression)
}

func (self *AnimatableValue) MarshalJSON() ([]byte, error) {
	self.stateLock.Lock()
	j := map[string]any{
		"value": self.currentValue,
	}
	if self.animation != nil {
		j["animation"] = self.animation
	}
	if self.expression != nil {
		j["expression"] = self.expression
	}
	self.stateLock.Unlock()
	return json.Marshal(j)
}

package opsync

import (
	"encoding/json"
	"fmt"
	"sync"
)

type PropertyChangedEvent struct {
	Source   TrackedObject
	Property *Property
	OldValue any
	NewValue any
}

// errors returned by callbacks are returned to the code that made the change
type PropertyChangedFunction func(event *PropertyChangedEvent) error

type Identified interface {
	ObjectId() Id
}

// a graph node with stable identity and change notification
type TrackedObject interface {
	Identified
	// the declared properties, including `ParentProperty` when the object has one
	Properties() []*Property
	GetValue(property *Property) any
	// returns a function that removes the callback
	AddPropertyChangedCallback(callback PropertyChangedFunction) func()
}

// Object is the reflection-model tracked object used by hosts and tests.
// Values are stored per declared property. Engine properties are optional.
type Object struct {
	id       Id
	typeName string

	properties       []*Property
	propertiesByName map[string]*Property
	engineProperties []EngineProperty

	stateLock sync.Mutex
	values    map[int]any

	propertyChangedCallbacks *CallbackList[PropertyChangedFunction]
}

func NewObject(typeName string, properties ...*Property) *Object {
	return NewObjectWithId(NewId(), typeName, properties...)
}

func NewObjectWithId(id Id, typeName string, properties ...*Property) *Object {
	declared := []*Property{ParentProperty}
	propertiesByName := map[string]*Property{
		ParentProperty.Name(): ParentProperty,
	}
	for _, property := range properties {
		if _, ok := propertiesByName[property.Name()]; ok {
			panic(fmt.Errorf("Duplicate property %s on %s.", property.Name(), typeName))
		}
		declared = append(declared, property)
		propertiesByName[property.Name()] = property
	}
	return &Object{
		id:                       id,
		typeName:                 typeName,
		properties:               declared,
		propertiesByName:         propertiesByName,
		engineProperties:         []EngineProperty{},
		values:                   map[int]any{},
		propertyChangedCallbacks: NewCallbackList[PropertyChangedFunction](),
	}
}

// TrackedObject implementation

func (self *Object) ObjectId() Id {
	return self.id
}

func (self *Object) Properties() []*Property {
	return self.properties
}

func (self *Object) GetValue(property *Property) any {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.values[property.Id()]
}

func (self *Object) AddPropertyChangedCallback(callback PropertyChangedFunction) func() {
	return self.propertyChangedCallbacks.Subscribe(callback)
}

// EngineObject implementation

func (self *Object) EngineProperties() []EngineProperty {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.engineProperties
}

func (self *Object) TypeName() string {
	return self.typeName
}

func (self *Object) Property(name string) *Property {
	return self.propertiesByName[name]
}

// engine properties are declared before the object is published
func (self *Object) AddEngineProperty(engineProperty EngineProperty) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.engineProperties = append(self.engineProperties, engineProperty)
}

func (self *Object) EngineProperty(name string) EngineProperty {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	for _, engineProperty := range self.engineProperties {
		if engineProperty.Name() == name {
			return engineProperty
		}
	}
	return nil
}

func (self *Object) Get(name string) any {
	property, ok := self.propertiesByName[name]
	if !ok {
		return nil
	}
	return self.GetValue(property)
}

func (self *Object) Set(name string, value any) error {
	property, ok := self.propertiesByName[name]
	if !ok {
		return fmt.Errorf("%s has no property %s.", self.typeName, name)
	}
	return self.SetValue(property, value)
}

func (self *Object) Parent() TrackedObject {
	parent, _ := self.GetValue(ParentProperty).(TrackedObject)
	return parent
}

func (self *Object) SetParent(parent TrackedObject) error {
	return self.SetValue(ParentProperty, parent)
}

// The value is stored before callbacks run and stays stored when a callback fails.
// Setting an equal value does not notify.
func (self *Object) SetValue(property *Property, value any) error {
	if declared, ok := self.propertiesByName[property.Name()]; !ok || declared != property {
		return fmt.Errorf("%s has no property %s.", self.typeName, property.Name())
	}

	self.stateLock.Lock()
	oldValue := self.values[property.Id()]
	if valuesEqual(oldValue, value) {
		self.stateLock.Unlock()
		return nil
	}
	if isNilValue(value) {
		delete(self.values, property.Id())
	} else {
		self.values[property.Id()] = value
	}
	self.stateLock.Unlock()

	event := &PropertyChangedEvent{
		Source:   self,
		Property: property,
		OldValue: oldValue,
		NewValue: value,
	}
	errs := []error{}
	for _, callback := range self.propertyChangedCallbacks.Get() {
		errs = append(errs, callback(event))
	}
	return joinErrors(errs...)
}

type objectJson struct {
	Id               Id                         `json:"id"`
	Type             string                     `json:"type"`
	Properties       map[string]any             `json:"properties,omitempty"`
	EngineProperties map[string]json.RawMessage `json:"engine_properties,omitempty"`
}

// the parent link is never serialized
func (self *Object) MarshalJSON() ([]byte, error) {
	self.stateLock.Lock()
	properties := map[string]any{}
	for _, property := range self.properties {
		if property == ParentProperty {
			continue
		}
		if value, ok := self.values[property.Id()]; ok {
			properties[property.Name()] = value
		}
	}
	engineProperties := self.engineProperties
	self.stateLock.Unlock()

	j := &objectJson{
		Id:         self.id,
		Type:       self.typeName,
		Properties: properties,
	}
	if 0 < len(engineProperties) {
		j.EngineProperties = map[string]json.RawMessage{}
		for _, engineProperty := range engineProperties {
			b, err := json.Marshal(engineProperty)
			if err != nil {
				return nil, err
			}
			j.EngineProperties[engineProperty.Name()] = b
		}
	}
	return json.Marshal(j)
}

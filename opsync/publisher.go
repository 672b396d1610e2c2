package opsync

import (
	"fmt"

	"github.com/golang/glog"
	"github.com/hashicorp/go-multierror"
)

// A publisher mirrors one tracked slot (an object, a collection, or an engine property)
// and converts its changes into operations.
// Its lifetime is bound to the value assigned to the slot.
type Publisher interface {
	// dot-delimited, relative to the publishing root
	Path() string
	Operations() *OperationStream
	// Close stops tracking, closes all descendant publishers, and completes the stream.
	// Closing more than once has no effect.
	Close()
}

type PublisherSettings struct {
	Serializer Serializer
	// nil never suppresses
	Suppression *Suppression
	// when true, tracked objects inside collections get their own publishers
	// at the collection path. Otherwise items are serialized once when inserted.
	TrackCollectionItems bool
}

func DefaultPublisherSettings() *PublisherSettings {
	return &PublisherSettings{
		Serializer: NewJsonSerializer(),
	}
}

// state common to all publishers
type publisherBase struct {
	path     string
	sequence *SequenceGenerator
	filter   *PathFilter
	settings *PublisherSettings

	operations *OperationStream
	// forwards into the parent stream, for child publishers
	parentUnsub func()

	closed bool
}

func newPublisherBase(
	parent *OperationStream,
	observer Observer,
	path string,
	sequence *SequenceGenerator,
	filter *PathFilter,
	settings *PublisherSettings,
) (*publisherBase, error) {
	if sequence == nil {
		return nil, newConstructionError(path, "missing sequence generator")
	}
	if settings == nil {
		settings = DefaultPublisherSettings()
	} else if settings.Serializer == nil {
		settingsCopy := *settings
		settingsCopy.Serializer = NewJsonSerializer()
		settings = &settingsCopy
	}

	base := &publisherBase{
		path:       path,
		sequence:   sequence,
		filter:     filter,
		settings:   settings,
		operations: NewOperationStream(),
	}
	if parent != nil {
		// completion is not forwarded to the parent
		base.parentUnsub = base.operations.Subscribe(ObserverFunc(parent.OnNext))
	}
	if observer != nil {
		base.operations.Subscribe(observer)
	}
	return base, nil
}

func (self *publisherBase) Path() string {
	return self.path
}

func (self *publisherBase) Operations() *OperationStream {
	return self.operations
}

func (self *publisherBase) childPath(name string) string {
	return JoinPath(self.path, name)
}

func (self *publisherBase) suppressed() bool {
	return self.settings.Suppression.IsSuppressed()
}

func (self *publisherBase) serialize(path string, value any) ([]byte, error) {
	b, err := self.settings.Serializer.Serialize(value)
	if err != nil {
		return nil, newSerializationError(path, err)
	}
	return b, nil
}

func (self *publisherBase) serializeItems(path string, items []any) ([][]byte, error) {
	serializedItems := make([][]byte, 0, len(items))
	for _, item := range items {
		b, err := self.serialize(path, item)
		if err != nil {
			return nil, err
		}
		serializedItems = append(serializedItems, b)
	}
	return serializedItems, nil
}

// stamps the next sequence number and pushes the operation
func (self *publisherBase) emit(op SyncOperation) {
	op.Header().SequenceNumber = self.sequence.GetNext()
	if glog.V(2) {
		glog.Infof("[op]%s\n", OperationString(op))
	}
	self.operations.OnNext(op)
}

// detaches from the parent, then completes the stream
func (self *publisherBase) complete() {
	if self.parentUnsub != nil {
		self.parentUnsub()
		self.parentUnsub = nil
	}
	self.operations.OnCompleted()
}

// closes each publisher in order. A failure closing one does not stop the rest.
func closePublishers(path string, publishers ...Publisher) {
	var result *multierror.Error
	for _, publisher := range publishers {
		if publisher == nil {
			continue
		}
		HandleError(publisher.Close, func(err error) {
			result = multierror.Append(result, fmt.Errorf("close %s: %w", publisher.Path(), err))
		})
	}
	if err := result.ErrorOrNil(); err != nil {
		glog.Warningf("[pub]close %s errors = %s\n", path, err)
	}
}

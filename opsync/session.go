package opsync

import (
	"fmt"

	"github.com/golang/glog"
)

// Session is one publishing session over a document.
// Every publisher built from the session shares its sequence generator and suppression,
// so the merged stream is totally ordered and remote edits applied with `Apply` are not echoed.
type Session struct {
	sessionId   Id
	sequence    *SequenceGenerator
	suppression *Suppression
	settings    *PublisherSettings
}

func NewSessionWithDefaults() *Session {
	return NewSession(DefaultPublisherSettings())
}

func NewSession(settings *PublisherSettings) *Session {
	return NewSessionWithId(NewId(), settings)
}

func NewSessionWithId(sessionId Id, settings *PublisherSettings) *Session {
	if settings == nil {
		settings = DefaultPublisherSettings()
	}
	suppression := settings.Suppression
	if suppression == nil {
		suppression = NewSuppression()
	}
	// the session owns its copy so publishers share the same suppression
	sessionSettings := *settings
	sessionSettings.Suppression = suppression
	return &Session{
		sessionId:   sessionId,
		sequence:    NewSequenceGenerator(),
		suppression: suppression,
		settings:    &sessionSettings,
	}
}

func (self *Session) SessionId() Id {
	return self.sessionId
}

func (self *Session) Sequence() *SequenceGenerator {
	return self.sequence
}

func (self *Session) Suppression() *Suppression {
	return self.suppression
}

func (self *Session) Settings() *PublisherSettings {
	return self.settings
}

func (self *Session) NewPublisher(
	observer Observer,
	root TrackedObject,
	path string,
	filter *PathFilter,
) (*ObjectPublisher, error) {
	publisher, err := NewObjectPublisher(observer, root, self.sequence, path, filter, self.settings)
	if err != nil {
		glog.Infof("[s]%s publisher %s err = %s\n", self.sessionId, path, err)
		return nil, err
	}
	return publisher, nil
}

// Apply runs `apply` with publishing suppressed.
// Use it to apply operations received from a remote replica.
// Suppression covers the whole session while `apply` runs, including edits from other goroutines.
// Child publishers are still rebuilt for values replaced during `apply`.
func (self *Session) Apply(apply func() error) (returnErr error) {
	guard := self.suppression.Enter()
	defer guard.Close()
	return TraceApply(fmt.Sprintf("apply %s", self.sessionId), func() (applyErr error) {
		HandleError(
			func() {
				applyErr = apply()
			},
			func(err error) {
				applyErr = err
			},
		)
		return
	})
}

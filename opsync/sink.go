package opsync

import (
	"bytes"
	"encoding/json"
	"io"
	"sync"

	"github.com/golang/glog"
)

// OperationCollector records every operation it observes. Safe for concurrent use.
type OperationCollector struct {
	stateLock      sync.Mutex
	ops            []SyncOperation
	completedCount int
}

func NewOperationCollector() *OperationCollector {
	return &OperationCollector{
		ops: []SyncOperation{},
	}
}

// Observer implementation

func (self *OperationCollector) OnNext(op SyncOperation) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.ops = append(self.ops, op)
}

func (self *OperationCollector) OnCompleted() {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.completedCount += 1
}

func (self *OperationCollector) Operations() []SyncOperation {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	ops := make([]SyncOperation, len(self.ops))
	copy(ops, self.ops)
	return ops
}

func (self *OperationCollector) CompletedCount() int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.completedCount
}

func (self *OperationCollector) Clear() {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.ops = []SyncOperation{}
}

// JsonLinesSink writes one json object per operation.
type JsonLinesSink struct {
	stateLock sync.Mutex
	out       io.Writer
	pretty    bool
}

func NewJsonLinesSink(out io.Writer, pretty bool) *JsonLinesSink {
	return &JsonLinesSink{
		out:    out,
		pretty: pretty,
	}
}

// Observer implementation

func (self *JsonLinesSink) OnNext(op SyncOperation) {
	b, err := MarshalOperationJson(op)
	if err != nil {
		glog.Infof("[sink]%s err = %s\n", OperationString(op), err)
		return
	}
	if self.pretty {
		var indented bytes.Buffer
		if err := json.Indent(&indented, b, "", "  "); err == nil {
			b = indented.Bytes()
		}
	}

	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	if _, err := self.out.Write(append(b, '\n')); err != nil {
		glog.Infof("[sink]write err = %s\n", err)
	}
}

func (self *JsonLinesSink) OnCompleted() {
}

// LogSink logs each operation at the given verbosity.
type LogSink struct {
	tag       string
	verbosity glog.Level
}

func NewLogSink(tag string, verbosity glog.Level) *LogSink {
	return &LogSink{
		tag:       tag,
		verbosity: verbosity,
	}
}

// Observer implementation

func (self *LogSink) OnNext(op SyncOperation) {
	glog.V(self.verbosity).Infof("[%s]%s\n", self.tag, OperationString(op))
}

func (self *LogSink) OnCompleted() {
	glog.V(self.verbosity).Infof("[%s]completed\n", self.tag)
}

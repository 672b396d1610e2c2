package opsync

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/golang/glog"
)

// recovers a panic from `do`, logs it, and passes it to the handlers
// handlers may be `func()` or `func(error)`
func HandleError(do func(), handlers ...any) (r any) {
	defer func() {
		if r = recover(); r != nil {
			glog.Warningf("Unexpected error: %s\n", ErrorJson(r, debug.Stack()))
			err, ok := r.(error)
			if !ok {
				err = fmt.Errorf("%s", r)
			}
			for _, handler := range handlers {
				switch v := handler.(type) {
				case func():
					v()
				case func(error):
					v(err)
				}
			}
		}
	}()
	do()
	return
}

// a single line json object with the error and the trimmed stack
func ErrorJson(err any, stack []byte) string {
	lines := strings.Split(string(stack), "\n")
	stackLines := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			stackLines = append(stackLines, line)
		}
	}
	errorJson, _ := json.Marshal(map[string]any{
		"error": fmt.Sprintf("%T=%s", err, err),
		"stack": stackLines,
	})
	return string(errorJson)
}

// TraceApply runs `do` and logs its duration and error at verbosity 2.
func TraceApply(tag string, do func() error) (returnErr error) {
	start := time.Now()
	glog.V(2).Infof("[%-8s]%s\n", "start", tag)
	defer func() {
		millis := float32(time.Since(start)) / float32(time.Millisecond)
		if returnErr != nil {
			glog.V(2).Infof("[%-8s]%s (%.2fms) err = %s\n", "end", tag, millis, returnErr)
		} else {
			glog.V(2).Infof("[%-8s]%s (%.2fms)\n", "end", tag, millis)
		}
	}()
	returnErr = do()
	return
}

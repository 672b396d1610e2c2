package opsync

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// a publisher could not be built over a tracked value.
// Constructors return it after closing anything they had already built.
type ConstructionError struct {
	Path string
	Err  error
}

func newConstructionError(path string, format string, a ...any) *ConstructionError {
	return &ConstructionError{
		Path: path,
		Err:  errors.Errorf(format, a...),
	}
}

func (self *ConstructionError) Error() string {
	return fmt.Sprintf("Could not publish \"%s\": %s", self.Path, self.Err)
}

func (self *ConstructionError) Unwrap() error {
	return self.Err
}

// a value could not be converted to its wire form.
// The mutation that produced the value has already been applied and is not rolled back.
type SerializationError struct {
	Path string
	Err  error
}

func newSerializationError(path string, err error) *SerializationError {
	return &SerializationError{
		Path: path,
		Err:  errors.Wrapf(err, "serialize %s", path),
	}
}

func (self *SerializationError) Error() string {
	return self.Err.Error()
}

func (self *SerializationError) Unwrap() error {
	return self.Err
}

func (self *SerializationError) Cause() error {
	return errors.Cause(self.Err)
}

// nil for no errors, the error itself for one, otherwise a multierror
func joinErrors(errs ...error) error {
	var result *multierror.Error
	var single error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if single == nil && result == nil {
			single = err
			continue
		}
		if result == nil {
			result = multierror.Append(result, single)
		}
		result = multierror.Append(result, err)
	}
	if result != nil {
		return result
	}
	return single
}

package errprocess

import (
	"errors"
	"fmt"

	"hiresphere/pkg/logger"
)

// Set logs the message and returns it as an error.
func Set(errMsg string) error {
	logger.Log.Error(errMsg)
	return errors.New(errMsg)
}

// Wrap logs the message with its cause and returns the wrapped error.
func Wrap(errMsg string, cause error) error {
	logger.Log.Errorf(errMsg, cause)
	return fmt.Errorf("%s: %w", errMsg, cause)
}

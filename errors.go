package sensironscd41

import (
	"fmt"

	"github.com/pkg/errors"
)

// WriteError indicates that the transport failed to transmit a command to the
// sensor. The command payload never reached the device.
type WriteError struct {
	// Cmd is the 16-bit command code that failed to transmit
	Cmd uint16
	// Cause is the underlying transport error
	Cause error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write command 0x%04X: %s", e.Cmd, e.Cause)
}

func (e *WriteError) Unwrap() error {
	return e.Cause
}

// ReadError indicates that the sensor's response could not be obtained or
// failed in-protocol validation (malformed length or checksum mismatch).
type ReadError struct {
	// Cmd is the 16-bit command code whose response failed
	Cmd uint16
	// Word is the zero-based index of the word that failed checksum
	// validation, or -1 when the failure was not specific to a word
	Word int
	// Cause is the underlying transport or validation error
	Cause error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read response to command 0x%04X: %s", e.Cmd, e.Cause)
}

func (e *ReadError) Unwrap() error {
	return e.Cause
}

// IsWriteError reports whether err was caused by a failed command transmission.
func IsWriteError(err error) bool {
	var writeError *WriteError
	return errors.As(err, &writeError)
}

// IsReadError reports whether err was caused by a failed or invalid response.
func IsReadError(err error) bool {
	var readError *ReadError
	return errors.As(err, &readError)
}

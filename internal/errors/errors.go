// Package errors defines the error taxonomy shared by the decoders, the
// checksum engine and the extraction sink, and maps it to process exit codes.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Exit codes reported by the CLI for the first fatal error of a run.
const (
	ExitOK             = 0
	ExitFailure        = 1
	ExitStructural     = 2
	ExitHeaderChecksum = 3
	ExitDataChecksum   = 4
	ExitPrecondition   = 5
	ExitChecksumEngine = 6
)

// PreconditionError indicates the run cannot start, e.g. the output
// directory already exists.
type PreconditionError struct {
	Path   string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed for %s: %s", e.Path, e.Reason)
}

// MalformedContainerError indicates a structural violation: bad signature,
// bad magic, unexpected TLV tag or an impossible field value.
type MalformedContainerError struct {
	Format string
	Offset int64
	Reason string
}

func (e *MalformedContainerError) Error() string {
	return fmt.Sprintf("malformed %s container at offset %d: %s", e.Format, e.Offset, e.Reason)
}

// HeaderChecksumError indicates that an APP block header failed its CRC16 check.
type HeaderChecksumError struct {
	Offset   int64
	Expected uint16
	Actual   uint16
}

func (e *HeaderChecksumError) Error() string {
	return fmt.Sprintf("header checksum mismatch at offset %d: expected 0x%04X, got 0x%04X",
		e.Offset, e.Expected, e.Actual)
}

// DataChecksumError indicates that a unit's payload does not match its
// recorded checksum blob or digest.
type DataChecksumError struct {
	Name   string
	Offset int64
	Length int64
	Detail string
}

func (e *DataChecksumError) Error() string {
	msg := fmt.Sprintf("data checksum mismatch for %q (offset %d, %d bytes)", e.Name, e.Offset, e.Length)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// ChecksumEngineError indicates that the selected checksum backend could not
// compute a result.
type ChecksumEngineError struct {
	Backend string
	Err     error
}

func (e *ChecksumEngineError) Error() string {
	return fmt.Sprintf("checksum backend %s failed: %v", e.Backend, e.Err)
}

func (e *ChecksumEngineError) Unwrap() error {
	return e.Err
}

// TruncatedInputError indicates that a declared field or payload runs past
// the end of the container.
type TruncatedInputError struct {
	Format string
	Offset int64
	Need   int64
	Have   int64
}

func (e *TruncatedInputError) Error() string {
	return fmt.Sprintf("truncated %s container at offset %d: need %d bytes, have %d",
		e.Format, e.Offset, e.Need, e.Have)
}

// IsPrecondition returns true if err wraps a PreconditionError.
func IsPrecondition(err error) bool {
	var target *PreconditionError
	return stderrors.As(err, &target)
}

// IsMalformed returns true if err wraps a MalformedContainerError.
func IsMalformed(err error) bool {
	var target *MalformedContainerError
	return stderrors.As(err, &target)
}

// IsHeaderChecksum returns true if err wraps a HeaderChecksumError.
func IsHeaderChecksum(err error) bool {
	var target *HeaderChecksumError
	return stderrors.As(err, &target)
}

// IsDataChecksum returns true if err wraps a DataChecksumError.
func IsDataChecksum(err error) bool {
	var target *DataChecksumError
	return stderrors.As(err, &target)
}

// IsChecksumEngine returns true if err wraps a ChecksumEngineError.
func IsChecksumEngine(err error) bool {
	var target *ChecksumEngineError
	return stderrors.As(err, &target)
}

// IsTruncated returns true if err wraps a TruncatedInputError.
func IsTruncated(err error) bool {
	var target *TruncatedInputError
	return stderrors.As(err, &target)
}

// ExitCode maps the error kind to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case IsPrecondition(err):
		return ExitPrecondition
	case IsHeaderChecksum(err):
		return ExitHeaderChecksum
	case IsDataChecksum(err):
		return ExitDataChecksum
	case IsChecksumEngine(err):
		return ExitChecksumEngine
	case IsMalformed(err), IsTruncated(err):
		return ExitStructural
	default:
		return ExitFailure
	}
}

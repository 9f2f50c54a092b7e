package audio

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDeviceBusy is returned when a device guard is already held by
	// another session.
	ErrDeviceBusy = errors.New("audio device is in use by another session")

	// ErrNotRecording is returned when Stop is called without an active
	// recording session.
	ErrNotRecording = errors.New("no recording session active")

	// ErrUnsupportedClip is returned when a clip's MIME type cannot be
	// decoded for playback.
	ErrUnsupportedClip = errors.New("unsupported audio clip encoding")
)

// DeviceErrorKind classifies device failures so callers can show
// actionable guidance.
type DeviceErrorKind int

const (
	// DeviceFailed covers generic device or driver failures.
	DeviceFailed DeviceErrorKind = iota

	// DevicePermissionDenied means the OS refused microphone/speaker access.
	DevicePermissionDenied

	// DeviceNotFound means no usable device exists.
	DeviceNotFound
)

func (k DeviceErrorKind) String() string {
	switch k {
	case DevicePermissionDenied:
		return "permission denied"
	case DeviceNotFound:
		return "device not found"
	default:
		return "device failed"
	}
}

// DeviceError wraps an underlying audio backend failure with a kind and the
// operation that failed.
type DeviceError struct {
	Op   string
	Kind DeviceErrorKind
	Err  error
}

func (e *DeviceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("audio %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("audio %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// classifyDeviceErr maps backend error text onto a DeviceErrorKind.
// Backends report opaque errors, so this is a best-effort match.
func classifyDeviceErr(err error) DeviceErrorKind {
	if err == nil {
		return DeviceFailed
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "access denied"), strings.Contains(msg, "permission"):
		return DevicePermissionDenied
	case strings.Contains(msg, "no device"), strings.Contains(msg, "device not found"), strings.Contains(msg, "no backend"):
		return DeviceNotFound
	default:
		return DeviceFailed
	}
}

func deviceErr(op string, err error) *DeviceError {
	return &DeviceError{Op: op, Kind: classifyDeviceErr(err), Err: err}
}

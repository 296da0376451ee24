// Package camera drives a scanning session: it asks for camera access, picks a
// device, runs continuous decoding and reports failures as a closed set of
// error kinds with user-facing messages.
package camera

import (
	"context"
	"errors"
	"fmt"
)

// Device is a video input a decoder can read from.
type Device struct {
	ID    string
	Label string
}

// MediaDevices is the capability to reach cameras.
type MediaDevices interface {
	// Supported reports whether the runtime can access cameras at all.
	Supported() bool
	// SecureContext reports whether camera access may be granted here.
	SecureContext() bool
	RequestAccess(ctx context.Context) error
	VideoInputs(ctx context.Context) ([]Device, error)
}

// Decoder turns frames from a device into codes.
type Decoder interface {
	// Start opens deviceID and decodes in the background until ctx is
	// cancelled or the device fails. fn is called for every attempt with
	// either a code or an error; ErrNothingFound marks an empty attempt. fn is
	// never called after the returned channel has delivered its value, which
	// is nil or the error that ended decoding.
	Start(ctx context.Context, deviceID string, fn func(code string, err error)) (<-chan error, error)
}

// Errors reported by MediaDevices and Decoder implementations.
var (
	ErrNothingFound     = errors.New("no code found in frame")
	ErrPermissionDenied = errors.New("camera permission denied")
	ErrNoDevice         = errors.New("no camera device")
	ErrOverconstrained  = errors.New("camera constraints cannot be satisfied")
	ErrDeviceBusy       = errors.New("camera device busy")
	ErrAborted          = errors.New("camera initialization aborted")
	ErrUnsupported      = errors.New("camera access unsupported")
	ErrInsecureContext  = errors.New("insecure context")
)

// ErrAlreadyRunning is returned by Start while a session is starting or
// decoding.
var ErrAlreadyRunning = errors.New("camera session already running")

// ErrStopped is returned by Start when Stop was called before decoding began.
var ErrStopped = errors.New("camera start stopped")

// ErrorKind is the closed set of camera failures shown to the user.
type ErrorKind int

const (
	KindUnexpected ErrorKind = iota
	KindPermissionDenied
	KindNoCamera
	KindCameraInUse
	KindAborted
	KindUnsupported
	KindInsecureContext
)

var kindNames = map[ErrorKind]string{
	KindUnexpected:       "unexpected",
	KindPermissionDenied: "permission_denied",
	KindNoCamera:         "no_camera",
	KindCameraInUse:      "camera_in_use",
	KindAborted:          "aborted",
	KindUnsupported:      "unsupported",
	KindInsecureContext:  "insecure_context",
}

var kindMessages = map[ErrorKind]string{
	KindUnexpected:       "Unexpected camera error.",
	KindPermissionDenied: "Camera permission was denied. Allow camera access and try again.",
	KindNoCamera:         "No camera found on this device.",
	KindCameraInUse:      "The camera is already in use by another application.",
	KindAborted:          "Camera initialization was aborted.",
	KindUnsupported:      "Camera access is not supported by this browser.",
	KindInsecureContext:  "Camera access requires HTTPS or localhost.",
}

func (k ErrorKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return kindNames[KindUnexpected]
}

// Message is the human-readable text for k.
func (k ErrorKind) Message() string {
	if m, ok := kindMessages[k]; ok {
		return m
	}
	return kindMessages[KindUnexpected]
}

// Classify maps an error from the device layer onto its kind.
func Classify(err error) ErrorKind {
	var camErr *Error
	switch {
	case errors.As(err, &camErr):
		return camErr.Kind
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrNoDevice), errors.Is(err, ErrOverconstrained):
		return KindNoCamera
	case errors.Is(err, ErrDeviceBusy):
		return KindCameraInUse
	case errors.Is(err, ErrAborted):
		return KindAborted
	case errors.Is(err, ErrUnsupported):
		return KindUnsupported
	case errors.Is(err, ErrInsecureContext):
		return KindInsecureContext
	default:
		return KindUnexpected
	}
}

// KindFromName maps a browser media error name (a DOMException name such as
// "NotAllowedError") onto its kind. Names are parsed here once so the rest of
// the code only deals with ErrorKind.
func KindFromName(name string) ErrorKind {
	switch name {
	case "NotAllowedError", "PermissionDeniedError":
		return KindPermissionDenied
	case "NotFoundError", "DevicesNotFoundError", "OverconstrainedError", "ConstraintNotSatisfiedError":
		return KindNoCamera
	case "NotReadableError", "TrackStartError":
		return KindCameraInUse
	case "AbortError":
		return KindAborted
	case "NotSupportedError":
		return KindUnsupported
	case "SecurityError":
		return KindInsecureContext
	default:
		return KindUnexpected
	}
}

// Error is a terminal camera failure.
type Error struct {
	Kind ErrorKind
	Err  error
}

func NewError(err error) *Error {
	return &Error{Kind: Classify(err), Err: err}
}

// Error returns the user-facing message. Unexpected failures carry the
// underlying detail since no fixed text describes them.
func (e *Error) Error() string {
	if e.Kind == KindUnexpected && e.Err != nil {
		return fmt.Sprintf("Camera error: %v", e.Err)
	}
	return e.Kind.Message()
}

func (e *Error) Unwrap() error {
	return e.Err
}

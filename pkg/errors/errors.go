// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package errors

import (
	stdliberrors "errors"
)

var (
	ErrUnsupported = stdliberrors.ErrUnsupported

	As     = stdliberrors.As
	Is     = stdliberrors.Is
	Join   = stdliberrors.Join
	New    = stdliberrors.New
	Unwrap = stdliberrors.Unwrap
)

func NewRetryable(text string) RetryableError {
	return &retryableError{text}
}

// Retryable reports whether err (or anything it wraps) is marked retryable.
// Of the canonical constructors in this package, ResourceExhausted,
// ResourceLocked, ConnectionFailed and NetworkTimeout produce errors that
// implement RetryableError; OutOfMemory and every other constructor do not.
func Retryable(err error) bool {
	var rerr RetryableError
	return As(err, &rerr)
}

type RetryableError interface {
	error
	Retryable()
}

type retryableError struct {
	text string
}

func (r *retryableError) Error() string {
	return r.text
}

func (r *retryableError) Retryable() {}

// Category is one of the eight closed error categories. Codes are only
// meaningful relative to their category; two categories may reuse the same
// numeric code for unrelated conditions.
type Category int

const (
	Hardware Category = iota
	Driver
	Configuration
	Resource
	Platform
	Network
	Validation
	Internal
)

func (c Category) String() string {
	switch c {
	case Hardware:
		return "hardware"
	case Driver:
		return "driver"
	case Configuration:
		return "configuration"
	case Resource:
		return "resource"
	case Platform:
		return "platform"
	case Network:
		return "network"
	case Validation:
		return "validation"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// Code identifies a specific condition within a Category. Codes are stable
// once published; never renumber an existing constant.
type Code int

const (
	CodeDeviceNotFound Code = iota
	CodeInitializationFailed
	CodeDeviceBusy

	CodeDriverIncompatible
	CodeFeatureNotSupported
	CodeDriverNotLoaded

	CodeInvalidParameter
	CodeConfigurationMissing
	CodeParameterOutOfRange

	CodeOutOfMemory
	CodeResourceExhausted
	CodeResourceLocked

	CodePlatformNotSupported
	CodePlatformConstraint

	CodeConnectionFailed
	CodeNetworkTimeout

	CodeValidationFailed
	CodeInvalidState

	CodeInternalError
	CodeNotImplemented
)

// message is a static, interned string for a (category, code) pair. Stored
// once here rather than formatted per call site, so producing a HALError
// never allocates the message itself.
var message = map[Code]string{
	CodeDeviceNotFound:       "device not found",
	CodeInitializationFailed: "device initialization failed",
	CodeDeviceBusy:           "device busy",

	CodeDriverIncompatible:  "driver incompatible with platform",
	CodeFeatureNotSupported: "feature not supported by driver",
	CodeDriverNotLoaded:     "driver not loaded",

	CodeInvalidParameter:     "invalid parameter",
	CodeConfigurationMissing: "required configuration missing",
	CodeParameterOutOfRange:  "parameter out of range",

	CodeOutOfMemory:       "out of memory",
	CodeResourceExhausted: "resource exhausted",
	CodeResourceLocked:    "resource locked",

	CodePlatformNotSupported: "platform not supported",
	CodePlatformConstraint:   "platform constraint violated",

	CodeConnectionFailed: "connection failed",
	CodeNetworkTimeout:   "network timeout",

	CodeValidationFailed: "validation failed",
	CodeInvalidState:     "invalid state",

	CodeInternalError:  "internal error",
	CodeNotImplemented: "not implemented",
}

// HALError is the concrete error type returned by every canonical
// constructor in this package. Its message is always the static, interned
// string for its (category, code); Context adds a second static string
// (never formatted/interpolated user data) describing where it occurred.
type HALError struct {
	category Category
	code     Code
	context  string
}

func (e *HALError) Error() string {
	msg := message[e.code]
	if e.context == "" {
		return msg
	}
	return msg + ": " + e.context
}

// Category returns the error's category.
func (e *HALError) Category() Category { return e.category }

// Code returns the error's code, meaningful only within its Category.
func (e *HALError) Code() Code { return e.code }

// Message returns the static interned message, without context appended.
func (e *HALError) Message() string { return message[e.code] }

// Context returns the static context string, or "" if none was attached.
func (e *HALError) Context() string { return e.context }

// WithContext returns a copy of e with a static context string attached.
// staticCtx should be a compile-time constant or interned identifier (e.g.
// a resource name), never formatted user input, to preserve the no-per-call
// allocation guarantee for the message portion.
func (e *HALError) WithContext(staticCtx string) *HALError {
	return &HALError{category: e.category, code: e.code, context: staticCtx}
}

// WrapContext appends additional static context to err without changing its
// category or code. If err does not carry a *HALError, it is returned
// unchanged. Retryability is preserved.
func WrapContext(err error, staticCtx string) error {
	var herr *HALError
	if !As(err, &herr) {
		return err
	}
	ctx := staticCtx
	if herr.context != "" {
		ctx = herr.context + ": " + staticCtx
	}
	wrapped := herr.WithContext(ctx)
	if Retryable(err) {
		return resourceHALError{wrapped}
	}
	return wrapped
}

func newErr(cat Category, code Code) *HALError {
	return &HALError{category: cat, code: code}
}

// Hardware category.

func DeviceNotFound() *HALError       { return newErr(Hardware, CodeDeviceNotFound) }
func InitializationFailed() *HALError { return newErr(Hardware, CodeInitializationFailed) }
func DeviceBusy() *HALError           { return newErr(Hardware, CodeDeviceBusy) }

// Driver category.

func DriverIncompatible() *HALError  { return newErr(Driver, CodeDriverIncompatible) }
func FeatureNotSupported() *HALError { return newErr(Driver, CodeFeatureNotSupported) }
func DriverNotLoaded() *HALError     { return newErr(Driver, CodeDriverNotLoaded) }

// Configuration category.

func InvalidParameter() *HALError     { return newErr(Configuration, CodeInvalidParameter) }
func ConfigurationMissing() *HALError { return newErr(Configuration, CodeConfigurationMissing) }
func ParameterOutOfRange() *HALError  { return newErr(Configuration, CodeParameterOutOfRange) }

// Resource category. ResourceExhausted and ResourceLocked are the
// conditions most likely to clear on retry (a pool freeing up, a lock
// releasing), so those constructors also wrap the result as a
// RetryableError. OutOfMemory returns a plain, non-retryable *HALError.

type resourceHALError struct {
	*HALError
}

func (resourceHALError) Retryable() {}

// Unwrap exposes the embedded *HALError so errors.As/Is and WrapContext can
// still reach Category/Code/Context through the RetryableError wrapper.
func (r resourceHALError) Unwrap() error { return r.HALError }

func OutOfMemory() *HALError {
	return &HALError{category: Resource, code: CodeOutOfMemory}
}

func ResourceExhausted() error {
	return resourceHALError{&HALError{category: Resource, code: CodeResourceExhausted}}
}

func ResourceLocked() error {
	return resourceHALError{&HALError{category: Resource, code: CodeResourceLocked}}
}

// Platform category.

func PlatformNotSupported() *HALError { return newErr(Platform, CodePlatformNotSupported) }
func PlatformConstraint() *HALError   { return newErr(Platform, CodePlatformConstraint) }

// Network category.

func ConnectionFailed() error {
	return resourceHALError{&HALError{category: Network, code: CodeConnectionFailed}}
}

func NetworkTimeout() error {
	return resourceHALError{&HALError{category: Network, code: CodeNetworkTimeout}}
}

// Validation category.

func ValidationFailed() *HALError { return newErr(Validation, CodeValidationFailed) }
func InvalidState() *HALError     { return newErr(Validation, CodeInvalidState) }

// Internal category.

func InternalError() *HALError  { return newErr(Internal, CodeInternalError) }
func NotImplemented() *HALError { return newErr(Internal, CodeNotImplemented) }

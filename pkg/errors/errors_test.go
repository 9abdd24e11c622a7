// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package errors_test

import (
	"testing"

	"github.com/coreward/halcore/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalConstructors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		cat  errors.Category
		code errors.Code
	}{
		{"DeviceNotFound", errors.DeviceNotFound(), errors.Hardware, errors.CodeDeviceNotFound},
		{"InitializationFailed", errors.InitializationFailed(), errors.Hardware, errors.CodeInitializationFailed},
		{"DeviceBusy", errors.DeviceBusy(), errors.Hardware, errors.CodeDeviceBusy},
		{"DriverIncompatible", errors.DriverIncompatible(), errors.Driver, errors.CodeDriverIncompatible},
		{"FeatureNotSupported", errors.FeatureNotSupported(), errors.Driver, errors.CodeFeatureNotSupported},
		{"DriverNotLoaded", errors.DriverNotLoaded(), errors.Driver, errors.CodeDriverNotLoaded},
		{"InvalidParameter", errors.InvalidParameter(), errors.Configuration, errors.CodeInvalidParameter},
		{"ConfigurationMissing", errors.ConfigurationMissing(), errors.Configuration, errors.CodeConfigurationMissing},
		{"ParameterOutOfRange", errors.ParameterOutOfRange(), errors.Configuration, errors.CodeParameterOutOfRange},
		{"OutOfMemory", errors.OutOfMemory(), errors.Resource, errors.CodeOutOfMemory},
		{"PlatformNotSupported", errors.PlatformNotSupported(), errors.Platform, errors.CodePlatformNotSupported},
		{"PlatformConstraint", errors.PlatformConstraint(), errors.Platform, errors.CodePlatformConstraint},
		{"ValidationFailed", errors.ValidationFailed(), errors.Validation, errors.CodeValidationFailed},
		{"InvalidState", errors.InvalidState(), errors.Validation, errors.CodeInvalidState},
		{"InternalError", errors.InternalError(), errors.Internal, errors.CodeInternalError},
		{"NotImplemented", errors.NotImplemented(), errors.Internal, errors.CodeNotImplemented},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var herr *errors.HALError
			require.True(t, errors.As(tc.err, &herr))
			assert.Equal(t, tc.cat, herr.Category())
			assert.Equal(t, tc.code, herr.Code())
			assert.NotEmpty(t, herr.Error())
		})
	}
}

func TestResourceErrorsAreRetryable(t *testing.T) {
	assert.True(t, errors.Retryable(errors.ResourceExhausted()))
	assert.True(t, errors.Retryable(errors.ResourceLocked()))
	assert.True(t, errors.Retryable(errors.ConnectionFailed()))
	assert.True(t, errors.Retryable(errors.NetworkTimeout()))
	assert.False(t, errors.Retryable(errors.InvalidParameter()))
}

func TestResourceErrorCategoryStillReachable(t *testing.T) {
	err := errors.ResourceExhausted()
	var herr *errors.HALError
	require.True(t, errors.As(err, &herr))
	assert.Equal(t, errors.Resource, herr.Category())
	assert.Equal(t, errors.CodeResourceExhausted, herr.Code())
}

func TestWithContext(t *testing.T) {
	err := errors.DeviceNotFound().WithContext("gpu0")
	assert.Equal(t, "device not found: gpu0", err.Error())
	assert.Equal(t, "gpu0", err.Context())
}

func TestWrapContextPreservesRetryability(t *testing.T) {
	err := errors.WrapContext(errors.ResourceLocked(), "pool:SmallObjects")
	assert.True(t, errors.Retryable(err))

	var herr *errors.HALError
	require.True(t, errors.As(err, &herr))
	assert.Equal(t, errors.Resource, herr.Category())
	assert.Contains(t, herr.Error(), "pool:SmallObjects")
}

func TestWrapContextAppends(t *testing.T) {
	err := errors.DeviceNotFound().WithContext("gpu0")
	wrapped := errors.WrapContext(err, "slot 2")
	assert.Equal(t, "device not found: gpu0: slot 2", wrapped.Error())
}

func TestWrapContextNonHALError(t *testing.T) {
	plain := errors.New("plain failure")
	assert.Same(t, plain, errors.WrapContext(plain, "ctx"))
}

func TestNewRetryable(t *testing.T) {
	err := errors.NewRetryable("transient")
	assert.True(t, errors.Retryable(err))
	assert.Equal(t, "transient", err.Error())
}

func TestCategoryString(t *testing.T) {
	assert.Equal(t, "hardware", errors.Hardware.String())
	assert.Equal(t, "resource", errors.Resource.String())
}

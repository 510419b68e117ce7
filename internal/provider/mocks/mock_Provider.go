// Package mocks provides test doubles for model providers.
package mocks

import (
	"context"

	provider "github.com/sells-group/docintel/internal/provider"
	mock "github.com/stretchr/testify/mock"
)

// MockProvider is a mock type for the Provider interface.
type MockProvider struct {
	mock.Mock
}

// Name provides a mock function with no fields
func (_m *MockProvider) Name() string {
	ret := _m.Called()

	if len(ret) == 0 {
		panic("no return value specified for Name")
	}

	var r0 string
	if rf, ok := ret.Get(0).(func() string); ok {
		r0 = rf()
	} else {
		r0 = ret.Get(0).(string)
	}

	return r0
}

// Invoke provides a mock function with given fields: ctx, spec, prompt, images
func (_m *MockProvider) Invoke(ctx context.Context, spec provider.Spec, prompt string, images []provider.Image) (*provider.Response, error) {
	ret := _m.Called(ctx, spec, prompt, images)

	if len(ret) == 0 {
		panic("no return value specified for Invoke")
	}

	var r0 *provider.Response
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, provider.Spec, string, []provider.Image) (*provider.Response, error)); ok {
		return rf(ctx, spec, prompt, images)
	}
	if rf, ok := ret.Get(0).(func(context.Context, provider.Spec, string, []provider.Image) *provider.Response); ok {
		r0 = rf(ctx, spec, prompt, images)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*provider.Response)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, provider.Spec, string, []provider.Image) error); ok {
		r1 = rf(ctx, spec, prompt, images)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockProvider creates a new instance of MockProvider.
func NewMockProvider(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockProvider {
	mock := &MockProvider{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}

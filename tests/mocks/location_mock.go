package mocks

import (
	"github.com/stretchr/testify/mock"
	"github.com/trailmark/geotrack-agent/pkg/location"
)

// MockLocationProvider is a mock implementation of the location.Provider interface
type MockLocationProvider struct {
	mock.Mock
}

func (m *MockLocationProvider) GetLocation() (location.Location, error) {
	args := m.Called()
	return args.Get(0).(location.Location), args.Error(1)
}

func (m *MockLocationProvider) Close() error {
	args := m.Called()
	return args.Error(0)
}

package mqtt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/trailmark/geotrack-agent/tests/mocks"
)

func TestMqttService_InitializeUnreadableCACertificate(t *testing.T) {
	fileOps := new(mocks.MockFileOperations)
	fileOps.On("ReadFileRaw", "certs/ca.crt").
		Return([]byte(nil), errors.New("no such file"))

	svc := NewMqttService(fileOps)

	err := svc.Initialize("tls://broker:8883", "client-1", "certs/ca.crt")
	assert.ErrorContains(t, err, "failed to read CA certificate")
	fileOps.AssertExpectations(t)
}

func TestMqttService_InitializeInvalidCACertificate(t *testing.T) {
	fileOps := new(mocks.MockFileOperations)
	fileOps.On("ReadFileRaw", "certs/ca.crt").
		Return([]byte("not a pem block"), nil)

	svc := NewMqttService(fileOps)

	err := svc.Initialize("tls://broker:8883", "client-1", "certs/ca.crt")
	assert.ErrorContains(t, err, "failed to append CA certificate")
}

package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	previous := Logger
	t.Cleanup(func() { Logger = previous })

	var buf bytes.Buffer
	Logger = slog.New(slog.NewJSONHandler(&buf, nil))
	return &buf
}

func TestWithEntityAttachesEntityKey(t *testing.T) {
	buf := captureLogger(t)

	WithEntity("room-1").Info("actor ready")

	assert.Contains(t, buf.String(), `"entity_key":"room-1"`)
}

func TestWithClientAttachesClientID(t *testing.T) {
	buf := captureLogger(t)

	WithClient("client-a").Info("session joined")

	assert.Contains(t, buf.String(), `"client_id":"client-a"`)
}

func TestWithErrorAttachesError(t *testing.T) {
	buf := captureLogger(t)

	WithError(errors.New("disk gone")).Error("store failed")

	assert.Contains(t, buf.String(), `"error":"disk gone"`)
}

func TestWithHelpersWorkBeforeInit(t *testing.T) {
	previous := Logger
	t.Cleanup(func() { Logger = previous })
	Logger = nil

	require.NotPanics(t, func() {
		WithEntity("room-1").Debug("actor ready")
		WithError(errors.New("disk gone")).Debug("store failed")
	})
}

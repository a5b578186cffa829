package api

import (
	"bytes"
	"context"
	"testing"

	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deck-agent/internal/app"
	"deck-agent/pkg/config"
)

func TestNewApp_MemoryBootstrap(t *testing.T) {
	b, err := app.NewBootstrap(context.Background(), &config.Config{})
	require.NoError(t, err)
	a, err := NewApp(b)
	require.NoError(t, err)
	defer func() { require.NoError(t, a.Shutdown(context.Background())) }()

	h := a.router.Build(":0")
	w := ut.PerformRequest(h.Engine, "GET", "/health", &ut.Body{Body: bytes.NewReader(nil), Len: 0})
	assert.Equal(t, 200, w.Result().StatusCode())

	w = ut.PerformRequest(h.Engine, "GET", "/api/v1/conversations", &ut.Body{Body: bytes.NewReader(nil), Len: 0})
	assert.Equal(t, 200, w.Result().StatusCode())
	assert.Equal(t, "[]", string(w.Result().Body()))
}

func TestNewApp_RequiresBootstrap(t *testing.T) {
	_, err := NewApp(nil)
	assert.Error(t, err)
}

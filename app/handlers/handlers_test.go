package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	businessflow "github.com/linkcrm/lead-engine/business_flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientMetadataFromRequest(t *testing.T) {
	app := fiber.New()

	var got *businessflow.ClientMetadata
	app.Get("/echo", func(c fiber.Ctx) error {
		got = clientMetadata(c)
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/echo", nil)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set(businessflow.RequestIDKey, "req-123")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.NotNil(t, got)
	assert.Equal(t, "test-agent", got.UserAgent)
	assert.Equal(t, "req-123", got.RequestID)
	assert.NotEmpty(t, got.IPAddress)
}

func TestClientMetadataWithoutRequestID(t *testing.T) {
	app := fiber.New()

	var got *businessflow.ClientMetadata
	app.Get("/echo", func(c fiber.Ctx) error {
		got = clientMetadata(c)
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/echo", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.NotNil(t, got)
	assert.Empty(t, got.RequestID)
}

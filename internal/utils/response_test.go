package utils_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/owasp-nest/nest-api/internal/utils"
)

func TestOKIncludesMetaAndDefaults(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		data := map[string]string{"hello": "world"}
		meta := map[string]int{"page": 1}
		return utils.OK(c, data, "", meta)
	})

	resp := performRequest(t, app, http.MethodGet, "/")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Success bool                   `json:"success"`
		Message string                 `json:"message"`
		Data    map[string]string      `json:"data"`
		Meta    map[string]interface{} `json:"meta"`
	}
	decode(t, resp, &payload)

	require.True(t, payload.Success)
	require.Equal(t, "success", payload.Message)
	require.Equal(t, "world", payload.Data["hello"])
	require.Equal(t, float64(1), payload.Meta["page"])
}

func TestFailIncludesDetails(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		details := map[string]string{"field": "menteesLimit"}
		return utils.Fail(c, fiber.StatusBadRequest, "invalid payload", details)
	})

	resp := performRequest(t, app, http.MethodGet, "/")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var payload struct {
		Success bool                   `json:"success"`
		Message string                 `json:"message"`
		Details map[string]string      `json:"details"`
		Data    map[string]interface{} `json:"data"`
	}
	decode(t, resp, &payload)

	require.False(t, payload.Success)
	require.Equal(t, "invalid payload", payload.Message)
	require.Equal(t, "menteesLimit", payload.Details["field"])
	require.Nil(t, payload.Data)
}

func TestEnvelopeVariants(t *testing.T) {
	cases := []struct {
		name    string
		send    func(c *fiber.Ctx) error
		status  int
		message string
		present []string
		absent  []string
	}{
		{
			name:    "ok without meta",
			send:    func(c *fiber.Ctx) error { return utils.OK(c, []string{"zap"}, "projects loaded", nil) },
			status:  fiber.StatusOK,
			message: "projects loaded",
			present: []string{"data"},
			absent:  []string{"meta", "details"},
		},
		{
			name:    "created with status",
			send:    func(c *fiber.Ctx) error { return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "", map[string]string{"key": "gsoc"}) },
			status:  fiber.StatusCreated,
			message: "success",
			present: []string{"data"},
			absent:  []string{"meta", "details"},
		},
		{
			name:    "zero status falls back to ok",
			send:    func(c *fiber.Ctx) error { return utils.SendSuccessWithStatus(c, 0, "saved", nil) },
			status:  fiber.StatusOK,
			message: "saved",
			absent:  []string{"data", "meta", "details"},
		},
		{
			name:    "error without details",
			send:    func(c *fiber.Ctx) error { return utils.SendError(c, fiber.StatusNotFound, "program not found") },
			status:  fiber.StatusNotFound,
			message: "program not found",
			absent:  []string{"data", "meta", "details"},
		},
		{
			name:    "fail with empty message",
			send:    func(c *fiber.Ctx) error { return utils.Fail(c, fiber.StatusUnprocessableEntity, "", map[string]string{"name": "Name is required"}) },
			status:  fiber.StatusUnprocessableEntity,
			message: "error",
			present: []string{"details"},
			absent:  []string{"data", "meta"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", tc.send)

			resp := performRequest(t, app, http.MethodGet, "/")
			require.Equal(t, tc.status, resp.StatusCode)

			var payload map[string]interface{}
			decode(t, resp, &payload)

			require.Equal(t, tc.status < fiber.StatusBadRequest, payload["success"])
			require.Equal(t, tc.message, payload["message"])
			for _, key := range tc.present {
				require.Contains(t, payload, key)
			}
			for _, key := range tc.absent {
				require.NotContains(t, payload, key)
			}
		})
	}
}

func performRequest(t *testing.T, app *fiber.App, method, path string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

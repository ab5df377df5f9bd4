package http

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/NeuralTrust/TrustBoundary/pkg/common"
	"github.com/NeuralTrust/TrustBoundary/pkg/infra/auditlogs"
	auditMocks "github.com/NeuralTrust/TrustBoundary/pkg/infra/auditlogs/mocks"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R'}
	elfHeader = []byte{0x7F, 'E', 'L', 'F', 2, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0}
)

func newUploadApp(t *testing.T, maxSize int64, audit auditlogs.Service) *fiber.App {
	t.Helper()
	logger, _ := test.NewNullLogger()
	handler := NewValidateUploadHandler(ValidateUploadHandlerDeps{
		Logger:       logger,
		MaxSizeBytes: maxSize,
		AuditService: audit,
	})
	app := fiber.New()
	app.Post("/api/v1/uploads/validate", handler.Handle)
	return app
}

func upload(t *testing.T, app *fiber.App, body []byte, headers map[string]string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/v1/uploads/validate", bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestValidateUploadHandler_AcceptsMatchingContent(t *testing.T) {
	app := newUploadApp(t, 1024, nil)

	status, out := upload(t, app, append(pngHeader, []byte("rest of image")...), map[string]string{
		fiber.HeaderContentType: "image/png",
	})

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, out["valid"])
	assert.Equal(t, "image/png", out["detected_mime_type"])
	assert.Equal(t, float64(len(pngHeader)+13), out["size_bytes"])
	assert.Len(t, out["sha256"], 64)
}

func TestValidateUploadHandler_RejectsDisguisedExecutable(t *testing.T) {
	audit := new(auditMocks.MockService)
	audit.On("Emit", mock.Anything, mock.MatchedBy(func(e auditlogs.Event) bool {
		return e.Event.Type == auditlogs.EventTypeUploadRejected && e.Target.Name == "application/x-executable"
	})).Once()
	app := newUploadApp(t, 1024, audit)

	status, out := upload(t, app, elfHeader, map[string]string{
		fiber.HeaderContentType:      "application/octet-stream",
		common.ClaimedMimeTypeHeader: "image/png",
	})

	assert.Equal(t, fiber.StatusUnsupportedMediaType, status)
	assert.Equal(t, "image/png", out["claimed_mime_type"])
	assert.Contains(t, out["error"], "not allowed")
	audit.AssertExpectations(t)
}

func TestValidateUploadHandler_TooLarge(t *testing.T) {
	app := newUploadApp(t, 8, nil)

	status, out := upload(t, app, []byte("plain text body that is too long"), map[string]string{
		fiber.HeaderContentType: "text/plain; charset=utf-8",
	})

	assert.Equal(t, fiber.StatusRequestEntityTooLarge, status)
	assert.Contains(t, out["error"], "exceeds 8 bytes")
}

func TestValidateUploadHandler_DecodesContentEncoding(t *testing.T) {
	audit := new(auditMocks.MockService)
	audit.On("Emit", mock.Anything, mock.Anything).Once()
	app := newUploadApp(t, 1024, audit)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write(elfHeader)
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	status, out := upload(t, app, buf.Bytes(), map[string]string{
		fiber.HeaderContentType:     "image/png",
		fiber.HeaderContentEncoding: "gzip",
	})

	assert.Equal(t, fiber.StatusUnsupportedMediaType, status)
	assert.Equal(t, "application/x-executable", out["detected_mime_type"])
	audit.AssertExpectations(t)
}

func TestValidateUploadHandler_UnsupportedEncoding(t *testing.T) {
	app := newUploadApp(t, 1024, nil)

	status, out := upload(t, app, pngHeader, map[string]string{
		fiber.HeaderContentType:     "image/png",
		fiber.HeaderContentEncoding: "compress",
	})

	assert.Equal(t, fiber.StatusUnsupportedMediaType, status)
	assert.Contains(t, out["error"], "unsupported content-encoding")
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/nevera/nevera_server/config"
	"github.com/nevera/nevera_server/internal/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeSender records outbound WhatsApp messages.
type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	fail bool
}

type sentMessage struct {
	Phone string
	Text  string
}

func (f *fakeSender) Send(_ context.Context, phone, text string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail {
		return false, errors.New("transport down")
	}
	f.sent = append(f.sent, sentMessage{Phone: phone, Text: text})
	return true, nil
}

func (f *fakeSender) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

func performRequest(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	return resp
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.JWT.Secret = "test-secret-key"
	cfg.WhatsApp.VerifyToken = "verify-token"
	return cfg
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

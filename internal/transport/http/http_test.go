package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/avatarvoice/internal/dispatch"
	"github.com/nadzzz/avatarvoice/internal/errs"
	"github.com/nadzzz/avatarvoice/internal/message"
	"github.com/nadzzz/avatarvoice/internal/speaker"
	"github.com/nadzzz/avatarvoice/internal/tts"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	reg := speaker.NewRegistry(speaker.NewProfile("kelly", nil), speaker.NewProfile("ken", nil))
	d := dispatch.New(reg, &tts.Materializer{}, dispatch.Options{DefaultSpeaker: "kelly", MaxTextChars: 20})

	srv := httptest.NewServer(New(0, 4096, "test").Handler(d))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, contentType, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/tts", contentType, strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestTTS_OK(t *testing.T) {
	srv := newServer(t)

	resp, body := post(t, srv, "application/json; charset=utf-8", `{"text":"Hello world","speaker":"kelly","include_phonemes":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	assert.Equal(t, "wav", body["audio_format"])
	assert.Equal(t, "simple_generated", body["engine"])
	assert.Equal(t, 1.0, body["duration"])
	assert.NotEmpty(t, body["audio"])
	assert.NotEmpty(t, body["request_id"])

	phonemes, ok := body["phonemes"].([]any)
	require.True(t, ok)
	require.Len(t, phonemes, 6)
	first := phonemes[0].(map[string]any)
	assert.Equal(t, "REST", first["phoneme"])
	assert.Equal(t, "Hello", first["word"])
}

func TestTTS_Errors(t *testing.T) {
	srv := newServer(t)

	tests := []struct {
		name        string
		contentType string
		body        string
		status      int
		allowed     []any
	}{
		{"wrong content type", "text/plain", `{"text":"hi"}`, http.StatusBadRequest, nil},
		{"invalid json", "application/json", `{"text":`, http.StatusBadRequest, nil},
		{"not an object", "application/json", `["hi"]`, http.StatusBadRequest, nil},
		{"missing text", "application/json", `{"speaker":"kelly"}`, http.StatusUnprocessableEntity, nil},
		{"text too long", "application/json", `{"text":"this sentence is well over twenty characters"}`, http.StatusRequestEntityTooLarge, nil},
		{"unknown speaker", "application/json", `{"text":"hi","speaker":"bob"}`, http.StatusUnprocessableEntity, []any{"kelly", "ken"}},
		{"unsupported format", "application/json", `{"text":"hi","format":"mp3"}`, http.StatusUnsupportedMediaType, []any{"wav"}},
		{"body too large", "application/json", `{"text":"` + strings.Repeat("a", 5000) + `"}`, http.StatusRequestEntityTooLarge, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := post(t, srv, tt.contentType, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.NotEmpty(t, body["error"])
			if tt.allowed != nil {
				assert.Equal(t, tt.allowed, body["allowed"])
			} else {
				assert.NotContains(t, body, "allowed")
			}
		})
	}
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	return resp.StatusCode
}

func TestVoices(t *testing.T) {
	srv := newServer(t)

	var voices []message.VoiceInfo
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/voices", &voices))
	require.Len(t, voices, 2)
	assert.Equal(t, "kelly", voices[0].Speaker)
	assert.True(t, voices[0].Default)

	var ken message.VoiceInfo
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/voices/ken", &ken))
	assert.Equal(t, "ken", ken.Speaker)

	var errBody message.ErrorResponse
	assert.Equal(t, http.StatusUnprocessableEntity, getJSON(t, srv.URL+"/api/voices/bob", &errBody))
	assert.Equal(t, []string{"kelly", "ken"}, errBody.Allowed)
}

func TestVisemesAndRoot(t *testing.T) {
	srv := newServer(t)

	var list message.VisemeList
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/visemes", &list))
	assert.Len(t, list.Core, 14)

	var info map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/", &info))
	assert.Equal(t, "avatarvoice", info["service"])
	assert.Equal(t, "test", info["version"])
}

func TestSwaggerUI(t *testing.T) {
	srv := newServer(t)
	resp, err := http.Get(srv.URL + "/swagger/index.html")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, StatusCode(errors.New("boom")))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(errs.New(errs.KindInternal, "x", "y")))
	assert.Equal(t, http.StatusServiceUnavailable, StatusCode(context.Canceled))
	assert.Equal(t, http.StatusUnsupportedMediaType, StatusCode(errs.Input(errs.CodeUnsupportedMedia, "x", "y")))
}

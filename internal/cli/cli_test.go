package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		server  string
		output  string
		wantErr bool
	}{
		{"defaults", "http://localhost:8080", "text", false},
		{"json https", "https://guess.example.com", "json", false},
		{"yaml output", "http://localhost:8080", "yaml", true},
		{"missing scheme", "localhost:8080", "text", true},
		{"ftp", "ftp://example.com", "text", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{ServerURL: tt.server, Output: tt.output}
			if tt.wantErr {
				assert.Error(t, c.Validate())
			} else {
				assert.NoError(t, c.Validate())
			}
		})
	}
}

func TestTokenFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token")

	c := &Config{TokenFile: path}
	require.NoError(t, c.SaveToken("abc123"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// Editors tend to leave a trailing newline
	require.NoError(t, os.WriteFile(path, []byte("abc123\n"), 0600))

	loaded := &Config{TokenFile: path}
	require.NoError(t, loaded.LoadToken())
	assert.Equal(t, "abc123", loaded.Token)
}

func TestLoadTokenPrefersExplicitToken(t *testing.T) {
	c := &Config{Token: "from-flag", TokenFile: filepath.Join(t.TempDir(), "absent")}
	require.NoError(t, c.LoadToken())
	assert.Equal(t, "from-flag", c.Token)
}

func TestClientSendsBearerAndDecodes(t *testing.T) {
	var gotAuth, gotAgent string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAgent = r.Header.Get("User-Agent")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"round":3,"outcome":"too_low","message":"10 is too Low!","won":false}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "tok")
	var result GuessResult
	require.NoError(t, c.Post("/api/v1/game/guess", map[string]string{"guess": "10"}, &result))

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "guessctl", gotAgent)
	assert.Equal(t, "10", gotBody["guess"])
	assert.Equal(t, GuessResult{Round: 3, Outcome: "too_low", Message: "10 is too Low!"}, result)
}

func TestClientErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"NOT_JOINED","message":"Join the game before guessing"}}`))
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "").Post("/api/v1/game/guess", map[string]string{"guess": "1"}, nil)
	require.Error(t, err)
	assert.Equal(t, "Join the game before guessing (NOT_JOINED)", err.Error())
}

func TestClientPlainError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "").Get("/api/v1/health", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502")
}

func TestClientTrace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	var trace bytes.Buffer
	c := NewClient(srv.URL, "")
	c.SetTrace(&trace)

	var health HealthResult
	require.NoError(t, c.Get("/api/v1/health", &health))
	assert.Equal(t, "ok", health.Status)
	assert.Contains(t, trace.String(), "GET /api/v1/health -> 200")
}

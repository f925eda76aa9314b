package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cropcure/internal/api"
	"cropcure/internal/cli"
	"cropcure/internal/diagnosis"
)

func fakeModelServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(api.ClassifyPath, func(w http.ResponseWriter, r *http.Request) {
		_, _, err := r.FormFile("image")
		if !assert.NoError(t, err) {
			http.Error(w, `{"error":"missing image"}`, http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"label":"Late Blight","confidence":64.2,"probs":[10,25.8,64.2]}`))
	})
	mux.HandleFunc(api.SolutionPath, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"solution":"Remove infected plants.","disease":"Late Blight","confidence":64.2}`))
	})
	mux.HandleFunc(api.HealthPath, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","model_loaded":true,"labels":["Early Blight","Late Blight","Healthy"]}`))
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func writeConfig(t *testing.T, apiURL string) string {
	t.Helper()
	for _, key := range []string{"CROPCURE_API_URL", "REACT_APP_API_URL"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`api_url = "`+apiURL+`"`+"\n"), 0644))
	return path
}

func TestClassifyCommand(t *testing.T) {
	backend := fakeModelServer(t)
	configPath := writeConfig(t, backend.URL)

	image := filepath.Join(t.TempDir(), "leaf.jpg")
	require.NoError(t, os.WriteFile(image, []byte{0xff, 0xd8, 0xff, 0xe0}, 0644))

	var stdout, stderr bytes.Buffer
	code := cli.Execute(context.Background(), []string{"classify", image, "-c", configPath}, newApp, &stdout, &stderr)
	require.Equal(t, cli.ExitSuccess, code, stderr.String())

	out := stdout.String()
	assert.Contains(t, out, "Late Blight")
	assert.Contains(t, out, "Confidence: 64.2% (warning)")
	assert.Contains(t, out, "Remove infected plants.")
}

func TestClassifyRejectsNonImage(t *testing.T) {
	backend := fakeModelServer(t)
	runner, err := newApp(writeConfig(t, backend.URL))
	require.NoError(t, err)

	notes := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("not a leaf"), 0644))

	_, err = runner.Classify(context.Background(), notes)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "is not an image"))
}

func TestHealthCommand(t *testing.T) {
	backend := fakeModelServer(t)
	runner, err := newApp(writeConfig(t, backend.URL))
	require.NoError(t, err)

	status := runner.Health(context.Background())
	assert.True(t, status.Ready())
	assert.Contains(t, status.Labels, string(diagnosis.LateBlight))
}

func TestNewAppInvalidConfig(t *testing.T) {
	_, err := newApp(writeConfig(t, "localhost:5000"))
	assert.Error(t, err)
}

func TestServeStopsOnCancel(t *testing.T) {
	backend := fakeModelServer(t)
	path := writeConfig(t, backend.URL)
	require.NoError(t, os.WriteFile(path, []byte(`api_url = "`+backend.URL+`"
listen_addr = "127.0.0.1:0"
`), 0644))

	runner, err := newApp(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, runner.Serve(ctx))
}

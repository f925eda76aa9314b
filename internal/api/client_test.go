package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cropcure/internal/api"
	"cropcure/internal/diagnosis"
	"cropcure/internal/metrics"
)

func newBackend(t *testing.T, h http.HandlerFunc) *api.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return api.NewClient(srv.URL+"/", api.WithMetrics(metrics.New()))
}

func TestClassifyImage_success(t *testing.T) {
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, api.ClassifyPath, r.URL.Path)

		file, header, err := r.FormFile("image")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		assert.NoError(t, err)
		assert.Equal(t, "leaf.png", header.Filename)
		assert.Equal(t, "image/png", header.Header.Get("Content-Type"))
		assert.Equal(t, []byte("pixels"), data)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"label":"Early Blight","confidence":91.5,"probs":[91.5,5,3.5]}`))
	})

	res := c.ClassifyImage(context.Background(), api.Image{
		Filename:    "leaf.png",
		ContentType: "image/png",
		Data:        []byte("pixels"),
	})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, diagnosis.EarlyBlight, res.Data.Disease)
	assert.Equal(t, 91.5, res.Data.Confidence)
	assert.Empty(t, res.Error)
}

func TestClassifyImage_failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{
			name:    "backend error message",
			status:  http.StatusBadRequest,
			body:    `{"error":"No selected file"}`,
			wantErr: "No selected file",
		},
		{
			name:    "non-json error body",
			status:  http.StatusInternalServerError,
			body:    `<html>boom</html>`,
			wantErr: "HTTP error! status: 500",
		},
		{
			name:    "empty error body",
			status:  http.StatusBadGateway,
			wantErr: "HTTP error! status: 502",
		},
		{
			name:    "malformed json on success",
			status:  http.StatusOK,
			body:    `{"label":`,
			wantErr: "decode response",
		},
		{
			name:    "missing confidence",
			status:  http.StatusOK,
			body:    `{"label":"Healthy"}`,
			wantErr: "malformed classification response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			res := c.ClassifyImage(context.Background(), api.Image{Filename: "a.jpg", ContentType: "image/jpeg", Data: []byte{1}})
			assert.False(t, res.Success)
			assert.Contains(t, res.Error, tt.wantErr)
			assert.Zero(t, res.Data)
		})
	}
}

func TestClassifyImage_networkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	res := api.NewClient(url).ClassifyImage(context.Background(), api.Image{Data: []byte{1}})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "send request")
}

func TestClassifyImage_canceledContext(t *testing.T) {
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the backend")
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := c.ClassifyImage(ctx, api.Image{Data: []byte{1}})
	assert.False(t, res.Success)
}

func TestGetSolution(t *testing.T) {
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, api.SolutionPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Late Blight", req["disease"])
		assert.Equal(t, 72.25, req["confidence"])

		_, _ = w.Write([]byte(`{"solution":"Apply a systemic fungicide.","disease":"Late Blight","confidence":72.25}`))
	})

	res := c.GetSolution(context.Background(), diagnosis.LateBlight, 72.25)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "Apply a systemic fungicide.", res.Data)
}

func TestGetSolution_failure(t *testing.T) {
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Invalid input (disease or confidence missing)"}`))
	})

	res := c.GetSolution(context.Background(), "", 0)
	assert.False(t, res.Success)
	assert.Equal(t, "Invalid input (disease or confidence missing)", res.Error)
}

func TestSubmitContactForm(t *testing.T) {
	var calls atomic.Int32
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, api.ContactPath, r.URL.Path)
		var form diagnosis.ContactForm
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&form))
		assert.Equal(t, diagnosis.ContactForm{Name: "Ravi", Email: "ravi@example.com", Message: "Great tool"}, form)
		// No body on purpose: acknowledgement is the status alone
		w.WriteHeader(http.StatusNoContent)
	})

	res := c.SubmitContactForm(context.Background(), diagnosis.ContactForm{Name: "Ravi", Email: "ravi@example.com", Message: "Great tool"})
	assert.True(t, res.Success, res.Error)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSubmitContactForm_notFound(t *testing.T) {
	c := newBackend(t, http.NotFound)

	res := c.SubmitContactForm(context.Background(), diagnosis.ContactForm{Name: "a", Email: "a@b.co", Message: "m"})
	assert.False(t, res.Success)
	assert.Equal(t, "HTTP error! status: 404", res.Error)
}

func TestHealthCheck(t *testing.T) {
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, api.HealthPath, r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"ok","model_loaded":true,"labels":["Early Blight","Late Blight","Healthy"]}`))
	})

	res := c.HealthCheck(context.Background())
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "ok", res.Data.Status)
	assert.True(t, res.Data.ModelLoaded)
	assert.Equal(t, []string{"Early Blight", "Late Blight", "Healthy"}, res.Data.Labels)
}

func TestResponseEnvelopeJSON(t *testing.T) {
	b, err := json.Marshal(api.Fail[api.Health]("down"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":"down"}`, string(b))

	b, err = json.Marshal(api.Ok("advice"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"data":"advice"}`, string(b))
}

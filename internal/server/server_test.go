package server

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cropcure/internal/api"
	"cropcure/internal/config"
	"cropcure/internal/diagnosis"
	"cropcure/internal/metrics"
)

// fakeBackend stands in for the classification service
type fakeBackend struct {
	mu       sync.Mutex
	classify api.Response[api.Classification]
	solution api.Response[string]
	contact  api.Response[struct{}]
	health   api.Response[api.Health]

	// gate, when set, blocks ClassifyImage until closed
	gate    chan struct{}
	entered chan struct{}

	classifyCalls atomic.Int32
	solutionCalls atomic.Int32
	lastImage     api.Image
	forms         []diagnosis.ContactForm
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		classify: api.Ok(api.Classification{Disease: diagnosis.EarlyBlight, Confidence: 72.5}),
		solution: api.Ok("Remove affected leaves and apply a copper fungicide."),
		contact:  api.Ok(struct{}{}),
		health:   api.Ok(api.Health{Status: "ok", ModelLoaded: true}),
	}
}

func (f *fakeBackend) ClassifyImage(_ context.Context, img api.Image) api.Response[api.Classification] {
	f.classifyCalls.Add(1)
	f.mu.Lock()
	f.lastImage = img
	gate, entered := f.gate, f.entered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	return f.classify
}

func (f *fakeBackend) GetSolution(context.Context, diagnosis.Disease, float64) api.Response[string] {
	f.solutionCalls.Add(1)
	return f.solution
}

func (f *fakeBackend) SubmitContactForm(_ context.Context, form diagnosis.ContactForm) api.Response[struct{}] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forms = append(f.forms, form)
	return f.contact
}

func (f *fakeBackend) lastClassified() api.Image {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastImage
}

func (f *fakeBackend) submitted() []diagnosis.ContactForm {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]diagnosis.ContactForm(nil), f.forms...)
}

func (f *fakeBackend) setHealth(res api.Response[api.Health]) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.health = res
}

func (f *fakeBackend) HealthCheck(context.Context) api.Response[api.Health] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.health
}

func testConfig() *config.Config {
	return &config.Config{
		ListenAddr:     "127.0.0.1:0",
		APIURL:         "http://backend.invalid",
		SessionSecret:  "test-session-secret",
		MaxUploadBytes: 1 << 20,
		VisitTTL:       time.Minute,
		HealthSchedule: "@every 1m",
		ContactBurst:   10,
		Environment:    "development",
	}
}

type testClient struct {
	t      *testing.T
	base   string
	client *http.Client
}

func newTestServer(t *testing.T, backend Backend, cfg *config.Config) *testClient {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}

	s, err := New(cfg, backend, WithMetrics(metrics.New()))
	require.NoError(t, err)
	handler, err := s.Handler()
	require.NoError(t, err)

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testClient{t: t, base: ts.URL, client: &http.Client{Jar: jar}}
}

func (c *testClient) get(path string) *http.Response {
	c.t.Helper()
	resp, err := c.client.Get(c.base + path)
	require.NoError(c.t, err)
	c.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (c *testClient) postForm(path string, values url.Values) *http.Response {
	c.t.Helper()
	resp, err := c.client.PostForm(c.base+path, values)
	require.NoError(c.t, err)
	c.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// filePart is one multipart file part
type filePart struct {
	field, filename, contentType string
	data                         []byte
}

func (c *testClient) postMultipart(path string, fields map[string]string, files ...filePart) *http.Response {
	c.t.Helper()
	body, contentType := multipartBody(c.t, fields, files...)
	resp, err := c.client.Post(c.base+path, contentType, body)
	require.NoError(c.t, err)
	c.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func multipartBody(t *testing.T, fields map[string]string, files ...filePart) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, f.field, f.filename))
		h.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func document(t *testing.T, resp *http.Response) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)
	return doc
}

func leafPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for x := 0; x < 8; x++ {
		for y := 0; y < 6; y++ {
			img.Set(x, y, color.RGBA{G: 160, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestLivenessAndMetrics(t *testing.T) {
	c := newTestServer(t, newFakeBackend(), nil)

	resp := c.get("/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ok", string(body))

	resp = c.get("/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ = io.ReadAll(resp.Body)
	assert.True(t, strings.Contains(string(body), "cropcure_backend_up"))
}

func TestStaticAssets(t *testing.T) {
	c := newTestServer(t, newFakeBackend(), nil)

	for _, path := range []string{"/static/css/app.css", "/static/js/upload.js", "/static/js/forms.js"} {
		resp := c.get(path)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
	assert.Equal(t, http.StatusNotFound, c.get("/static/missing.js").StatusCode)
}

func TestUnknownPathIsNotFound(t *testing.T) {
	c := newTestServer(t, newFakeBackend(), nil)
	assert.Equal(t, http.StatusNotFound, c.get("/nope").StatusCode)
}

func TestShutdownBeforeStart(t *testing.T) {
	s, err := New(testConfig(), newFakeBackend())
	require.NoError(t, err)
	assert.NoError(t, s.Shutdown(context.Background()))
}

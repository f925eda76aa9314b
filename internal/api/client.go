// Package api is the HTTP client for the CropCure classification backend.
//
// Every operation returns a Response envelope instead of an error: transport
// failures, non-2xx statuses and malformed JSON all become
// Response{Success: false, Error: msg}.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"cropcure/internal/diagnosis"
	"cropcure/internal/logging"
	"cropcure/internal/metrics"
	"cropcure/internal/telemetry"
)

// Backend paths
const (
	ClassifyPath = "/api/classify"
	SolutionPath = "/api/solution"
	ContactPath  = "/api/contact"
	HealthPath   = "/api/health"
)

// maxResponseBytes bounds how much of a backend body is read
const maxResponseBytes = 4 << 20

// Client talks to the classification backend. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets a per-request timeout. Zero keeps requests unbounded.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithMetrics records call latency into m
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a client for the backend at baseURL
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured backend address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ClassifyImage uploads img as the multipart field "image"
func (c *Client) ClassifyImage(ctx context.Context, img Image) Response[Classification] {
	ctx, span := telemetry.StartSpan(ctx, "api.ClassifyImage", trace.WithAttributes(
		attribute.String("image.filename", img.Filename),
		attribute.Int("image.size", len(img.Data)),
	))
	start := time.Now()

	res, err := c.classify(ctx, img)
	c.finish("classify", span, start, err)
	if err != nil {
		logging.Errorf("Classification error: %v", err)
		return Fail[Classification](err.Error())
	}
	span.SetAttributes(
		attribute.String("diagnosis.disease", string(res.Disease)),
		attribute.Float64("diagnosis.confidence", res.Confidence),
	)
	return Ok(res)
}

func (c *Client) classify(ctx context.Context, img Image) (Classification, error) {
	body, contentType, err := encodeImage(img)
	if err != nil {
		return Classification{}, errors.Wrap(err, "encode image")
	}

	var out classifyResponse
	if err := c.do(ctx, http.MethodPost, ClassifyPath, contentType, body, &out); err != nil {
		return Classification{}, err
	}
	if out.Label == "" || out.Confidence == nil {
		return Classification{}, errors.New("malformed classification response")
	}
	return Classification{
		Disease:    diagnosis.Disease(out.Label),
		Confidence: *out.Confidence,
	}, nil
}

// GetSolution asks the backend for treatment advice
func (c *Client) GetSolution(ctx context.Context, disease diagnosis.Disease, confidence float64) Response[string] {
	ctx, span := telemetry.StartSpan(ctx, "api.GetSolution", trace.WithAttributes(
		attribute.String("diagnosis.disease", string(disease)),
	))
	start := time.Now()

	solution, err := c.solution(ctx, disease, confidence)
	c.finish("solution", span, start, err)
	if err != nil {
		logging.Errorf("Solution fetch error: %v", err)
		return Fail[string](err.Error())
	}
	return Ok(solution)
}

func (c *Client) solution(ctx context.Context, disease diagnosis.Disease, confidence float64) (string, error) {
	body, err := json.Marshal(solutionRequest{Disease: string(disease), Confidence: confidence})
	if err != nil {
		return "", errors.Wrap(err, "marshal solution request")
	}

	var out solutionResponse
	if err := c.do(ctx, http.MethodPost, SolutionPath, "application/json", bytes.NewReader(body), &out); err != nil {
		return "", err
	}
	return out.Solution, nil
}

// SubmitContactForm posts the contact form. Any 2xx status is success.
func (c *Client) SubmitContactForm(ctx context.Context, form diagnosis.ContactForm) Response[struct{}] {
	ctx, span := telemetry.StartSpan(ctx, "api.SubmitContactForm")
	start := time.Now()

	err := c.contact(ctx, form)
	c.finish("contact", span, start, err)
	if err != nil {
		logging.Errorf("Contact form error: %v", err)
		return Fail[struct{}](err.Error())
	}
	return Ok(struct{}{})
}

func (c *Client) contact(ctx context.Context, form diagnosis.ContactForm) error {
	body, err := json.Marshal(form)
	if err != nil {
		return errors.Wrap(err, "marshal contact form")
	}
	return c.do(ctx, http.MethodPost, ContactPath, "application/json", bytes.NewReader(body), nil)
}

// HealthCheck probes the backend health endpoint
func (c *Client) HealthCheck(ctx context.Context) Response[Health] {
	ctx, span := telemetry.StartSpan(ctx, "api.HealthCheck")
	start := time.Now()

	var out Health
	err := c.do(ctx, http.MethodGet, HealthPath, "", nil, &out)
	c.finish("health", span, start, err)
	if err != nil {
		logging.Debugf("Health check error: %v", err)
		return Fail[Health](err.Error())
	}
	return Ok(out)
}

func (c *Client) finish(operation string, span trace.Span, start time.Time, err error) {
	c.metrics.ObserveAPI(operation, err == nil, time.Since(start))
	telemetry.EndSpan(span, err)
}

// do sends the request and decodes a 2xx JSON body into out when out is non-nil
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "send request")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return errors.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, b)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

// statusError prefers the backend's own "error" message
func statusError(status int, body []byte) error {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil && strings.TrimSpace(e.Error) != "" {
		return errors.New(e.Error)
	}
	return errors.Errorf("HTTP error! status: %d", status)
}

func encodeImage(img Image) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	filename := img.Filename
	if filename == "" {
		filename = "upload"
	}
	contentType := img.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, escapeQuotes(filename)))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

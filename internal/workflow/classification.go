// Package workflow sequences the page actions: diagnosing a selected image and
// submitting the contact form.
package workflow

import (
	"context"
	"errors"

	"cropcure/internal/api"
	"cropcure/internal/diagnosis"
	"cropcure/internal/logging"
	"cropcure/internal/metrics"
	"cropcure/internal/telemetry"
	"cropcure/internal/upload"
)

// ErrNoImage is returned when Analyze runs without a selection
var ErrNoImage = errors.New("no image selected")

// DefaultClassificationError is shown when the backend gave no message
const DefaultClassificationError = "Classification failed"

// Classifier is the subset of the API client the classification page needs
type Classifier interface {
	ClassifyImage(ctx context.Context, img api.Image) api.Response[api.Classification]
	GetSolution(ctx context.Context, disease diagnosis.Disease, confidence float64) api.Response[string]
}

// AnalysisError carries the user-visible message of a failed classification
type AnalysisError struct {
	Message string
}

func (e *AnalysisError) Error() string {
	return e.Message
}

// Classification controls one diagnosis attempt
type Classification struct {
	client  Classifier
	metrics *metrics.Metrics
}

// NewClassification creates the controller. m may be nil.
func NewClassification(client Classifier, m *metrics.Metrics) *Classification {
	return &Classification{client: client, metrics: m}
}

// Analyze classifies img and, only if that succeeded, looks up the solution.
// A failed lookup still yields the classification, marked SolutionUnavailable.
func (c *Classification) Analyze(ctx context.Context, img *upload.SelectedImage) (diagnosis.Result, error) {
	if img == nil || len(img.Data) == 0 {
		return diagnosis.Result{}, ErrNoImage
	}

	ctx, span := telemetry.StartSpan(ctx, "workflow.Analyze")
	defer span.End()

	classified := c.client.ClassifyImage(ctx, api.Image{
		Filename:    img.Name,
		ContentType: img.ContentType,
		Data:        img.Data,
	})
	if !classified.Success {
		msg := classified.Error
		if msg == "" {
			msg = DefaultClassificationError
		}
		c.count("failure")
		return diagnosis.Result{}, &AnalysisError{Message: msg}
	}

	result := diagnosis.Result{
		Disease:    classified.Data.Disease,
		Confidence: classified.Data.Confidence,
	}

	solution := c.client.GetSolution(ctx, result.Disease, result.Confidence)
	if solution.Success {
		result.Solution = solution.Data
		c.count("success")
	} else {
		logging.Warnf("Solution lookup failed for %s: %s", result.Disease, solution.Error)
		result.SolutionUnavailable = true
		result.SolutionError = solution.Error
		c.count("partial")
	}

	return result, nil
}

func (c *Classification) count(outcome string) {
	if c.metrics != nil {
		c.metrics.Diagnoses.WithLabelValues(outcome).Inc()
	}
}

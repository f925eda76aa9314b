package api

import "cropcure/internal/diagnosis"

// Response is the uniform result envelope returned by every Client call.
// Callers check Success; Error carries a human readable message otherwise.
type Response[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitzero"`
	Error   string `json:"error,omitempty"`
}

// Ok wraps data in a successful envelope
func Ok[T any](data T) Response[T] {
	return Response[T]{Success: true, Data: data}
}

// Fail builds a failed envelope
func Fail[T any](msg string) Response[T] {
	return Response[T]{Success: false, Error: msg}
}

// Classification is the success payload of ClassifyImage
type Classification struct {
	Disease    diagnosis.Disease `json:"disease"`
	Confidence float64           `json:"confidence"`
}

// Health is the success payload of HealthCheck
type Health struct {
	Status      string   `json:"status"`
	ModelLoaded bool     `json:"model_loaded"`
	Labels      []string `json:"labels"`
}

// Image is what ClassifyImage uploads
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Wire formats of the backend

type classifyResponse struct {
	Label      string    `json:"label"`
	Confidence *float64  `json:"confidence"`
	Probs      []float64 `json:"probs"`
}

type solutionRequest struct {
	Disease    string  `json:"disease"`
	Confidence float64 `json:"confidence"`
}

type solutionResponse struct {
	Solution   string  `json:"solution"`
	Disease    string  `json:"disease"`
	Confidence float64 `json:"confidence"`
}

type errorResponse struct {
	Error string `json:"error"`
}

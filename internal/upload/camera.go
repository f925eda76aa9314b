package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"io"
	"sync"
)

var (
	// ErrCameraUnsupported means no media capture capability is available
	ErrCameraUnsupported = errors.New("camera not supported on this device")

	// ErrCameraUnavailable means the stream could not be acquired, e.g. permission denied
	ErrCameraUnavailable = errors.New("unable to access camera")

	// ErrCaptureInProgress is returned when a capture preview is already open
	ErrCaptureInProgress = errors.New("camera capture already in progress")

	// ErrCaptureClosed is returned when capturing from a torn-down session
	ErrCaptureClosed = errors.New("camera capture session closed")
)

// CaptureFilename is the name given to camera captures
const CaptureFilename = "camera-capture.jpg"

// CaptureContentType is the media type of camera captures
const CaptureContentType = "image/jpeg"

// MaxFrameSide bounds both dimensions of a captured frame
const MaxFrameSide = 4096

// Dimensions is the native resolution of a video stream
type Dimensions struct {
	Width  int
	Height int
}

func (d Dimensions) check() error {
	if d.Width > MaxFrameSide || d.Height > MaxFrameSide {
		return fmt.Errorf("%w: frame is %dx%d, limit is %dx%d", ErrTooLarge, d.Width, d.Height, MaxFrameSide, MaxFrameSide)
	}
	return nil
}

// Track is one media track of a stream
type Track interface {
	Stop()
}

// MediaStream is a live video stream
type MediaStream interface {
	// Metadata blocks until the stream knows its native resolution
	Metadata(ctx context.Context) (Dimensions, error)
	// Frame returns the current video frame
	Frame(ctx context.Context) (image.Image, error)
	Tracks() []Track
}

// MediaDevices grants video streams
type MediaDevices interface {
	GetUserMedia(ctx context.Context) (MediaStream, error)
}

// EncodeFunc encodes the captured canvas
type EncodeFunc func(w io.Writer, img image.Image) error

// JPEGEncoder encodes at the given quality
func JPEGEncoder(quality int) EncodeFunc {
	return func(w io.Writer, img image.Image) error {
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	}
}

// DefaultEncoder matches the browser's default canvas.toBlob JPEG quality
var DefaultEncoder = JPEGEncoder(92)

// Camera is the live capture acquisition path
type Camera struct {
	Devices MediaDevices
	Encode  EncodeFunc
}

// Kind implements Source
func (Camera) Kind() Kind { return KindCamera }

// Acquire opens the camera, captures one frame and tears the session down
func (c Camera) Acquire(ctx context.Context) (File, error) {
	session, err := OpenCapture(ctx, c.Devices)
	if err != nil {
		return File{}, err
	}
	return session.Capture(ctx, c.Encode)
}

// CaptureSession is an open camera preview. Every exit path must go through
// Close so the stream's tracks are released.
type CaptureSession struct {
	stream MediaStream
	dims   Dimensions

	mu     sync.Mutex
	canvas *image.RGBA
	closed bool
	once   sync.Once
}

// OpenCapture requests a stream and sizes the canvas to its native resolution
func OpenCapture(ctx context.Context, devices MediaDevices) (*CaptureSession, error) {
	if devices == nil {
		return nil, ErrCameraUnsupported
	}

	stream, err := devices.GetUserMedia(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}

	s := &CaptureSession{stream: stream}

	dims, err := stream.Metadata(ctx)
	if errors.Is(err, ErrTooLarge) {
		s.Close()
		return nil, err
	}
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}
	if dims.Width <= 0 || dims.Height <= 0 {
		s.Close()
		return nil, fmt.Errorf("%w: stream reported %dx%d", ErrCameraUnavailable, dims.Width, dims.Height)
	}
	if err := dims.check(); err != nil {
		s.Close()
		return nil, err
	}

	s.dims = dims
	s.canvas = image.NewRGBA(image.Rect(0, 0, dims.Width, dims.Height))
	return s, nil
}

// Dimensions returns the canvas size
func (s *CaptureSession) Dimensions() Dimensions {
	return s.dims
}

// Capture draws the current frame, encodes it as JPEG and closes the session,
// whether or not encoding succeeds.
func (s *CaptureSession) Capture(ctx context.Context, encode EncodeFunc) (File, error) {
	defer s.Close()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return File{}, ErrCaptureClosed
	}
	canvas := s.canvas
	s.mu.Unlock()

	frame, err := s.stream.Frame(ctx)
	if err != nil {
		return File{}, fmt.Errorf("failed to grab frame: %w", err)
	}
	draw.Draw(canvas, canvas.Bounds(), frame, frame.Bounds().Min, draw.Src)

	if encode == nil {
		encode = DefaultEncoder
	}
	var buf bytes.Buffer
	if err := encode(&buf, canvas); err != nil {
		return File{}, fmt.Errorf("failed to encode capture: %w", err)
	}

	return FromBytes(CaptureFilename, CaptureContentType, buf.Bytes()), nil
}

// Close stops every track and drops the canvas. It is safe to call repeatedly;
// tracks are stopped only once.
func (s *CaptureSession) Close() {
	s.once.Do(func() {
		for _, t := range s.stream.Tracks() {
			t.Stop()
		}
		s.mu.Lock()
		s.closed = true
		s.canvas = nil
		s.mu.Unlock()
	})
}

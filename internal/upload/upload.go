// Package upload turns user gestures (file picker, drag and drop, camera) into
// exactly one selected image.
//
// All sources converge on Widget.HandleFile, which only accepts files whose
// declared media type starts with "image/".
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

var (
	// ErrNotImage is returned when the declared media type is not image/*.
	// The selection callback is not invoked.
	ErrNotImage = errors.New("selected file is not an image")

	// ErrNoFile is returned when a gesture carried no file
	ErrNoFile = errors.New("no file selected")

	// ErrTooLarge is returned when the image exceeds the widget limit
	ErrTooLarge = errors.New("image is too large")

	// ErrSelectionPending is returned when a selection is already being processed
	ErrSelectionPending = errors.New("another image selection is in progress")
)

// DefaultMaxBytes bounds an image read by the widget
const DefaultMaxBytes = 10 << 20

// SelectedImage is an in-memory image chosen by the user
type SelectedImage struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size returns the image size in bytes
func (s *SelectedImage) Size() int64 {
	return int64(len(s.Data))
}

// SizeMB formats the size the way the upload form shows it
func (s *SelectedImage) SizeMB() string {
	return fmt.Sprintf("%.2f MB", float64(len(s.Data))/1024/1024)
}

// File is a candidate file from any source. Open is only called once the
// declared type has been accepted.
type File struct {
	Name        string
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// IsImage reports whether the declared media type starts with "image/"
func (f File) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(f.ContentType)), "image/")
}

// State is the widget lifecycle state
type State int

const (
	// Idle waits for a gesture
	Idle State = iota
	// DragActive means a drag is hovering over the drop zone
	DragActive
	// AwaitingCapture means the camera preview is open
	AwaitingCapture
)

func (s State) String() string {
	switch s {
	case DragActive:
		return "drag-active"
	case AwaitingCapture:
		return "awaiting-capture"
	default:
		return "idle"
	}
}

// DragEvent is one of the drag lifecycle events of the drop zone
type DragEvent string

// Drag lifecycle events
const (
	DragEnter DragEvent = "dragenter"
	DragOver  DragEvent = "dragover"
	DragLeave DragEvent = "dragleave"
)

// Widget normalizes every acquisition path to a single callback
type Widget struct {
	onSelect func(*SelectedImage)
	maxBytes int64

	mu         sync.Mutex
	dragActive bool
	capturing  bool
	busy       bool
}

// Option configures a Widget
type Option func(*Widget)

// WithMaxBytes overrides DefaultMaxBytes
func WithMaxBytes(n int64) Option {
	return func(w *Widget) {
		if n > 0 {
			w.maxBytes = n
		}
	}
}

// NewWidget creates a widget delivering accepted images to onSelect
func NewWidget(onSelect func(*SelectedImage), opts ...Option) *Widget {
	w := &Widget{
		onSelect: onSelect,
		maxBytes: DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// State returns the current lifecycle state
func (w *Widget) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case w.capturing:
		return AwaitingCapture
	case w.dragActive:
		return DragActive
	default:
		return Idle
	}
}

// DragActive reports whether a drag hovers over the drop zone
func (w *Widget) DragActive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dragActive
}

// HandleDrag tracks the drag-active flag across enter/over/leave
func (w *Widget) HandleDrag(ev DragEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch ev {
	case DragEnter, DragOver:
		w.dragActive = true
	case DragLeave:
		w.dragActive = false
	}
}

// Select acquires a file from src and hands it to the normalization step.
// Only one selection runs at a time.
func (w *Widget) Select(ctx context.Context, src Source) error {
	if err := w.begin(src.Kind()); err != nil {
		return err
	}
	defer w.end(src.Kind())

	f, err := src.Acquire(ctx)
	if err != nil {
		return err
	}
	return w.HandleFile(f)
}

func (w *Widget) begin(kind Kind) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if kind == KindCamera && w.capturing {
		return ErrCaptureInProgress
	}
	if w.busy {
		return ErrSelectionPending
	}
	w.busy = true
	switch kind {
	case KindDrop:
		w.dragActive = false
	case KindCamera:
		w.capturing = true
	}
	return nil
}

func (w *Widget) end(kind Kind) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.busy = false
	if kind == KindCamera {
		w.capturing = false
	}
}

// HandleFile is the single normalization step shared by all sources
func (w *Widget) HandleFile(f File) error {
	if !f.IsImage() {
		return fmt.Errorf("%w: %s (%s)", ErrNotImage, f.Name, f.ContentType)
	}
	if f.Open == nil {
		return ErrNoFile
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(io.LimitReader(rc, w.maxBytes+1))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	if int64(len(data)) > w.maxBytes {
		return ErrTooLarge
	}
	if len(data) == 0 {
		return ErrNoFile
	}

	if w.onSelect != nil {
		w.onSelect(&SelectedImage{
			Name:        f.Name,
			ContentType: strings.TrimSpace(f.ContentType),
			Data:        data,
		})
	}
	return nil
}

package upload

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"sync"
)

// FrameDevices exposes a still frame posted by the browser (the canvas
// snapshot of the preview) as a single-frame camera. The uploaded body is
// the stream's only track and is released when the track stops.
type FrameDevices struct {
	Frame File
}

// GetUserMedia implements MediaDevices
func (d FrameDevices) GetUserMedia(context.Context) (MediaStream, error) {
	if d.Frame.Open == nil {
		return nil, ErrNoFile
	}
	if !d.Frame.IsImage() {
		return nil, fmt.Errorf("%w: frame has type %q", ErrNotImage, d.Frame.ContentType)
	}
	rc, err := d.Frame.Open()
	if err != nil {
		return nil, err
	}
	return &frameStream{body: rc}, nil
}

type frameStream struct {
	body io.ReadCloser

	readOnce sync.Once
	data     []byte
	dims     Dimensions
	err      error

	stopOnce sync.Once
}

// read buffers the upload and checks its header dimensions. Pixels are
// decoded only by Frame, after the size has been accepted.
func (s *frameStream) read() (Dimensions, error) {
	s.readOnce.Do(func() {
		s.data, s.err = io.ReadAll(s.body)
		if s.err != nil {
			s.err = fmt.Errorf("failed to read frame: %w", s.err)
			return
		}
		cfg, _, err := image.DecodeConfig(bytes.NewReader(s.data))
		if err != nil {
			s.err = fmt.Errorf("failed to decode frame: %w", err)
			return
		}
		s.dims = Dimensions{Width: cfg.Width, Height: cfg.Height}
		s.err = s.dims.check()
	})
	return s.dims, s.err
}

func (s *frameStream) Metadata(context.Context) (Dimensions, error) {
	return s.read()
}

func (s *frameStream) Frame(context.Context) (image.Image, error) {
	if _, err := s.read(); err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(s.data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return img, nil
}

func (s *frameStream) Tracks() []Track {
	return []Track{frameTrack{s}}
}

type frameTrack struct {
	s *frameStream
}

func (t frameTrack) Stop() {
	t.s.stopOnce.Do(func() {
		_ = t.s.body.Close()
	})
}

// Package evidence captures a screenshot of each confirmed reveal, marks
// the trigger on it and assembles the frames into an animated GIF.
package evidence

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"sync"

	"github.com/v0xg/bddgen/internal/detector"
	"go.uber.org/zap"
)

// Capturer takes a PNG screenshot of the current viewport.
type Capturer interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// Frame is one marked screenshot.
type Frame struct {
	Image   image.Image
	Trigger string
	Action  detector.ActionType
}

// Recorder collects evidence frames as interactions are confirmed. It
// satisfies detector.Recorder.
type Recorder struct {
	capturer Capturer
	logger   *zap.Logger

	mu     sync.Mutex
	frames []Frame
}

var _ detector.Recorder = (*Recorder)(nil)

// NewRecorder creates a recorder that captures through c.
func NewRecorder(c Capturer, logger *zap.Logger) *Recorder {
	return &Recorder{capturer: c, logger: logger.Named("evidence")}
}

// Record captures the page as left by in. Capture failures are logged and
// the interaction is skipped.
func (r *Recorder) Record(ctx context.Context, in *detector.Interaction) {
	raw, err := r.capturer.Screenshot(ctx)
	if err != nil {
		r.logger.Warn("Screenshot failed", zap.String("trigger", in.Trigger.Text), zap.Error(err))
		return
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		r.logger.Warn("Screenshot decode failed", zap.String("trigger", in.Trigger.Text), zap.Error(err))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, Frame{
		Image:   ApplyMarker(img, markerFor(in)),
		Trigger: in.Trigger.Text,
		Action:  in.ActionType,
	})
}

// markerFor places the marker at the trigger's centre. Load popups have no
// trigger to mark.
func markerFor(in *detector.Interaction) Marker {
	if in.ActionType == detector.ActionLoad {
		return Marker{}
	}
	loc := in.Trigger.Location
	return Marker{
		X:     int(loc.X + loc.Width/2),
		Y:     int(loc.Y + loc.Height/2),
		Click: in.ActionType == detector.ActionClick,
	}
}

// Frames returns the captured frames in capture order.
func (r *Recorder) Frames() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Frame(nil), r.frames...)
}

// WriteGIF encodes the captured frames to path and returns the file size.
func (r *Recorder) WriteGIF(path string, opts Options) (int64, error) {
	frames := r.Frames()
	if len(frames) == 0 {
		return 0, fmt.Errorf("no evidence frames captured")
	}
	images := make([]image.Image, len(frames))
	for i, f := range frames {
		images[i] = f.Image
	}
	size, err := WriteFile(path, images, opts)
	if err != nil {
		return 0, fmt.Errorf("failed to write evidence gif: %w", err)
	}
	r.logger.Info("Evidence written", zap.String("path", path), zap.Int("frames", len(frames)), zap.Int64("bytes", size))
	return size, nil
}

// Package pipeline runs the per-frame face detection, recognition, overlay
// and export sequence.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"time"

	"github.com/andresmejia3/facecam/internal/dataset"
	"github.com/andresmejia3/facecam/internal/types"
	"github.com/andresmejia3/facecam/internal/vision"
	"gocv.io/x/gocv"
)

// Detector finds the face to work on in a frame.
type Detector interface {
	FirstFace(frame gocv.Mat) image.Rectangle
}

// Recognizer predicts who a face region belongs to.
type Recognizer interface {
	Predict(face gocv.Mat) (types.Recognized, error)
	Label() string
}

// RecognizerLoader builds the recognizer the first time a face needs one.
type RecognizerLoader func() (Recognizer, error)

// Recorder persists what the capture loop saw.
type Recorder interface {
	BeginSession(ctx context.Context, info types.SessionInfo) error
	RecordFrame(ctx context.Context, sessionID string, res types.FrameResult) error
	EndSession(ctx context.Context, sessionID string, frames int) error
}

// Options are the switches of the capture component.
type Options struct {
	// Recording must be true for frames to be exported
	Recording bool
	// RecordOnlyFace exports only the face rectangle (for building training
	// datasets) instead of the whole annotated frame
	RecordOnlyFace bool
	MaxConfidence  float64
	Source         string
	Verbose        bool
}

// Deps are the collaborators of the capture component. Detector, Loader and
// Session are required.
type Deps struct {
	Detector Detector
	Loader   RecognizerLoader
	Session  *dataset.Session
	Recorder Recorder
	Encode   func(gocv.Mat) ([]byte, error)
	Now      func() time.Time
	Log      io.Writer
}

// Component owns the state carried from one frame to the next.
type Component struct {
	opts Options
	deps Deps

	recognizer Recognizer
	frames     int
}

func New(opts Options, deps Deps) *Component {
	if deps.Encode == nil {
		deps.Encode = vision.EncodeJPEG
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Log == nil {
		deps.Log = os.Stderr
	}
	return &Component{opts: opts, deps: deps}
}

// Start prepares the export folder when recording and registers the session.
func (c *Component) Start(ctx context.Context) error {
	if c.opts.Recording {
		if err := c.deps.Session.Create(); err != nil {
			return err
		}
		fmt.Fprintf(c.deps.Log, "💾 Exporting frames to %s\n", c.deps.Session.Dir())
	}

	if c.deps.Recorder != nil {
		info := types.SessionInfo{
			ID:             c.deps.Session.ID,
			StartedAt:      c.deps.Session.StartedAt,
			Source:         c.opts.Source,
			Recording:      c.opts.Recording,
			RecordOnlyFace: c.opts.RecordOnlyFace,
		}
		if c.opts.Recording {
			info.ExportDir = c.deps.Session.Dir()
		}
		if err := c.deps.Recorder.BeginSession(ctx, info); err != nil {
			c.warn("Failed to register session: %v", err)
		}
	}
	return nil
}

// Update processes one frame in place: the face is outlined and labelled on
// frame itself. Empty frames are ignored.
func (c *Component) Update(ctx context.Context, frame *gocv.Mat) (types.FrameResult, error) {
	if frame.Empty() {
		return types.FrameResult{}, nil
	}
	c.frames++
	res := types.FrameResult{Index: c.frames}

	face := c.deps.Detector.FirstFace(*frame).Intersect(image.Rect(0, 0, frame.Cols(), frame.Rows()))

	var crop *gocv.Mat
	if !face.Empty() {
		res.Face = face

		// Capture clean pixels before anything is drawn over them
		if c.opts.Recording && c.opts.RecordOnlyFace {
			region := frame.Region(face)
			clone := region.Clone()
			region.Close()
			crop = &clone
			defer crop.Close()
		}

		recognized, err := c.recognize(*frame, face)
		if err != nil {
			return res, err
		}
		res.Recognized = &recognized
		res.Label = types.Label(recognized, c.opts.MaxConfidence, c.recognizer.Label())
		if c.opts.Verbose {
			fmt.Fprintf(c.deps.Log, "%d (%s)\n", recognized.FaceIndex, recognized.ConfidenceString())
		}

		vision.Annotate(frame, face, res.Label)
	}

	if c.opts.Recording {
		var target *gocv.Mat
		if c.opts.RecordOnlyFace {
			target = crop // nil when no face was found
		} else {
			target = frame
		}
		if target != nil {
			path, err := c.export(*target)
			if err != nil {
				return res, err
			}
			res.ExportPath = path
		}
	}

	if c.deps.Recorder != nil && res.HasFace() {
		if err := c.deps.Recorder.RecordFrame(ctx, c.deps.Session.ID, res); err != nil {
			c.warn("Failed to record frame %d: %v", res.Index, err)
		}
	}
	return res, nil
}

// Stop closes the session in the recorder.
func (c *Component) Stop(ctx context.Context) error {
	if c.deps.Recorder == nil {
		return nil
	}
	return c.deps.Recorder.EndSession(ctx, c.deps.Session.ID, c.frames)
}

// Frames is the number of non-empty frames processed so far.
func (c *Component) Frames() int {
	return c.frames
}

func (c *Component) recognize(frame gocv.Mat, face image.Rectangle) (types.Recognized, error) {
	if c.recognizer == nil {
		rec, err := c.deps.Loader()
		if err != nil {
			return types.Recognized{}, err
		}
		c.recognizer = rec
		fmt.Fprintf(c.deps.Log, "🧠 Recognizer ready for %q\n", rec.Label())
	}

	region := frame.Region(face)
	defer region.Close()
	return c.recognizer.Predict(region)
}

func (c *Component) export(m gocv.Mat) (string, error) {
	data, err := c.deps.Encode(m)
	if err != nil {
		return "", fmt.Errorf("encode frame %d: %w", c.frames, err)
	}
	return c.deps.Session.WriteFile(data, c.deps.Now())
}

func (c *Component) warn(format string, args ...any) {
	fmt.Fprintf(c.deps.Log, "⚠️  "+format+"\n", args...)
}

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/andresmejia3/facecam/internal/dataset"
	"github.com/andresmejia3/facecam/internal/types"
	"gocv.io/x/gocv"
)

type fakeDetector struct {
	face image.Rectangle
}

func (f *fakeDetector) FirstFace(gocv.Mat) image.Rectangle { return f.face }

type fakeRecognizer struct {
	result types.Recognized
	sizes  []image.Point
}

func (f *fakeRecognizer) Predict(face gocv.Mat) (types.Recognized, error) {
	f.sizes = append(f.sizes, image.Pt(face.Cols(), face.Rows()))
	return f.result, nil
}

func (f *fakeRecognizer) Label() string { return "Alice" }

type fakeRecorder struct {
	began  []types.SessionInfo
	frames []types.FrameResult
	ended  int
	err    error
}

func (f *fakeRecorder) BeginSession(_ context.Context, info types.SessionInfo) error {
	f.began = append(f.began, info)
	return f.err
}

func (f *fakeRecorder) RecordFrame(_ context.Context, _ string, res types.FrameResult) error {
	f.frames = append(f.frames, res)
	return f.err
}

func (f *fakeRecorder) EndSession(_ context.Context, _ string, frames int) error {
	f.ended = frames
	return f.err
}

type harness struct {
	comp     *Component
	detector *fakeDetector
	rec      *fakeRecognizer
	recorder *fakeRecorder
	session  *dataset.Session
	loads    int
	log      *bytes.Buffer
}

func newHarness(t *testing.T, opts Options, loadErr error) *harness {
	t.Helper()
	h := &harness{
		detector: &fakeDetector{},
		rec:      &fakeRecognizer{result: types.Recognized{FaceIndex: 1, Confidence: 42.5}},
		recorder: &fakeRecorder{},
		session:  dataset.NewSession(t.TempDir(), time.Unix(1700000000, 0)),
		log:      &bytes.Buffer{},
	}
	tick := time.Unix(1700000100, 0)
	h.comp = New(opts, Deps{
		Detector: h.detector,
		Loader: func() (Recognizer, error) {
			h.loads++
			if loadErr != nil {
				return nil, loadErr
			}
			return h.rec, nil
		},
		Session:  h.session,
		Recorder: h.recorder,
		Now: func() time.Time {
			tick = tick.Add(time.Millisecond)
			return tick
		},
		Log: h.log,
	})
	return h
}

func newFrame(t *testing.T) *gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
	m.SetTo(gocv.NewScalar(20, 20, 20, 0))
	t.Cleanup(func() { m.Close() })
	return &m
}

func exported(t *testing.T, s *dataset.Session) []string {
	t.Helper()
	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestUpdate_EmptyFrameIgnored(t *testing.T) {
	h := newHarness(t, Options{MaxConfidence: 80, Recording: true}, nil)
	if err := h.comp.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	empty := gocv.NewMat()
	defer empty.Close()

	res, err := h.comp.Update(context.Background(), &empty)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if res.Index != 0 || h.comp.Frames() != 0 {
		t.Errorf("empty frame must not be counted, got index %d", res.Index)
	}
	if files := exported(t, h.session); len(files) != 0 {
		t.Errorf("nothing should be exported for an empty frame, got %v", files)
	}
}

func TestUpdate_RecognizerIsLazy(t *testing.T) {
	h := newHarness(t, Options{MaxConfidence: 80}, nil)
	frame := newFrame(t)

	// No face: the model must not be trained yet
	if _, err := h.comp.Update(context.Background(), frame); err != nil {
		t.Fatal(err)
	}
	if h.loads != 0 {
		t.Fatalf("recognizer loaded before any face was seen")
	}

	h.detector.face = image.Rect(100, 60, 200, 160)
	for i := 0; i < 3; i++ {
		if _, err := h.comp.Update(context.Background(), newFrame(t)); err != nil {
			t.Fatal(err)
		}
	}
	if h.loads != 1 {
		t.Errorf("expected recognizer to load once, loaded %d times", h.loads)
	}
}

func TestUpdate_Labels(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		want       string
	}{
		{"Known face", 42.54, "Alice 42.5"},
		{"Unknown face", 95, types.UnknownFace},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Options{MaxConfidence: 80, Verbose: true}, nil)
			h.rec.result.Confidence = tt.confidence
			h.detector.face = image.Rect(100, 60, 200, 160)

			res, err := h.comp.Update(context.Background(), newFrame(t))
			if err != nil {
				t.Fatal(err)
			}
			if res.Label != tt.want {
				t.Errorf("label = %q, want %q", res.Label, tt.want)
			}
			if !strings.Contains(h.log.String(), "1 (") {
				t.Errorf("verbose mode should log the prediction, got %q", h.log.String())
			}
			// Prediction sees only the face region
			if len(h.rec.sizes) != 1 || h.rec.sizes[0] != image.Pt(100, 100) {
				t.Errorf("unexpected face region sizes %v", h.rec.sizes)
			}
		})
	}
}

func TestUpdate_FaceClippedToFrame(t *testing.T) {
	h := newHarness(t, Options{MaxConfidence: 80}, nil)
	h.detector.face = image.Rect(300, 200, 400, 300)

	res, err := h.comp.Update(context.Background(), newFrame(t))
	if err != nil {
		t.Fatal(err)
	}
	if res.Face != image.Rect(300, 200, 320, 240) {
		t.Errorf("face not clipped to frame bounds: %v", res.Face)
	}
}

func TestUpdate_DrawsOverlay(t *testing.T) {
	h := newHarness(t, Options{MaxConfidence: 80}, nil)
	h.detector.face = image.Rect(100, 60, 200, 160)
	frame := newFrame(t)

	if _, err := h.comp.Update(context.Background(), frame); err != nil {
		t.Fatal(err)
	}
	px := frame.GetVecbAt(160, 150)
	if px[0] != 250 {
		t.Errorf("expected bounding box on the frame, got %v", px)
	}
}

func TestUpdate_RecordWholeFrame(t *testing.T) {
	h := newHarness(t, Options{MaxConfidence: 80, Recording: true}, nil)
	ctx := context.Background()
	if err := h.comp.Start(ctx); err != nil {
		t.Fatal(err)
	}

	// Whole frames are exported with or without a face
	if _, err := h.comp.Update(ctx, newFrame(t)); err != nil {
		t.Fatal(err)
	}
	h.detector.face = image.Rect(100, 60, 200, 160)
	res, err := h.comp.Update(ctx, newFrame(t))
	if err != nil {
		t.Fatal(err)
	}

	files := exported(t, h.session)
	if len(files) != 2 {
		t.Fatalf("expected 2 exported frames, got %v", files)
	}
	img := gocv.IMRead(res.ExportPath, gocv.IMReadColor)
	defer img.Close()
	if img.Cols() != 320 || img.Rows() != 240 {
		t.Errorf("expected full frame export, got %dx%d", img.Cols(), img.Rows())
	}
}

func TestUpdate_RecordOnlyFace(t *testing.T) {
	h := newHarness(t, Options{MaxConfidence: 80, Recording: true, RecordOnlyFace: true}, nil)
	ctx := context.Background()
	if err := h.comp.Start(ctx); err != nil {
		t.Fatal(err)
	}

	// No face, nothing to crop
	if _, err := h.comp.Update(ctx, newFrame(t)); err != nil {
		t.Fatal(err)
	}
	if files := exported(t, h.session); len(files) != 0 {
		t.Fatalf("face-only mode exported a frame without a face: %v", files)
	}

	h.detector.face = image.Rect(100, 60, 180, 160)
	res, err := h.comp.Update(ctx, newFrame(t))
	if err != nil {
		t.Fatal(err)
	}
	if res.ExportPath == "" {
		t.Fatal("expected the face to be exported")
	}

	img := gocv.IMRead(res.ExportPath, gocv.IMReadColor)
	defer img.Close()
	if img.Cols() != 80 || img.Rows() != 100 {
		t.Errorf("expected face-sized export 80x100, got %dx%d", img.Cols(), img.Rows())
	}
	// The crop is taken before the outline is drawn
	px := img.GetVecbAt(0, 40)
	if px[0] > 100 {
		t.Errorf("face crop contains the bounding box: %v", px)
	}
}

func TestUpdate_NotRecording(t *testing.T) {
	h := newHarness(t, Options{MaxConfidence: 80}, nil)
	if err := h.comp.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	h.detector.face = image.Rect(100, 60, 200, 160)
	res, err := h.comp.Update(context.Background(), newFrame(t))
	if err != nil {
		t.Fatal(err)
	}
	if res.ExportPath != "" {
		t.Errorf("nothing should be exported when not recording, got %q", res.ExportPath)
	}
	if _, err := os.Stat(h.session.Dir()); !os.IsNotExist(err) {
		t.Error("session folder must only be created when recording")
	}
}

func TestUpdate_TrainingFailureStopsLoop(t *testing.T) {
	loadErr := dataset.ErrNoTrainingFolder
	h := newHarness(t, Options{MaxConfidence: 80}, loadErr)
	h.detector.face = image.Rect(100, 60, 200, 160)

	_, err := h.comp.Update(context.Background(), newFrame(t))
	if !errors.Is(err, dataset.ErrNoTrainingFolder) {
		t.Fatalf("expected training error, got %v", err)
	}
}

func TestRecorderLifecycle(t *testing.T) {
	h := newHarness(t, Options{MaxConfidence: 80, Source: "camera:0"}, nil)
	ctx := context.Background()
	if err := h.comp.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if len(h.recorder.began) != 1 || h.recorder.began[0].ID != h.session.ID || h.recorder.began[0].Source != "camera:0" {
		t.Fatalf("session not registered: %+v", h.recorder.began)
	}

	if _, err := h.comp.Update(ctx, newFrame(t)); err != nil {
		t.Fatal(err)
	}
	h.detector.face = image.Rect(100, 60, 200, 160)
	if _, err := h.comp.Update(ctx, newFrame(t)); err != nil {
		t.Fatal(err)
	}

	// Only frames with a face are recorded
	if len(h.recorder.frames) != 1 || h.recorder.frames[0].Index != 2 {
		t.Errorf("unexpected recorded frames %+v", h.recorder.frames)
	}

	if err := h.comp.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if h.recorder.ended != 2 {
		t.Errorf("expected 2 frames at session end, got %d", h.recorder.ended)
	}
}

func TestRecorderFailureDoesNotStopLoop(t *testing.T) {
	h := newHarness(t, Options{MaxConfidence: 80}, nil)
	h.recorder.err = errors.New("connection reset")
	h.detector.face = image.Rect(100, 60, 200, 160)
	ctx := context.Background()

	if err := h.comp.Start(ctx); err != nil {
		t.Fatalf("recorder errors must not fail Start: %v", err)
	}
	if _, err := h.comp.Update(ctx, newFrame(t)); err != nil {
		t.Fatalf("recorder errors must not fail Update: %v", err)
	}
	if !strings.Contains(h.log.String(), "connection reset") {
		t.Errorf("expected a warning, got %q", h.log.String())
	}
}

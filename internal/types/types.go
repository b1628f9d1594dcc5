package types

import (
	"image"
	"math"
	"strconv"
	"time"
)

// UnknownFace is the label drawn when the recognizer is not confident enough.
const UnknownFace = "Unknown face"

// Recognized is the result of running the recognizer on one face
type Recognized struct {
	FaceIndex  int
	Confidence float64 // LBPH distance, lower is a closer match
}

// ConfidenceString formats the confidence with at most one decimal ("45.3", "80").
func (r Recognized) ConfidenceString() string {
	return strconv.FormatFloat(math.Round(r.Confidence*10)/10, 'f', -1, 64)
}

// Label builds the text drawn above a face. A face is only named when its
// confidence is strictly below maxConfidence.
func Label(r Recognized, maxConfidence float64, faceLabel string) string {
	if r.Confidence < maxConfidence {
		return faceLabel + " " + r.ConfidenceString()
	}
	return UnknownFace
}

// FrameResult describes what happened to a single frame in the capture loop
type FrameResult struct {
	Index      int
	Face       image.Rectangle // empty when no face was detected
	Recognized *Recognized
	Label      string
	ExportPath string
}

// HasFace reports whether a face was detected in the frame.
func (f FrameResult) HasFace() bool {
	return !f.Face.Empty()
}

// SessionInfo describes a capture session when it starts
type SessionInfo struct {
	ID             string
	StartedAt      time.Time
	Source         string // camera index or video path
	Recording      bool
	RecordOnlyFace bool
	ExportDir      string
}

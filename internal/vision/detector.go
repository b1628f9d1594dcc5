package vision

import (
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"
)

const (
	scaleFactor  = 1.1
	minNeighbors = 2
	// haarScaleImage is OpenCV's CASCADE_SCALE_IMAGE flag
	haarScaleImage = 2
)

// CascadeDetector finds faces with a pretrained Haar cascade.
type CascadeDetector struct {
	classifier gocv.CascadeClassifier
}

// NewCascadeDetector loads the cascade XML at path.
func NewCascadeDetector(path string) (*CascadeDetector, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("cascade file: %w", err)
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, fmt.Errorf("error reading cascade file: %s", path)
	}
	return &CascadeDetector{classifier: classifier}, nil
}

// Detect returns every face found in frame.
func (d *CascadeDetector) Detect(frame gocv.Mat) []image.Rectangle {
	return d.classifier.DetectMultiScaleWithParams(frame, scaleFactor, minNeighbors, haarScaleImage, image.Point{}, image.Point{})
}

// FirstFace returns the first face found in frame, or the empty rectangle.
func (d *CascadeDetector) FirstFace(frame gocv.Mat) image.Rectangle {
	faces := d.Detect(frame)
	if len(faces) == 0 {
		return image.Rectangle{}
	}
	return faces[0]
}

func (d *CascadeDetector) Close() error {
	return d.classifier.Close()
}

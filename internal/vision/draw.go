package vision

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var (
	// gocv maps color.RGBA onto OpenCV's BGR scalar
	boxColor   = color.RGBA{R: 0, G: 0, B: 250, A: 0}
	labelColor = color.RGBA{R: 0, G: 0, B: 255, A: 0}
)

const (
	boxThickness = 2
	labelScale   = 4
)

// DrawFace outlines a face.
func DrawFace(frame *gocv.Mat, box image.Rectangle) {
	gocv.Rectangle(frame, box, boxColor, boxThickness)
}

// DrawLabel writes label just above box. The text is drawn twice, one pixel
// apart, to make it bolder.
func DrawLabel(frame *gocv.Mat, box image.Rectangle, label string) {
	gocv.PutText(frame, label, offset(box, 0, -5), gocv.FontHersheyPlain, labelScale, labelColor, 1)
	gocv.PutText(frame, label, offset(box, 1, -6), gocv.FontHersheyPlain, labelScale, labelColor, 1)
}

// Annotate outlines a face and labels it.
func Annotate(frame *gocv.Mat, box image.Rectangle, label string) {
	DrawFace(frame, box)
	DrawLabel(frame, box, label)
}

func offset(r image.Rectangle, horizontal, vertical int) image.Point {
	return r.Min.Add(image.Pt(horizontal, vertical))
}

package vision

import "gocv.io/x/gocv"

// Window shows annotated frames on screen.
type Window struct {
	win     *gocv.Window
	quitKey int
}

func NewWindow(title string, quitKey int) *Window {
	return &Window{win: gocv.NewWindow(title), quitKey: quitKey}
}

// Show displays frame and reports whether the quit key was pressed.
func (w *Window) Show(frame gocv.Mat) bool {
	w.win.IMShow(frame)
	return w.win.WaitKey(1) == w.quitKey
}

func (w *Window) Close() error {
	return w.win.Close()
}

package vision

import (
	"errors"

	"gocv.io/x/gocv"
)

// EncodeJPEG compresses a frame to JPEG bytes owned by Go.
func EncodeJPEG(m gocv.Mat) ([]byte, error) {
	if m.Empty() {
		return nil, errors.New("cannot encode empty frame")
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, m)
	if err != nil {
		return nil, err
	}
	defer buf.Close()

	// GetBytes aliases native memory that Close releases
	native := buf.GetBytes()
	out := make([]byte, len(native))
	copy(out, native)
	return out, nil
}

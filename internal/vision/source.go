package vision

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/andresmejia3/facecam/internal/utils"
	"gocv.io/x/gocv"
)

const megabyte = 1024 * 1024

// Source produces frames for the capture loop. Read leaves dst empty when no
// frame is available yet and returns io.EOF once the source is exhausted.
type Source interface {
	Read(dst *gocv.Mat) error
	Close() error
}

// Camera reads frames from a local capture device.
type Camera struct {
	capture *gocv.VideoCapture
}

// OpenCamera opens the capture device with the given index.
func OpenCamera(device int) (*Camera, error) {
	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("open capture device %d: %w", device, err)
	}
	return &Camera{capture: capture}, nil
}

// Read grabs the next frame. A failed grab is not an error, dst is just empty.
func (c *Camera) Read(dst *gocv.Mat) error {
	c.capture.Read(dst)
	return nil
}

func (c *Camera) Close() error {
	return c.capture.Close()
}

// VideoFile decodes a video with ffmpeg into a stream of JPEG frames.
type VideoFile struct {
	Path string

	cmd     *utils.SafeCommand
	out     io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

// OpenVideoFile starts ffmpeg on path. The process dies with ctx.
func OpenVideoFile(ctx context.Context, path string) (*VideoFile, error) {
	cmd := utils.NewFFmpegCmd(ctx, path)
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	scanner := bufio.NewScanner(out)
	scanner.Buffer(make([]byte, megabyte), 64*megabyte)
	scanner.Split(utils.SplitJpeg)

	return &VideoFile{Path: path, cmd: cmd, out: out, scanner: scanner}, nil
}

func (v *VideoFile) Read(dst *gocv.Mat) error {
	if !v.scanner.Scan() {
		if err := v.scanner.Err(); err != nil {
			return fmt.Errorf("frame scanner failed: %w", err)
		}
		v.done = true
		return io.EOF
	}

	img, err := gocv.IMDecode(v.scanner.Bytes(), gocv.IMReadColor)
	if err != nil {
		// Corrupt frames are skipped like missing camera frames
		return nil
	}
	defer img.Close()
	img.CopyTo(dst)
	return nil
}

// Command exposes the ffmpeg process so its logs can be shown on failure.
func (v *VideoFile) Command() *utils.SafeCommand {
	return v.cmd
}

// Close stops ffmpeg. Exit errors only matter when the stream was read to the end.
func (v *VideoFile) Close() error {
	v.out.Close()
	err := v.cmd.Wait()
	if v.done && err != nil {
		return fmt.Errorf("ffmpeg execution failed: %w", err)
	}
	return nil
}

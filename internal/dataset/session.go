package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Session is one run of the capture loop. Exported frames land in Root/ID.
type Session struct {
	ID        string
	Root      string
	StartedAt time.Time

	lastName string
	dupes    int
}

// NewSession names a session after its start time in nanoseconds.
func NewSession(root string, now time.Time) *Session {
	return &Session{
		ID:        strconv.FormatInt(now.UnixNano(), 10),
		Root:      root,
		StartedAt: now,
	}
}

// Dir is the folder frames of this session are exported to.
func (s *Session) Dir() string {
	return filepath.Join(s.Root, s.ID)
}

// Create makes the export folder. It is only called when recording.
func (s *Session) Create() error {
	if err := os.MkdirAll(s.Dir(), 0755); err != nil {
		return fmt.Errorf("create session folder: %w", err)
	}
	return nil
}

// ExportPath returns the file name for a frame exported at now. Two frames
// exported within the same clock tick get a numeric suffix.
func (s *Session) ExportPath(now time.Time) string {
	name := strconv.FormatInt(now.UnixNano(), 10)
	if name == s.lastName {
		s.dupes++
		return filepath.Join(s.Dir(), fmt.Sprintf("%s-%d.jpg", name, s.dupes))
	}
	s.lastName = name
	s.dupes = 0
	return filepath.Join(s.Dir(), name+".jpg")
}

// WriteFile exports already encoded image bytes and returns the path written.
func (s *Session) WriteFile(data []byte, now time.Time) (string, error) {
	path := s.ExportPath(now)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("export frame: %w", err)
	}
	return path, nil
}

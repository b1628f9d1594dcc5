package store

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/andresmejia3/facecam/internal/types"
	"github.com/jackc/pgx/v5"
)

// ErrSessionNotFound is returned when a session ID is unknown.
var ErrSessionNotFound = errors.New("session not found")

// Store manages the PostgreSQL connection that records capture sessions.
type Store struct {
	conn *pgx.Conn
}

// Session is a capture session as stored in the database.
type Session struct {
	ID             string
	StartedAt      time.Time
	EndedAt        *time.Time
	Source         string
	Recording      bool
	RecordOnlyFace bool
	ExportDir      string
	Frames         int
	Recognitions   int
}

// Recognition is one frame in which a face was detected and labelled.
type Recognition struct {
	Frame        int
	Label        string
	FaceIndex    *int
	Confidence   *float64
	Box          image.Rectangle
	ExportPath   string
	RecognizedAt time.Time
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// initSchema creates the necessary tables if they don't exist (Auto-Migration).
func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS capture_sessions (
			id TEXT PRIMARY KEY,
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ,
			source TEXT NOT NULL DEFAULT '',
			recording BOOLEAN NOT NULL DEFAULT FALSE,
			record_only_face BOOLEAN NOT NULL DEFAULT FALSE,
			export_dir TEXT NOT NULL DEFAULT '',
			frames INT NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS recognitions (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES capture_sessions(id) ON DELETE CASCADE,
			frame_index INT NOT NULL,
			label TEXT NOT NULL,
			face_index INT,
			confidence DOUBLE PRECISION,
			box INT[] NOT NULL,
			export_path TEXT NOT NULL DEFAULT '',
			recognized_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS recognitions_session_id_idx ON recognitions (session_id);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// BeginSession registers a capture session. Re-using an ID restarts it.
func (s *Store) BeginSession(ctx context.Context, info types.SessionInfo) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO capture_sessions (id, started_at, source, recording, record_only_face, export_dir)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET started_at = EXCLUDED.started_at, ended_at = NULL, frames = 0
	`, info.ID, info.StartedAt, info.Source, info.Recording, info.RecordOnlyFace, info.ExportDir)
	return err
}

// RecordFrame saves the recognition outcome of a frame that contained a face.
func (s *Store) RecordFrame(ctx context.Context, sessionID string, res types.FrameResult) error {
	if !res.HasFace() {
		return nil
	}

	var faceIndex *int
	var confidence *float64
	if res.Recognized != nil {
		idx, conf := res.Recognized.FaceIndex, res.Recognized.Confidence
		faceIndex, confidence = &idx, &conf
	}
	box := []int{res.Face.Min.X, res.Face.Min.Y, res.Face.Max.X, res.Face.Max.Y}

	_, err := s.conn.Exec(ctx, `
		INSERT INTO recognitions (session_id, frame_index, label, face_index, confidence, box, export_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, sessionID, res.Index, res.Label, faceIndex, confidence, box, res.ExportPath)
	return err
}

// EndSession stamps the end time and total frame count of a session.
func (s *Store) EndSession(ctx context.Context, sessionID string, frames int) error {
	tag, err := s.conn.Exec(ctx, "UPDATE capture_sessions SET ended_at = NOW(), frames = $1 WHERE id = $2", frames, sessionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return nil
}

// ListSessions returns every session, newest first, with its recognition count.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT s.id, s.started_at, s.ended_at, s.source, s.recording, s.record_only_face, s.export_dir, s.frames,
		       COUNT(r.id)
		FROM capture_sessions s
		LEFT JOIN recognitions r ON r.session_id = s.id
		GROUP BY s.id
		ORDER BY s.started_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.StartedAt, &sess.EndedAt, &sess.Source, &sess.Recording,
			&sess.RecordOnlyFace, &sess.ExportDir, &sess.Frames, &sess.Recognitions); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// SessionRecognitions returns the recognitions of a session in frame order.
func (s *Store) SessionRecognitions(ctx context.Context, sessionID string) ([]Recognition, error) {
	var exists bool
	if err := s.conn.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM capture_sessions WHERE id = $1)", sessionID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	rows, err := s.conn.Query(ctx, `
		SELECT frame_index, label, face_index, confidence, box, export_path, recognized_at
		FROM recognitions
		WHERE session_id = $1
		ORDER BY frame_index ASC, id ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Recognition
	for rows.Next() {
		var r Recognition
		var box []int
		if err := rows.Scan(&r.Frame, &r.Label, &r.FaceIndex, &r.Confidence, &box, &r.ExportPath, &r.RecognizedAt); err != nil {
			return nil, err
		}
		if len(box) == 4 {
			r.Box = image.Rect(box[0], box[1], box[2], box[3])
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Reset drops all application tables to clear the database state.
// The next New call recreates them.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `
		DROP TABLE IF EXISTS recognitions CASCADE;
		DROP TABLE IF EXISTS capture_sessions CASCADE;
	`)
	return err
}

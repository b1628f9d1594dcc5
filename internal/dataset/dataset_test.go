package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func mkdirs(t *testing.T, root string, dirs ...string) {
	t.Helper()
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0755); err != nil {
			t.Fatal(err)
		}
	}
}

func TestFindTrainingFolder(t *testing.T) {
	tests := []struct {
		name       string
		dirs       []string
		wantFolder string
		wantLabel  string
	}{
		{
			name:       "Label from folder name",
			dirs:       []string{"TrainFaceAlice"},
			wantFolder: "TrainFaceAlice",
			wantLabel:  "Alice",
		},
		{
			name:       "Bare prefix uses default label",
			dirs:       []string{"TrainFace"},
			wantFolder: "TrainFace",
			wantLabel:  "Face #1",
		},
		{
			name:       "Whitespace-only suffix uses default label",
			dirs:       []string{"TrainFace   "},
			wantFolder: "TrainFace   ",
			wantLabel:  "Face #1",
		},
		{
			name:       "Nested folders are searched",
			dirs:       []string{"models", "people/TrainFace Bob"},
			wantFolder: "people/TrainFace Bob",
			wantLabel:  "Bob",
		},
		{
			name:       "First match in lexical order",
			dirs:       []string{"TrainFaceZed", "TrainFaceAmy"},
			wantFolder: "TrainFaceAmy",
			wantLabel:  "Amy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			mkdirs(t, root, tt.dirs...)

			folder, label, err := FindTrainingFolder(root, "TrainFace", "Face #1")
			if err != nil {
				t.Fatalf("FindTrainingFolder failed: %v", err)
			}
			if want := filepath.Join(root, tt.wantFolder); folder != want {
				t.Errorf("folder = %q, want %q", folder, want)
			}
			if label != tt.wantLabel {
				t.Errorf("label = %q, want %q", label, tt.wantLabel)
			}
		})
	}
}

func TestFindTrainingFolder_Missing(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "faces", "1700000000")

	_, _, err := FindTrainingFolder(root, "TrainFace", "Face #1")
	if !errors.Is(err, ErrNoTrainingFolder) {
		t.Fatalf("expected ErrNoTrainingFolder, got %v", err)
	}
	if !strings.Contains(err.Error(), "a folder starting with TrainFace must exist in "+root) {
		t.Errorf("error should describe what is missing, got %q", err.Error())
	}
}

func TestFindTrainingFolder_MissingRoot(t *testing.T) {
	_, _, err := FindTrainingFolder(filepath.Join(t.TempDir(), "absent"), "TrainFace", "Face #1")
	if !errors.Is(err, ErrNoTrainingFolder) {
		t.Fatalf("expected ErrNoTrainingFolder for missing root, got %v", err)
	}
}

func TestFindTrainingFolder_IgnoresFiles(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "TrainFaceNotADir.jpg"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := FindTrainingFolder(root, "TrainFace", "Face #1"); !errors.Is(err, ErrNoTrainingFolder) {
		t.Fatalf("files must not match, got %v", err)
	}
}

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.jpg", "a.JPG", "c.png", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	mkdirs(t, dir, "nested.jpg")

	files, err := ListImages(dir)
	if err != nil {
		t.Fatalf("ListImages failed: %v", err)
	}
	want := []string{filepath.Join(dir, "a.JPG"), filepath.Join(dir, "b.jpg")}
	if len(files) != len(want) {
		t.Fatalf("expected %d files, got %v", len(want), files)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %q, want %q", i, files[i], want[i])
		}
	}
}

func TestSession(t *testing.T) {
	root := t.TempDir()
	start := time.Unix(1700000000, 123)
	s := NewSession(root, start)

	if s.ID != "1700000000000000123" {
		t.Errorf("unexpected session ID %q", s.ID)
	}
	if _, err := os.Stat(s.Dir()); !os.IsNotExist(err) {
		t.Fatal("session folder must not exist before Create")
	}
	if err := s.Create(); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	at := time.Unix(1700000001, 0)
	p1, err := s.WriteFile([]byte{0xFF, 0xD8, 0xFF, 0xD9}, at)
	if err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	p2, err := s.WriteFile([]byte{0xFF, 0xD8, 0xFF, 0xD9}, at)
	if err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if p1 != filepath.Join(s.Dir(), "1700000001000000000.jpg") {
		t.Errorf("unexpected export path %q", p1)
	}
	if p1 == p2 {
		t.Error("same-tick exports must not overwrite each other")
	}
	if _, err := os.Stat(p2); err != nil {
		t.Errorf("second export missing: %v", err)
	}
}

package output

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeString(path, body string) error {
	return WriteFile(path, func(w io.Writer) error {
		_, err := io.WriteString(w, body)
		return err
	})
}

func TestWriteFile_Replaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "report.txt")

	if err := writeString(path, "first"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := writeString(path, "second"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" {
		t.Errorf("expected 'second', got %q", got)
	}
}

func TestWriteFile_FailureKeepsOldContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")
	if err := writeString(path, "old"); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err := WriteFile(path, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return boom
	})
	if !errors.Is(err, ErrOutputWriteFailed) {
		t.Errorf("expected ErrOutputWriteFailed, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped cause, got %v", err)
	}

	got, _ := os.ReadFile(path)
	if string(got) != "old" {
		t.Errorf("expected old content to survive, got %q", got)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestWriteFile_UnwritableDestination(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	err := writeString(filepath.Join(blocker, "out.txt"), "x")
	if !errors.Is(err, ErrOutputWriteFailed) {
		t.Errorf("expected ErrOutputWriteFailed, got %v", err)
	}
}

package detection

import (
	"os"
	"path/filepath"
	"testing"
)

func TestImageCounterEmptyDir(t *testing.T) {
	counter := NewImageCounter(t.TempDir())

	if got := counter.Next(); got != 1 {
		t.Errorf("Next() = %d, want 1", got)
	}
	if got := counter.Next(); got != 2 {
		t.Errorf("Next() = %d, want 2", got)
	}
}

func TestImageCounterMissingDir(t *testing.T) {
	counter := NewImageCounter(filepath.Join(t.TempDir(), "does-not-exist"))

	if got := counter.Next(); got != 1 {
		t.Errorf("Next() = %d, want 1", got)
	}
}

func TestImageCounterSeedsFromDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"000001.jpg", "000042.jpg", "000007.jpg"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte{0xff}, 0o644); err != nil {
			t.Fatalf("failed to write fixture %s: %v", name, err)
		}
	}

	counter := NewImageCounter(dir)
	if got := counter.Next(); got != 43 {
		t.Errorf("Next() = %d, want 43", got)
	}
}

func TestImageCounterIgnoresNonNumericFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"000003.jpg", "thumbnail.jpg", "notes.txt", "000005.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte{0xff}, 0o644); err != nil {
			t.Fatalf("failed to write fixture %s: %v", name, err)
		}
	}

	counter := NewImageCounter(dir)
	if got := counter.Next(); got != 4 {
		t.Errorf("Next() = %d, want 4", got)
	}
}

func TestImageCounterWraps(t *testing.T) {
	counter := &ImageCounter{current: maxImageID - 1}

	if got := counter.Next(); got != maxImageID {
		t.Errorf("Next() = %d, want %d", got, maxImageID)
	}
	if got := counter.Next(); got != 1 {
		t.Errorf("Next() after wrap = %d, want 1", got)
	}
}

func TestImageCounterSeedAtLimitResets(t *testing.T) {
	dir := t.TempDir()
	name := Filename(maxImageID)
	if err := os.WriteFile(filepath.Join(dir, name), []byte{0xff}, 0o644); err != nil {
		t.Fatalf("failed to write fixture %s: %v", name, err)
	}

	counter := NewImageCounter(dir)
	if got := counter.Next(); got != 1 {
		t.Errorf("Next() = %d, want 1", got)
	}
}

func TestFilename(t *testing.T) {
	tests := []struct {
		id   int
		want string
	}{
		{1, "000001.jpg"},
		{42, "000042.jpg"},
		{99999, "099999.jpg"},
	}

	for _, tt := range tests {
		if got := Filename(tt.id); got != tt.want {
			t.Errorf("Filename(%d) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestFramePath(t *testing.T) {
	got := FramePath("/var/frames", 7)
	want := filepath.Join("/var/frames", "000007.jpg")
	if got != want {
		t.Errorf("FramePath() = %q, want %q", got, want)
	}
}

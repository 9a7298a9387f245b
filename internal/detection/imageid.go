package detection

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// maxImageID is the highest frame number before the counter wraps to 0.
// Filenames are six digits, so the space is 000000-099999.
const maxImageID = 100000 - 1

// ImageCounter allocates frame filenames (NNNNNN.jpg) from a
// process-local monotonic counter.
//
// The counter is independent of the detection log's row ids: filenames
// stay stable even as old log rows are pruned, which also means the
// numbering does not track the row count.
//
// Safe for concurrent use.
type ImageCounter struct {
	mu      sync.Mutex
	current int
}

// NewImageCounter creates a counter seeded from the frames directory:
// the counter resumes after the highest numeric *.jpg stem found, so a
// restart does not immediately collide with existing files. Files whose
// stems are not plain integers are skipped. A missing or empty directory
// seeds the counter at zero.
func NewImageCounter(framesDir string) *ImageCounter {
	maxID := 0

	entries, err := os.ReadDir(framesDir)
	if err == nil {
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jpg") {
				continue
			}
			stem := strings.TrimSuffix(entry.Name(), ".jpg")
			id, err := strconv.Atoi(stem)
			if err != nil {
				continue
			}
			if id > maxID {
				maxID = id
			}
		}
	}

	if maxID >= maxImageID {
		maxID = 0
	}

	return &ImageCounter{current: maxID}
}

// Next returns the next frame id, wrapping to 1 after the six-digit
// space is exhausted.
func (c *ImageCounter) Next() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current >= maxImageID {
		c.current = 0
	}
	c.current++
	return c.current
}

// Filename formats a frame id as its on-disk name, e.g. 42 -> "000042.jpg".
func Filename(id int) string {
	return fmt.Sprintf("%06d.jpg", id)
}

// FramePath joins the frames directory with a frame filename.
func FramePath(framesDir string, id int) string {
	return filepath.Join(framesDir, Filename(id))
}

package locate

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Progress receives LocateAll progress.
type Progress interface {
	OnStart(total int)
	OnProgress(current, total int)
	OnComplete()
	OnError(index int, err error)
}

// NoOpProgress ignores every event.
type NoOpProgress struct{}

func (NoOpProgress) OnStart(int)         {}
func (NoOpProgress) OnProgress(int, int) {}
func (NoOpProgress) OnComplete()         {}
func (NoOpProgress) OnError(int, error)  {}

// ConsoleProgress prints one line per processed photo.
type ConsoleProgress struct {
	w     io.Writer
	start time.Time
	mu    sync.Mutex
}

// NewConsoleProgress writes to w, or stderr when w is nil.
func NewConsoleProgress(w io.Writer) *ConsoleProgress {
	if w == nil {
		w = os.Stderr
	}
	return &ConsoleProgress{w: w}
}

func (c *ConsoleProgress) OnStart(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = time.Now()
	_, _ = fmt.Fprintf(c.w, "locating %d photo(s)\n", total)
}

func (c *ConsoleProgress) OnProgress(current, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pct := float64(current) / float64(total) * 100
	_, _ = fmt.Fprintf(c.w, "\r%d/%d (%.1f%%)", current, total, pct)
}

func (c *ConsoleProgress) OnComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.w, "\ncompleted in %v\n", time.Since(c.start).Round(time.Millisecond))
}

func (c *ConsoleProgress) OnError(index int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.w, "\nphoto %d: %v\n", index, err)
}

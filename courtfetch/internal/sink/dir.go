package sink

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/hazyhaar/hcbot/courtfetch/record"
)

// Dir writes each fetched document to a directory. Names come from the
// result label; a second document with the same label gets a _2 suffix,
// and so on. Existing files are never overwritten.
type Dir struct {
	mu    sync.Mutex
	dir   string
	saved []string
}

// NewDir creates a Dir sink rooted at dir. The directory is created on the
// first write.
func NewDir(dir string) *Dir {
	return &Dir{dir: dir}
}

// Saved lists the paths written so far.
func (d *Dir) Saved() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.saved...)
}

func (d *Dir) Line(context.Context, string) error { return nil }

func (d *Dir) Result(_ context.Context, res record.FetchResult) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("dir sink: mkdir: %w", err)
	}
	base := strings.TrimSuffix(res.FileName(), ".pdf")
	for n := 1; ; n++ {
		name := base
		if n > 1 {
			name += "_" + strconv.Itoa(n)
		}
		path := filepath.Join(d.dir, name+".pdf")
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("dir sink: %w", err)
		}
		_, werr := f.Write(res.Data)
		cerr := f.Close()
		if err := errors.Join(werr, cerr); err != nil {
			return fmt.Errorf("dir sink: write %s: %w", path, err)
		}
		d.saved = append(d.saved, path)
		return nil
	}
}

func (d *Dir) Outcome(context.Context, record.CaseOutcome) error { return nil }

func (d *Dir) Summary(context.Context, *record.RunSummary) error { return nil }

func (d *Dir) Close() error { return nil }

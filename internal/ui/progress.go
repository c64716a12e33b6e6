package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// ProgressManager renders one progress bar per in-flight download, keyed by
// "runtime@version". On a non-TTY it falls back to a single start-line per
// download instead of redrawing bars in place.
type ProgressManager struct {
	mu       sync.Mutex
	w        io.Writer
	isTTY    bool
	progress *mpb.Progress
	bars     map[string]*mpb.Bar
	started  map[string]bool
}

// NewProgressManager creates a ProgressManager writing to w. Terminal
// detection mirrors the teacher's: isatty on stdout, with Cygwin terminals
// counted as TTYs too.
func NewProgressManager(w io.Writer) *ProgressManager {
	isTTY := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	pm := &ProgressManager{
		w:       w,
		isTTY:   isTTY,
		bars:    make(map[string]*mpb.Bar),
		started: make(map[string]bool),
	}
	if isTTY {
		pm.progress = mpb.New(mpb.WithOutput(w), mpb.WithWidth(40))
	}
	return pm
}

// Wait blocks until every bar has finished rendering.
func (pm *ProgressManager) Wait() {
	if pm.progress != nil {
		pm.progress.Wait()
	}
}

// OnDownloadProgress returns the callback to wire into
// rtctx.RuntimeContext.OnDownloadProgress.
func (pm *ProgressManager) OnDownloadProgress(runtime, ver string, downloaded, total int64) {
	key := runtime + "@" + ver

	pm.mu.Lock()
	if !pm.started[key] {
		pm.started[key] = true
		pm.startLocked(key, runtime, ver)
	}
	bar := pm.bars[key]
	pm.mu.Unlock()

	if bar == nil {
		return
	}
	if total > 0 {
		bar.SetTotal(total, false)
	}
	bar.SetCurrent(downloaded)
	if total > 0 && downloaded >= total {
		bar.SetTotal(total, true)
		pm.mu.Lock()
		delete(pm.bars, key)
		pm.mu.Unlock()
	}
}

func (pm *ProgressManager) startLocked(key, runtime, ver string) {
	if !pm.isTTY {
		fmt.Fprintf(pm.w, "  downloading %s %s\n", runtime, ver)
		return
	}
	pm.bars[key] = pm.progress.AddBar(0,
		mpb.BarFillerClearOnComplete(),
		mpb.PrependDecorators(
			decor.Name(fmt.Sprintf("  %s ", runtime), decor.WC{W: 14, C: decor.DindentRight}),
			decor.Name(ver, decor.WC{W: 12}),
		),
		mpb.AppendDecorators(
			decor.CountersKibiByte("% .1f / % .1f"),
			decor.OnComplete(decor.Name(""), " done"),
		),
	)
}

package cli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/mvp-joe/phpintel/internal/scanner"
)

// CLIProgressReporter draws one progress bar per scanned root.
type CLIProgressReporter struct {
	out   io.Writer
	quiet bool

	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

var _ scanner.ProgressReporter = (*CLIProgressReporter)(nil)

// NewCLIProgressReporter creates a reporter writing to out.
func NewCLIProgressReporter(out io.Writer, quiet bool) *CLIProgressReporter {
	return &CLIProgressReporter{out: out, quiet: quiet}
}

func (c *CLIProgressReporter) OnDiscoveryComplete(root string, files int) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bar != nil {
		c.bar.Finish()
	}
	fmt.Fprintf(c.out, "Scanning %s files in %s\n", formatNumber(files), root)
	c.bar = progressbar.NewOptions(files,
		progressbar.OptionSetWriter(c.out),
		progressbar.OptionSetDescription("Scanning files"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(c.out)
		}),
	)
}

func (c *CLIProgressReporter) OnFileScanned(path string) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bar != nil {
		c.bar.Add(1)
	}
}

func (c *CLIProgressReporter) OnComplete(stats *scanner.ScanStats) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bar != nil {
		c.bar.Finish()
		c.bar = nil
	}
	fmt.Fprintf(c.out, "✓ Scanned %s in %s: %s classes",
		stats.Root, scanner.FormatElapsed(stats.Duration), formatNumber(stats.Classes))
	if stats.Failed > 0 {
		fmt.Fprintf(c.out, " (%d files failed)", stats.Failed)
	}
	fmt.Fprintln(c.out)
}

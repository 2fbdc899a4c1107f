package scanner

import "time"

// ScanStats summarizes one scan of one project root.
type ScanStats struct {
	Root     string
	Files    int // files recorded
	Failed   int // files skipped after a read or extraction failure
	Classes  int
	Duration time.Duration
}

// ProgressReporter receives scan progress. Implementations must be safe to
// call from the scan worker goroutine.
type ProgressReporter interface {
	OnDiscoveryComplete(root string, files int)
	OnFileScanned(path string)
	OnComplete(stats *ScanStats)
}

// NoOpProgressReporter ignores all progress events.
type NoOpProgressReporter struct{}

func (NoOpProgressReporter) OnDiscoveryComplete(string, int) {}
func (NoOpProgressReporter) OnFileScanned(string)            {}
func (NoOpProgressReporter) OnComplete(*ScanStats)           {}

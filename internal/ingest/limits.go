package ingest

import "go.uber.org/zap"

// Default traversal limits. Each one is independently configurable through
// Limits; these values bound pathological inputs so a walk always terminates.
const (
	DefaultMaxDirectoryDepth = 20
	DefaultMaxFiles          = 10_000
	DefaultMaxTotalSizeBytes = int64(500 * 1024 * 1024)
	DefaultMaxFileSizeBytes  = int64(10 * 1024 * 1024)
)

// Limits caps a single traversal.
type Limits struct {
	MaxDirectoryDepth int
	MaxFiles          int
	MaxTotalSizeBytes int64
}

// DefaultLimits returns the stock traversal limits.
func DefaultLimits() Limits {
	return Limits{
		MaxDirectoryDepth: DefaultMaxDirectoryDepth,
		MaxFiles:          DefaultMaxFiles,
		MaxTotalSizeBytes: DefaultMaxTotalSizeBytes,
	}
}

// FileSystemStats tracks counters and latched limit flags for one traversal.
// A fresh instance is created per ingestion, so concurrent ingestions never
// share state. Once a *LimitReached flag latches true it is never reset within
// the traversal; it gates further descent and insertion but never removes
// nodes that were already added.
type FileSystemStats struct {
	TotalFiles     int64
	TotalSizeBytes int64

	DepthLimitReached bool
	FileLimitReached  bool
	SizeLimitReached  bool
}

// limitExceeded reports whether traversal should stop at the given depth.
// Depth is checked per directory recursion; the file and size flags are
// latched per file by the walker's acceptance policy.
func (ingester *Ingester) limitExceeded(stats *FileSystemStats, depth int, logger *zap.SugaredLogger) bool {
	if depth > ingester.Limits.MaxDirectoryDepth {
		if !stats.DepthLimitReached {
			logger.Warnf("maximum directory depth (%d) reached", ingester.Limits.MaxDirectoryDepth)
			stats.DepthLimitReached = true
		}
		return true
	}
	return stats.FileLimitReached || stats.SizeLimitReached
}

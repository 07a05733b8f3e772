package pipeline

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"splicer/internal/logging"
	"splicer/internal/splice"
)

// MatchFeed is a splice.Detector fed by Report. Reports never block: when
// the buffer is full the match is dropped and counted.
type MatchFeed struct {
	ch     chan splice.Match
	now    func() time.Time
	logger *slog.Logger

	mu       sync.Mutex
	closed   bool
	reported uint64
	dropped  uint64
}

// NewMatchFeed returns a feed buffering up to size matches.
func NewMatchFeed(size int, logger *slog.Logger) *MatchFeed {
	if size <= 0 {
		size = 1
	}
	return &MatchFeed{
		ch:     make(chan splice.Match, size),
		now:    time.Now,
		logger: logging.NewComponentLogger(logger, "match-feed"),
	}
}

// Matches implements splice.Detector.
func (f *MatchFeed) Matches() <-chan splice.Match { return f.ch }

// Report queues a match for reference. It reports false when the match was
// dropped.
func (f *MatchFeed) Report(reference string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	m := splice.Match{Reference: strings.TrimSpace(reference), At: f.now()}
	select {
	case f.ch <- m:
		f.reported++
		return true
	default:
		f.dropped++
		logging.WarnWithContext(f.logger, "detector match dropped", "match_dropped",
			logging.String("reference", m.Reference),
			logging.String(logging.FieldErrorHint, "the content-match trigger is not draining matches"),
			logging.String(logging.FieldImpact, "ad opportunity skipped"),
		)
		return false
	}
}

// Counts returns accepted and dropped report totals.
func (f *MatchFeed) Counts() (reported, dropped uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reported, f.dropped
}

// Close ends the feed; the content-match trigger sees a closed channel.
func (f *MatchFeed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	close(f.ch)
}

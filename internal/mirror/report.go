package mirror

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
)

// Report summarizes a run. It is returned even when the run fails and then
// covers the files handled before the failure.
type Report struct {
	Decisions  map[Decision]int
	Bytes      int64
	Reconnects int
	// Missing lists the primary files skipped in continue mode.
	Missing []string
	Elapsed time.Duration
}

func newReport() *Report {
	return &Report{Decisions: make(map[Decision]int)}
}

func (r *Report) record(d Decision, bytes int64) {
	r.Decisions[d]++
	r.Bytes += bytes
}

// Files is the number of files the run made a decision for.
func (r *Report) Files() int {
	total := 0
	for _, n := range r.Decisions {
		total += n
	}
	return total
}

// Copied is the number of files transferred, compressed or not.
func (r *Report) Copied() int {
	return r.Decisions[DecisionCopyPlain] + r.Decisions[DecisionCopyGzip]
}

func (r *Report) String() string {
	return fmt.Sprintf("%d files: %d up to date, %d copied (%d unzipped), %d missing; %s in %s",
		r.Files(),
		r.Decisions[DecisionSkip],
		r.Copied(),
		r.Decisions[DecisionCopyGzip],
		len(r.Missing),
		humanize.Bytes(uint64(r.Bytes)),
		r.Elapsed.Round(time.Millisecond),
	)
}

func (r *Report) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("files", r.Files()),
		slog.Int("skipped", r.Decisions[DecisionSkip]),
		slog.Int("copied", r.Copied()),
		slog.Int("unzipped", r.Decisions[DecisionCopyGzip]),
		slog.Int("missing", len(r.Missing)),
		slog.Int("reconnects", r.Reconnects),
		slog.String("transferred", humanize.Bytes(uint64(r.Bytes))),
		slog.Duration("elapsed", r.Elapsed.Round(time.Millisecond)),
	)
}

package mirror

import "errors"

// ErrMissingSource is returned when a primary datasource exists neither
// compressed nor plain on the source and missing files are not tolerated.
var ErrMissingSource = errors.New("file not found")

// Decision is what the engine did with one file.
type Decision int

const (
	DecisionSkip Decision = iota
	DecisionCopyPlain
	DecisionCopyGzip
	// DecisionMissingTolerated is a missing info companion, or a missing
	// primary file in continue mode.
	DecisionMissingTolerated
	DecisionMissingFatal
)

var decisionNames = map[Decision]string{
	DecisionSkip:             "skip",
	DecisionCopyPlain:        "copy",
	DecisionCopyGzip:         "copy-gzip",
	DecisionMissingTolerated: "missing",
	DecisionMissingFatal:     "missing-fatal",
}

func (d Decision) String() string {
	if name, ok := decisionNames[d]; ok {
		return name
	}
	return "unknown"
}

// Progress statuses logged per file.
const (
	StatusOK         = "OK"
	StatusCopied     = "Copied"
	StatusDownloaded = "Downloaded"
)

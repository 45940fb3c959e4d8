package buildcmder

import (
	"regexp"
	"strconv"
	"sync"
)

// percentRe matches a percent-looking token in build output, e.g. "42%"
// or "99.5 %".
var percentRe = regexp.MustCompile(`(\d{1,3}(?:\.\d+)?)\s*%`)

// stepRe matches step counters like "[3/10]" or "(3/10)".
var stepRe = regexp.MustCompile(`[([](\d+)\s*/\s*(\d+)[)\]]`)

// extractPercent pulls a completion percentage from a build output line.
// Percent tokens win over step counters when a line carries both.
func extractPercent(line string) (float64, bool) {
	if m := percentRe.FindStringSubmatch(line); m != nil {
		pct, err := strconv.ParseFloat(m[1], 64)
		if err == nil && pct >= 0 && pct <= 100 {
			return pct, true
		}
	}

	if m := stepRe.FindStringSubmatch(line); m != nil {
		cur, err1 := strconv.ParseFloat(m[1], 64)
		total, err2 := strconv.ParseFloat(m[2], 64)
		if err1 == nil && err2 == nil && total > 0 && cur <= total {
			return cur / total * 100, true
		}
	}

	return 0, false
}

// progressState tracks the last reported percentage so duplicate progress
// lines don't become duplicate events. Safe for use from the stdout and
// stderr relays concurrently.
type progressState struct {
	mu   sync.Mutex
	last float64
	seen bool
}

// update records pct and reports whether it differs from the previous one.
func (s *progressState) update(pct float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seen && pct == s.last {
		return false
	}
	s.seen, s.last = true, pct
	return true
}

// buildEvent is the JSON payload of the SSE messages emitted to the
// notify target. Start, progress, and done events share the shape;
// omitempty keeps each kind minimal on the wire.
type buildEvent struct {
	Build     int      `json:"build"`
	Command   string   `json:"command,omitempty"`
	Percent   *float64 `json:"percent,omitempty"`
	Line      string   `json:"line,omitempty"`
	Status    string   `json:"status,omitempty"`
	ExitCode  int      `json:"exit_code,omitempty"`
	ElapsedMS int64    `json:"elapsed_ms,omitempty"`
}

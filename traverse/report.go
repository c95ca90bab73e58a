package traverse

import (
	"log/slog"
	"time"

	"github.com/use-agent/dexharvest/models"
)

// Failure is one entry that produced no sheet.
type Failure struct {
	Entry models.Entry
	Err   error
}

// Report summarizes a run.
type Report struct {
	// Total is the number of entries in the work list.
	Total     int
	Succeeded []string
	Failures  []Failure
	// Fallbacks lists entries reached through the detail URL after the
	// click path found no link.
	Fallbacks []string
	// DegradedIndex is set when the index table was not ready in time.
	DegradedIndex bool
	// IndexWriteErr is the sink error for the index sheet, if any.
	IndexWriteErr error
	Elapsed       time.Duration
}

// FailureCodes counts failures by error code.
func (r *Report) FailureCodes() map[string]int {
	counts := make(map[string]int)
	for _, f := range r.Failures {
		code := models.CodeOf(f.Err)
		if code == "" {
			code = "UNKNOWN"
		}
		counts[code]++
	}
	return counts
}

// LogValue implements slog.LogValuer.
func (r *Report) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("total", r.Total),
		slog.Int("succeeded", len(r.Succeeded)),
		slog.Int("failed", len(r.Failures)),
		slog.Int("fallbacks", len(r.Fallbacks)),
		slog.Bool("degradedIndex", r.DegradedIndex),
		slog.Duration("elapsed", r.Elapsed),
	)
}

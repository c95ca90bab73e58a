package traverse

import (
	"log/slog"

	"github.com/use-agent/dexharvest/models"
)

// Observer receives the loop's per-entry checkpoints.
type Observer interface {
	EntryStarted(e models.Entry, position, total int)
	EntryCompleted(e models.Entry, rows int)
	EntryFailed(e models.Entry, err error)
}

// LogObserver reports checkpoints through slog.
type LogObserver struct{}

func (LogObserver) EntryStarted(e models.Entry, position, total int) {
	slog.Info("harvesting entry", "position", position, "total", total, "entry", e.Name, "row", e.Ordinal)
}

func (LogObserver) EntryCompleted(e models.Entry, rows int) {
	slog.Info("entry harvested", "entry", e.Name, "rows", rows)
}

func (LogObserver) EntryFailed(e models.Entry, err error) {
	slog.Error("entry failed", "entry", e.Name, "row", e.Ordinal, "code", models.CodeOf(err), "error", err)
}

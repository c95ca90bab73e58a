package sink

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"

	"github.com/use-agent/dexharvest/models"
)

// CSV writes each destination to <Dir>/<destination>.csv. Cells use the
// models cell codec, so sequences survive a round trip through ReadCSV.
type CSV struct {
	Dir string
}

// Path returns the file a destination is written to.
func (c *CSV) Path(destination string) (string, error) {
	return resolve(c.Dir, destination, ".csv")
}

func (c *CSV) Write(destination string, sheet *models.Sheet) error {
	path, err := c.Path(destination)
	if err != nil {
		return writeFailed(destination, err)
	}
	err = replaceFile(path, func(f *os.File) error {
		w := csv.NewWriter(f)
		for _, rec := range sheet.Rows() {
			fields := make([]string, len(rec))
			for i, cell := range rec {
				fields[i] = models.EncodeCell(cell)
			}
			if err := w.Write(fields); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	})
	if err != nil {
		return writeFailed(destination, err)
	}
	slog.Debug("sheet written", "path", path, "rows", len(sheet.Records))
	return nil
}

// ReadCSV parses a file written by CSV back into a sheet.
func ReadCSV(path string) (*models.Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("read %s: no header row", path)
	}

	sheet := &models.Sheet{Header: make([]string, len(rows[0]))}
	for i, h := range rows[0] {
		sheet.Header[i] = models.DecodeCell(h).String()
	}
	for _, row := range rows[1:] {
		rec := make(models.Record, len(row))
		for i, field := range row {
			rec[i] = models.DecodeCell(field)
		}
		sheet.Records = append(sheet.Records, rec)
	}
	return sheet, nil
}

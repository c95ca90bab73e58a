package sink

import (
	"log/slog"
	"os"

	"github.com/use-agent/dexharvest/models"
	"github.com/xuri/excelize/v2"
)

const xlsxSheet = "Sheet1"

// XLSX writes each destination to its own workbook <Dir>/<destination>.xlsx,
// header in row 1. Cells hold the same encoding as the CSV sink.
type XLSX struct {
	Dir string
}

// Path returns the file a destination is written to.
func (x *XLSX) Path(destination string) (string, error) {
	return resolve(x.Dir, destination, ".xlsx")
}

func (x *XLSX) Write(destination string, sheet *models.Sheet) error {
	path, err := x.Path(destination)
	if err != nil {
		return writeFailed(destination, err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sw, err := f.NewStreamWriter(xlsxSheet)
	if err != nil {
		return writeFailed(destination, err)
	}
	for i, rec := range sheet.Rows() {
		row := make([]interface{}, len(rec))
		for j, cell := range rec {
			row[j] = models.EncodeCell(cell)
		}
		cellAddr, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return writeFailed(destination, err)
		}
		if err := sw.SetRow(cellAddr, row); err != nil {
			return writeFailed(destination, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return writeFailed(destination, err)
	}

	err = replaceFile(path, func(tmp *os.File) error {
		_, err := f.WriteTo(tmp)
		return err
	})
	if err != nil {
		return writeFailed(destination, err)
	}
	slog.Debug("workbook written", "path", path, "rows", len(sheet.Records))
	return nil
}

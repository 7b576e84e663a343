// Package export renders a user's history as an Excel workbook.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"studynotion/internal/model"
)

const (
	SheetName   = "History"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var header = []any{"ID", "Type", "Created At", "Prompt", "Response"}

// WriteHistory writes entries, one row each, below a bold header row.
func WriteHistory(w io.Writer, entries []model.HistoryEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(SheetName)
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", "E1", bold); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, "A", "A", 38); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, "C", "C", 22); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, "D", "E", 60); err != nil {
		return err
	}

	for i, e := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		prompt, response := columns(e)
		row := []any{
			e.ID,
			string(e.Type),
			time.UnixMilli(e.CreatedAt).UTC().Format(time.RFC3339),
			prompt,
			response,
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
	}

	_, err = f.WriteTo(w)
	return err
}

// columns picks what was asked and what came back for each entry type.
func columns(e model.HistoryEntry) (string, string) {
	switch e.Type {
	case model.EntryChat:
		return e.Question, e.Answer
	case model.EntryQuiz:
		result, err := json.Marshal(e.Result)
		if err != nil {
			return e.Topic, ""
		}
		return e.Topic, string(result)
	case model.EntrySummary:
		return e.Text, e.Summary
	default:
		return "", ""
	}
}

// Package report renders reservation exports as spreadsheets.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/iliyamo/meeting-room-reservation/internal/model"
)

// ReservationSheet is the name of the single worksheet in an export.
const ReservationSheet = "Reservations"

// ReservationHeader lists the export columns in order.
var ReservationHeader = []string{
	"ID",
	"Title",
	"Description",
	"Room ID",
	"User ID",
	"Start (UTC)",
	"End (UTC)",
	"Created (UTC)",
}

var columnWidths = []float64{8, 30, 40, 10, 10, 22, 22, 22}

// ReservationsXLSX renders list as an .xlsx workbook, one row per
// reservation in the given order.
func ReservationsXLSX(list []model.Reservation) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), ReservationSheet); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	for i, h := range ReservationHeader {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(ReservationSheet, cell, h); err != nil {
			return nil, fmt.Errorf("header %s: %w", cell, err)
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(ReservationSheet, col, col, columnWidths[i]); err != nil {
			return nil, err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(ReservationHeader), 1)
	if err := f.SetCellStyle(ReservationSheet, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	for i, r := range list {
		desc := ""
		if r.Description != nil {
			desc = *r.Description
		}
		row := []any{
			r.ID,
			r.Title,
			desc,
			r.RoomID,
			r.UserID,
			stamp(r.StartTime),
			stamp(r.EndTime),
			stamp(r.CreatedAt),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(ReservationSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// Package export renders reports into xlsx workbooks.
package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"reportit/models"
)

const SheetName = "Reports"

var Header = []string{
	"Sr. No.", "Date", "Time", "Engineer Name", "Project ID", "Project Name", "Customer",
	"Work Done", "Status", "Next action (internal)", "Next action (customer)", "Location",
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// Row formats one report as a sheet row. The serial number is left for the caller.
func Row(r models.Report, loc *time.Location) []string {
	created := r.CreatedAt.In(loc)
	work := strings.Join(r.WorkDone, ", ")
	if work == "" {
		work = "N/A"
	}
	address := "Unknown"
	if r.Location != nil && r.Location.Address != "" {
		address = r.Location.Address
	}
	status := string(r.Status)
	if status == "" {
		status = "Pending"
	}
	return []string{
		"",
		created.Format("02/01/2006"),
		created.Format("03:04 PM"),
		orDash(r.CreatedBy),
		orDash(r.ProjectNumber),
		orDash(r.ProjectName),
		orDash(r.Customer),
		work,
		status,
		orDash(r.NextActionInternal),
		orDash(r.NextActionCustomer),
		address,
	}
}

func setRow(f *excelize.File, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	vals := make([]interface{}, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return f.SetSheetRow(SheetName, cell, &vals)
}

func newWorkbook() (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		f.Close()
		return nil, err
	}
	if err := setRow(f, 1, Header); err != nil {
		f.Close()
		return nil, err
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		_ = f.SetRowStyle(SheetName, 1, 1, style)
	}
	_ = f.SetColWidth(SheetName, "A", "L", 20)
	return f, nil
}

// WriteReports renders reports, in the given order, as a complete workbook.
func WriteReports(reports []models.Report, loc *time.Location) ([]byte, error) {
	f, err := newWorkbook()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	for i, r := range reports {
		values := Row(r, loc)
		values[0] = fmt.Sprint(i + 1)
		if err := setRow(f, i+2, values); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadRows returns every row of the report sheet, header included.
func ReadRows(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.GetRows(SheetName)
}

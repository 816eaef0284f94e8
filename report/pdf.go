// Package report renders attendance reports as PDF documents for HR: the
// weekly lateness digest and the daily absence sheet.
package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/warp/leave-governance/attendance"
	"github.com/warp/leave-governance/generic"
)

const font = "Helvetica"

type column struct {
	title string
	width float64
	align string
}

func newDocument(title, subtitle string) *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetTitle(title, true)
	pdf.AddPage()

	pdf.SetFont(font, "B", 14)
	pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
	if subtitle != "" {
		pdf.SetFont(font, "", 10)
		pdf.CellFormat(0, 6, subtitle, "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)
	return pdf
}

func header(pdf *gofpdf.Fpdf, cols []column) {
	pdf.SetFont(font, "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for _, c := range cols {
		pdf.CellFormat(c.width, 7, c.title, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont(font, "", 9)
}

func row(pdf *gofpdf.Fpdf, cols []column, values ...string) {
	for i, c := range cols {
		pdf.CellFormat(c.width, 6, values[i], "1", 0, c.align, false, 0, "")
	}
	pdf.Ln(-1)
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// =============================================================================
// LATENESS DIGEST
// =============================================================================

var latenessColumns = []column{
	{"Employee", 55, "L"},
	{"Department", 35, "L"},
	{"Today", 25, "C"},
	{"Late days", 20, "R"},
	{"Absent days", 20, "R"},
	{"Compensation", 20, "R"},
	{"Sanction", 15, "C"},
}

// LatenessDigest renders the rolling lateness report ending on asOf.
// Sanctioned rows are highlighted.
func LatenessDigest(asOf generic.TimePoint, windowDays int, rows []attendance.LatenessSummary) ([]byte, error) {
	from := asOf.AddDays(-(windowDays - 1))
	pdf := newDocument("Cumulative lateness",
		fmt.Sprintf("%s to %s (%d days)", from, asOf, windowDays))

	header(pdf, latenessColumns)
	sanctions := 0
	for _, s := range rows {
		if s.Sanction {
			sanctions++
			pdf.SetTextColor(180, 0, 0)
		}
		row(pdf, latenessColumns,
			s.Employee.Name,
			s.Employee.DepartmentID,
			string(s.Today.Status),
			fmt.Sprint(s.LateDays),
			fmt.Sprint(s.AbsentDays),
			s.Compensation,
			yesNo(s.Sanction),
		)
		pdf.SetTextColor(0, 0, 0)
	}

	pdf.Ln(4)
	pdf.SetFont(font, "I", 9)
	pdf.CellFormat(0, 6, fmt.Sprintf("%d employees, %d over the sanction threshold", len(rows), sanctions), "", 1, "L", false, 0, "")
	return output(pdf)
}

// =============================================================================
// DAILY REPORT
// =============================================================================

var absenceColumns = []column{
	{"Employee", 90, "L"},
	{"Department", 60, "L"},
	{"ID", 40, "C"},
}

var lateColumns = []column{
	{"Employee", 90, "L"},
	{"Check-in", 50, "C"},
	{"Late by", 50, "R"},
}

// Daily renders a daily report. Check-in times are shown in loc.
func Daily(r *attendance.DailyReport, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.UTC
	}
	pdf := newDocument("Daily attendance", r.Date.String())

	pdf.SetFont(font, "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Present: %d   Late: %d   Absent: %d   On leave: %d",
		r.Present, len(r.Late), len(r.Absent), len(r.OnLeave)), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	section(pdf, "Late")
	header(pdf, lateColumns)
	for _, l := range r.Late {
		row(pdf, lateColumns, l.Employee.Name, l.CheckIn.In(loc).Format("15:04"),
			attendance.FormatCompensation(int(l.Lateness/time.Minute)))
	}

	for _, group := range []struct {
		title string
		refs  []attendance.EmployeeRef
	}{
		{"Absent", r.Absent},
		{"On leave", r.OnLeave},
	} {
		pdf.Ln(3)
		section(pdf, group.title)
		header(pdf, absenceColumns)
		for _, ref := range group.refs {
			row(pdf, absenceColumns, ref.Name, ref.DepartmentID, string(ref.ID))
		}
	}
	return output(pdf)
}

func section(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont(font, "B", 11)
	pdf.CellFormat(0, 7, title, "", 1, "L", false, 0, "")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// WriteFile stores data under dir, creating it if needed, and returns the path.
func WriteFile(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

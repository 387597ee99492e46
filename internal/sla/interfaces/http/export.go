package http

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	sla "sla-cloud/internal/sla/domain"
)

// BuildReportPDF renders a one-page PDF for a compliance report.
func BuildReportPDF(report *sla.Report, incidents []sla.Incident) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "SLA Compliance Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	tenant := report.TenantName
	if tenant == "" {
		tenant = report.TenantID
	}
	pdf.Cell(0, 6, fmt.Sprintf("Tenant: %s", tenant))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Period: %s - %s", report.Period.Start.Format(time.RFC3339), report.Period.End.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Measurement: %s", report.MeasurementID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", report.GeneratedAt.Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.Cell(0, 6, fmt.Sprintf("Uptime (%%): %s", report.Metrics.UptimePct.StringFixed(3)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Target (%%): %s", report.Metrics.TargetPct.StringFixed(3)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Downtime (min): %s", report.Metrics.DowntimeMinutes.StringFixed(2)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("SLA Met: %t", report.Compliance.Met))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Credit (%%): %s", report.Compliance.CreditPct.StringFixed(2)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(45, 6, "Started", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Component", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Severity", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Minutes", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, incident := range incidents {
		minutes := "-"
		if incident.DurationMinutes != nil {
			minutes = incident.DurationMinutes.StringFixed(2)
		}
		pdf.CellFormat(45, 6, incident.StartedAt.Format("2006-01-02 15:04"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, string(incident.Component), "1", 0, "C", false, 0, "")
		pdf.CellFormat(20, 6, string(incident.Severity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, string(incident.Status), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, minutes, "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildReportXLSX renders a summary sheet and an incidents sheet.
func BuildReportXLSX(report *sla.Report, incidents []sla.Incident) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "summary"
	incidentSheet := "incidents"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(incidentSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "SLA Compliance Report")
	_ = f.SetCellValue(summarySheet, "A3", "Tenant ID")
	_ = f.SetCellValue(summarySheet, "B3", report.TenantID)
	_ = f.SetCellValue(summarySheet, "A4", "Tenant")
	_ = f.SetCellValue(summarySheet, "B4", report.TenantName)
	_ = f.SetCellValue(summarySheet, "A5", "Period Start")
	_ = f.SetCellValue(summarySheet, "B5", report.Period.Start.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A6", "Period End")
	_ = f.SetCellValue(summarySheet, "B6", report.Period.End.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A7", "Uptime (%)")
	_ = f.SetCellValue(summarySheet, "B7", report.Metrics.UptimePct.InexactFloat64())
	_ = f.SetCellValue(summarySheet, "A8", "Target (%)")
	_ = f.SetCellValue(summarySheet, "B8", report.Metrics.TargetPct.InexactFloat64())
	_ = f.SetCellValue(summarySheet, "A9", "Downtime (min)")
	_ = f.SetCellValue(summarySheet, "B9", report.Metrics.DowntimeMinutes.InexactFloat64())
	_ = f.SetCellValue(summarySheet, "A10", "SLA Met")
	_ = f.SetCellValue(summarySheet, "B10", report.Compliance.Met)
	_ = f.SetCellValue(summarySheet, "A11", "Credit (%)")
	_ = f.SetCellValue(summarySheet, "B11", report.Compliance.CreditPct.InexactFloat64())
	_ = f.SetCellValue(summarySheet, "A12", "Measurement")
	_ = f.SetCellValue(summarySheet, "B12", report.MeasurementID)

	_ = f.SetCellValue(incidentSheet, "A1", "ID")
	_ = f.SetCellValue(incidentSheet, "B1", "Started")
	_ = f.SetCellValue(incidentSheet, "C1", "Resolved")
	_ = f.SetCellValue(incidentSheet, "D1", "Component")
	_ = f.SetCellValue(incidentSheet, "E1", "Severity")
	_ = f.SetCellValue(incidentSheet, "F1", "Status")
	_ = f.SetCellValue(incidentSheet, "G1", "Minutes")
	for i, incident := range incidents {
		row := i + 2
		_ = f.SetCellValue(incidentSheet, fmt.Sprintf("A%d", row), incident.ID)
		_ = f.SetCellValue(incidentSheet, fmt.Sprintf("B%d", row), incident.StartedAt.Format(time.RFC3339))
		if incident.ResolvedAt != nil {
			_ = f.SetCellValue(incidentSheet, fmt.Sprintf("C%d", row), incident.ResolvedAt.Format(time.RFC3339))
		}
		_ = f.SetCellValue(incidentSheet, fmt.Sprintf("D%d", row), string(incident.Component))
		_ = f.SetCellValue(incidentSheet, fmt.Sprintf("E%d", row), string(incident.Severity))
		_ = f.SetCellValue(incidentSheet, fmt.Sprintf("F%d", row), string(incident.Status))
		if incident.DurationMinutes != nil {
			_ = f.SetCellValue(incidentSheet, fmt.Sprintf("G%d", row), incident.DurationMinutes.InexactFloat64())
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

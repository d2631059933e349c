package accounting

import (
	"context"
	"fmt"

	"stockguard/internal/models"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	sheetSummary = "Summary"
	sheetRates   = "VAT rates"
	sheetMonths  = "Months"
)

// Export builds the quarter workbook once its checklist is complete and records the export.
func (s *Service) Export(ctx context.Context, establishmentID, userID string, year, quarter int) ([]byte, string, error) {
	syn, err := s.Quarter(ctx, establishmentID, year, quarter)
	if err != nil {
		return nil, "", err
	}
	if !syn.ChecklistComplete {
		return nil, "", ErrChecklistIncomplete
	}

	data, err := workbook(syn)
	if err != nil {
		return nil, "", fmt.Errorf("build workbook: %w", err)
	}

	rec := models.QuarterExport{
		EstablishmentID: establishmentID,
		Year:            year,
		Quarter:         quarter,
		ExportedBy:      userID,
		ExportedAt:      s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, "", fmt.Errorf("record export: %w", err)
	}
	s.log.Info("quarter exported",
		zap.String("establishment_id", establishmentID),
		zap.Int("year", year),
		zap.Int("quarter", quarter),
	)
	return data, fmt.Sprintf("urssaf-%d-T%d.xlsx", year, quarter), nil
}

func workbook(syn *Synthesis) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return nil, err
	}
	summary := [][]any{
		{"Period", fmt.Sprintf("%d T%d", syn.Year, syn.Quarter)},
		{"From", syn.From},
		{"To", syn.To},
		{"Sales", syn.Sales},
		{"Revenue TTC", syn.RevenueTTC.InexactFloat64()},
		{"Revenue HT", syn.RevenueHT.InexactFloat64()},
		{"VAT", syn.VAT.InexactFloat64()},
		{"URSSAF rate", syn.URSSAFRate.InexactFloat64()},
		{"URSSAF contribution", syn.URSSAFContribution.InexactFloat64()},
		{"Waste entries", syn.WasteEntries},
	}
	if err := writeRows(f, sheetSummary, summary); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(sheetRates); err != nil {
		return nil, err
	}
	rates := [][]any{{"VAT rate", "Sales", "Revenue TTC", "Revenue HT", "VAT"}}
	for _, l := range syn.ByRate {
		rates = append(rates, []any{l.VATRate.InexactFloat64(), l.Sales, l.RevenueTTC.InexactFloat64(), l.RevenueHT.InexactFloat64(), l.VAT.InexactFloat64()})
	}
	if err := writeRows(f, sheetRates, rates); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(sheetMonths); err != nil {
		return nil, err
	}
	months := [][]any{{"Month", "Sales", "Revenue TTC", "Revenue HT"}}
	for _, m := range syn.ByMonth {
		months = append(months, []any{m.Month.String(), m.Sales, m.RevenueTTC.InexactFloat64(), m.RevenueHT.InexactFloat64()})
	}
	if err := writeRows(f, sheetMonths, months); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

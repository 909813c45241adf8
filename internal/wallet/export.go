package wallet

import (
	"context"
	"fmt"
	"io"

	"github.com/ayerhssb/mcpSystem/internal/domain"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

const (
	exportSheet    = "Transactions"
	exportPageSize = 500
	exportMaxRows  = 50000
)

var exportHeaders = []string{"Reference", "Date", "Type", "Status", "Amount", "From", "To", "Description", "Related Order"}

// ExportSummary describes a written workbook. Truncated is set when more rows
// matched than the export cap allows.
type ExportSummary struct {
	Rows      int
	Matched   int
	Truncated bool
}

// ExportTransactions writes the MCP's history matching q as an XLSX workbook.
// Paging fields of q are ignored; matching rows are exported newest first up to
// the export cap.
func (s *Service) ExportTransactions(ctx context.Context, mcpID uuid.UUID, q HistoryQuery, w io.Writer) (*ExportSummary, error) {
	if q.Kind != "" && !q.Kind.Valid() {
		return nil, domain.NewValidationError("type", fmt.Sprintf("unknown transaction type %q", q.Kind))
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, err
	}
	for i, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(exportSheet, cell, header)
	}

	summary := &ExportSummary{}
	filter := domain.TransactionFilter{
		Party:  domain.MCPOwner(mcpID),
		Kind:   q.Kind,
		Status: q.Status,
		From:   q.From,
		To:     q.To,
	}
	for summary.Rows < s.exportCap {
		filter.Offset = summary.Rows
		filter.Limit = min(exportPageSize, s.exportCap-summary.Rows)
		txs, matched, err := s.repo.ListTransactions(ctx, filter)
		if err != nil {
			return nil, err
		}
		summary.Matched = matched
		for _, tx := range txs {
			writeTransactionRow(f, summary.Rows+2, tx)
			summary.Rows++
		}
		if len(txs) < filter.Limit {
			break
		}
	}
	summary.Truncated = summary.Matched > summary.Rows

	if err := f.SetColWidth(exportSheet, "A", "A", 20); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(exportSheet, "H", "H", 48); err != nil {
		return nil, err
	}
	if err := f.Write(w); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	if summary.Truncated {
		s.log.Warnw("transaction export truncated", "mcp_id", mcpID, "rows", summary.Rows, "matched", summary.Matched)
	}
	return summary, nil
}

func writeTransactionRow(f *excelize.File, row int, tx domain.Transaction) {
	cell := func(col string) string { return fmt.Sprintf("%s%d", col, row) }
	f.SetCellValue(exportSheet, cell("A"), tx.Reference)
	f.SetCellValue(exportSheet, cell("B"), tx.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
	f.SetCellValue(exportSheet, cell("C"), string(tx.Kind))
	f.SetCellValue(exportSheet, cell("D"), string(tx.Status))
	f.SetCellValue(exportSheet, cell("E"), tx.Amount.Decimal().InexactFloat64())
	f.SetCellValue(exportSheet, cell("F"), partyLabel(tx.From))
	f.SetCellValue(exportSheet, cell("G"), partyLabel(tx.To))
	f.SetCellValue(exportSheet, cell("H"), tx.Description)
	if tx.RelatedOrderID != nil {
		f.SetCellValue(exportSheet, cell("I"), tx.RelatedOrderID.String())
	}
}

func partyLabel(p *domain.Party) string {
	if p == nil {
		return ""
	}
	if p.Name != "" {
		return p.Name
	}
	return string(p.Kind)
}

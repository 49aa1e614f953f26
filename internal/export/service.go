package export

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/extract-tracker/internal/common"
	"github.com/joseph-ayodele/extract-tracker/internal/entity"
)

const (
	summarySheet   = "Summary"
	keyFieldsSheet = "Key Fields"
	maxSheetName   = 31
)

// Service renders the results of a completed job as an XLSX workbook.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// WorkbookXLSX returns a workbook (as bytes) with a summary sheet, a key fields sheet,
// one sheet per extracted table and one per chart. Cleaned data is preferred over raw extraction.
func (s *Service) WorkbookXLSX(ctx context.Context, snap entity.JobSnapshot) ([]byte, error) {
	start := time.Now()
	if snap.Results == nil {
		return nil, common.NewAppError("EXPORT_ERROR", fmt.Sprintf("job %s has no results", snap.JobID), common.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res := snap.Results

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	names := map[string]bool{strings.ToLower(summarySheet): true}

	summary := [][]any{
		{"Job ID", snap.JobID.String()},
		{"File", snap.FileName},
		{"Status", string(snap.Status)},
		{"Message", snap.Message},
		{"Created", snap.CreatedAt},
		{"Updated", snap.UpdatedAt},
		{"Summary", res.Analysis.Summary},
		{"Keywords", strings.Join(res.Analysis.Keywords, ", ")},
		{"Sentiment", res.Analysis.Sentiment},
	}
	if err := writeRows(f, summarySheet, summary); err != nil {
		return nil, err
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 14)
	_ = f.SetColWidth(summarySheet, "B", "B", 80)

	fields := keyFields(res)
	if len(fields) > 0 {
		if _, err := f.NewSheet(keyFieldsSheet); err != nil {
			return nil, err
		}
		names[strings.ToLower(keyFieldsSheet)] = true
		rows := [][]any{{"Field", "Value"}}
		for _, k := range slices.Sorted(maps.Keys(fields)) {
			rows = append(rows, []any{k, fields[k]})
		}
		if err := writeRows(f, keyFieldsSheet, rows); err != nil {
			return nil, err
		}
		_ = f.SetColWidth(keyFieldsSheet, "A", "B", 28)
	}

	tables := res.CleanedData.Tables
	if len(tables) == 0 {
		tables = res.ExtractedData.Tables
	}
	for i, t := range tables {
		sheet := uniqueSheetName(names, t.Title, fmt.Sprintf("Table %d", i+1))
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
		rows := make([][]any, 0, len(t.Rows)+1)
		if len(t.Header) > 0 {
			rows = append(rows, stringsToCells(t.Header))
		}
		rows = append(rows, t.Rows...)
		if err := writeRows(f, sheet, rows); err != nil {
			return nil, err
		}
	}

	for i, c := range res.Charts {
		sheet := uniqueSheetName(names, c.Title, fmt.Sprintf("Chart %d", i+1))
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
		if err := writeRows(f, sheet, chartRows(c)); err != nil {
			return nil, err
		}
	}

	f.SetActiveSheet(0)
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"job_id", snap.JobID,
		"tables", len(tables),
		"charts", len(res.Charts),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// WriteXLSX writes the workbook to dir/<job id>.xlsx and returns the path.
func (s *Service) WriteXLSX(ctx context.Context, snap entity.JobSnapshot, dir string) (string, error) {
	data, err := s.WorkbookXLSX(ctx, snap)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, sanitizeFileName(snap.JobID.String())+".xlsx")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.logger.Error("export.xlsx.write_failed", "path", path, "error", err)
		return "", fmt.Errorf("write export: %w", err)
	}
	s.logger.Info("export.xlsx.saved", "path", path, "bytes", len(data))
	return path, nil
}

func keyFields(res *entity.JobResults) map[string]any {
	if len(res.CleanedData.KeyFields) > 0 {
		return res.CleanedData.KeyFields
	}
	return res.ExtractedData.KeyFields
}

// chartRows turns row-oriented chart data into a header of the sorted keys plus one row per point.
func chartRows(c entity.ChartData) [][]any {
	keys := map[string]bool{}
	for _, point := range c.Data {
		for k := range point {
			keys[k] = true
		}
	}
	header := slices.Sorted(maps.Keys(keys))
	rows := [][]any{stringsToCells(header)}
	for _, point := range c.Data {
		row := make([]any, len(header))
		for i, k := range header {
			row[i] = point[k]
		}
		rows = append(rows, row)
	}
	return rows
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func stringsToCells(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

var sheetNameReplacer = strings.NewReplacer(
	"[", "(", "]", ")", ":", "-", "*", "-", "?", "", "/", "-", "\\", "-",
)

// uniqueSheetName keys taken by lower-cased name; excelize sheet names are case-insensitive.
func uniqueSheetName(taken map[string]bool, title, fallback string) string {
	base := strings.Trim(sheetNameReplacer.Replace(strings.TrimSpace(title)), "'")
	if base == "" {
		base = fallback
	}
	base = truncateRunes(base, maxSheetName)
	name := base
	for n := 2; taken[strings.ToLower(name)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		name = truncateRunes(base, maxSheetName-len(suffix)) + suffix
	}
	taken[strings.ToLower(name)] = true
	return name
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func sanitizeFileName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, s)
	if s == "" {
		return "job"
	}
	return s
}

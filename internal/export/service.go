package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/domain"
	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/grouping"
	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/repository"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"

	summarySheet  = "Summary"
	maxSheetName  = 31
	emptyGroupTag = "(empty)"
)

// ParseFormat defaults to CSV.
func ParseFormat(raw string) Format {
	if strings.EqualFold(strings.TrimSpace(raw), string(FormatXLSX)) {
		return FormatXLSX
	}
	return FormatCSV
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// Service renders grouped tables as downloadable files.
type Service struct {
	groups *grouping.Service
}

func NewService(groups *grouping.Service) *Service {
	return &Service{groups: groups}
}

// Export groups the table and returns it with its export column layout.
func (s *Service) Export(ctx context.Context, req grouping.Request) (*domain.GroupedTable, []string, error) {
	table, err := s.groups.Group(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	var entity *domain.EntitySpec
	if resolved, ok := s.groups.ResolveTable(req.TableID); ok {
		entity = resolved
	}
	return table, Columns(entity, table), nil
}

// Write renders table in the given format.
func Write(w io.Writer, format Format, table *domain.GroupedTable, columns []string) error {
	if format == FormatXLSX {
		return WriteWorkbook(w, table, columns)
	}
	return WriteCSV(w, table, columns)
}

// Columns orders row columns: declared fields in key order, then any extra row keys.
func Columns(entity *domain.EntitySpec, table *domain.GroupedTable) []string {
	seen := make(map[string]struct{})
	var declared []string
	if entity != nil {
		for key := range entity.Fields {
			declared = append(declared, key)
		}
		sort.Strings(declared)
	}
	var extra []string
	for _, group := range table.Groups {
		for _, row := range group.Rows {
			for key := range row {
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
				if entity == nil || !entity.HasField(key) {
					extra = append(extra, key)
				}
			}
		}
	}
	sort.Strings(extra)

	columns := make([]string, 0, len(declared)+len(extra))
	for _, key := range declared {
		if _, ok := seen[key]; ok {
			columns = append(columns, key)
		}
	}
	return append(columns, extra...)
}

// WriteCSV writes the group summary, or one line per member row when rows were materialized.
func WriteCSV(w io.Writer, table *domain.GroupedTable, columns []string) error {
	csvWriter := csv.NewWriter(w)
	if len(table.Groups) == 0 {
		if err := csvWriter.Write([]string{table.GroupBy.Field, "count"}); err != nil {
			return fmt.Errorf("failed to write csv header: %w", err)
		}
		for _, label := range table.GroupOrder {
			if err := csvWriter.Write([]string{label, fmt.Sprint(table.GroupCounts[label])}); err != nil {
				return fmt.Errorf("failed to write csv row: %w", err)
			}
		}
	} else {
		header := append([]string{"group"}, columns...)
		if err := csvWriter.Write(header); err != nil {
			return fmt.Errorf("failed to write csv header: %w", err)
		}
		for _, group := range table.Groups {
			for _, row := range group.Rows {
				record := make([]string, 0, len(header))
				record = append(record, group.Key)
				for _, column := range columns {
					record = append(record, repository.FormatValue(row[column]))
				}
				if err := csvWriter.Write(record); err != nil {
					return fmt.Errorf("failed to write csv row: %w", err)
				}
			}
		}
	}
	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

// WriteWorkbook writes a Summary sheet in group order and one sheet per materialized group.
func WriteWorkbook(w io.Writer, table *domain.GroupedTable, columns []string) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), summarySheet); err != nil {
		return fmt.Errorf("failed to name summary sheet: %w", err)
	}
	if err := f.SetSheetRow(summarySheet, "A1", &[]any{table.GroupBy.Field, "count"}); err != nil {
		return fmt.Errorf("failed to write summary header: %w", err)
	}
	for i, label := range table.GroupOrder {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &[]any{label, table.GroupCounts[label]}); err != nil {
			return fmt.Errorf("failed to write summary row: %w", err)
		}
	}

	used := map[string]struct{}{strings.ToLower(summarySheet): {}}
	for _, group := range table.Groups {
		name := uniqueSheetName(group.Key, used)
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
		header := make([]any, len(columns))
		for i, column := range columns {
			header[i] = column
		}
		if err := f.SetSheetRow(name, "A1", &header); err != nil {
			return fmt.Errorf("failed to write sheet header: %w", err)
		}
		for r, row := range group.Rows {
			values := make([]any, len(columns))
			for i, column := range columns {
				values[i] = cellValue(row[column])
			}
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(name, cell, &values); err != nil {
				return fmt.Errorf("failed to write sheet row: %w", err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func cellValue(value any) any {
	switch v := value.(type) {
	case nil:
		return ""
	case string, bool, int, int32, int64, float32, float64:
		return v
	default:
		return repository.FormatValue(v)
	}
}

var sheetNameReplacer = strings.NewReplacer(":", " ", "\\", " ", "/", " ", "?", " ", "*", " ", "[", "(", "]", ")")

func uniqueSheetName(label string, used map[string]struct{}) string {
	base := strings.TrimSpace(sheetNameReplacer.Replace(label))
	base = strings.Trim(base, "'")
	if base == "" {
		base = emptyGroupTag
	}
	if runes := []rune(base); len(runes) > maxSheetName {
		base = string(runes[:maxSheetName])
	}
	name := base
	for n := 2; ; n++ {
		if _, taken := used[strings.ToLower(name)]; !taken && !strings.EqualFold(name, summarySheet) {
			break
		}
		suffix := fmt.Sprintf(" %d", n)
		runes := []rune(base)
		if len(runes)+len(suffix) > maxSheetName {
			runes = runes[:maxSheetName-len(suffix)]
		}
		name = string(runes) + suffix
	}
	used[strings.ToLower(name)] = struct{}{}
	return name
}

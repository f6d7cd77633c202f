// Package sheet locates and extracts the payload worksheet from an iFood
// spreadsheet export and renames its columns to the canonical schema.
//
// This is the only layer that deals with loosely-shaped data: it emits rows
// as raw string cells keyed by canonical column name, and the pipelines
// immediately map those into typed records. Conciliation exports carry a
// human-readable summary on the first worksheet and the payload on the
// second; financial exports are single-sheet.
package sheet

import (
	"bytes"

	ingerrors "ifood-ingestion-service/pkg/errors"
	"ifood-ingestion-service/pkg/logger"

	"github.com/xuri/excelize/v2"
)

// Table is a worksheet after header normalization and column mapping.
// Rows hold raw cell strings keyed by canonical column name; absent cells
// are empty strings. Columns preserves the canonical declaration order used
// for hashing and serialization.
type Table struct {
	Columns []string
	Rows    []map[string]string
}

// LoadOptions configures worksheet extraction for one pipeline.
type LoadOptions struct {
	// FileName is used in error messages only.
	FileName string

	// SheetIndex selects the payload worksheet (0 financial, 1 conciliation).
	SheetIndex int

	// Mapping translates normalized source headers to canonical column
	// names. When nil the normalized header itself is the canonical name.
	Mapping map[string]string

	// Canonical is the full canonical column list; it defines Table.Columns
	// order and which mapped columns are kept. Canonical columns absent
	// from the file are backfilled with empty cells.
	Canonical []string

	// RequiredAll lists canonical columns that must all be present.
	RequiredAll []string

	// RequiredAny lists canonical columns of which at least one must be
	// present. Used where export revisions disagree on which identifying
	// column they carry.
	RequiredAny []string
}

// Load opens the spreadsheet bytes and extracts the payload worksheet as a
// normalized Table. Files that do not look like the expected report type
// fail with a sheet-category error naming what is missing, distinct from a
// generic parse failure, so callers can give an actionable message.
func Load(data []byte, opts LoadOptions) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, ingerrors.SheetFormatError(ingerrors.CodeWorkbookCorrupted, opts.FileName, nil, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if opts.SheetIndex >= len(sheets) {
		return nil, ingerrors.SheetFormatError(ingerrors.CodeMissingSheet, opts.FileName, nil, nil).
			WithContext("sheet_count", len(sheets)).
			WithContext("wanted_index", opts.SheetIndex)
	}

	rows, err := f.GetRows(sheets[opts.SheetIndex])
	if err != nil {
		return nil, ingerrors.SheetFormatError(ingerrors.CodeWorkbookCorrupted, opts.FileName, nil, err)
	}
	if len(rows) == 0 {
		return &Table{Columns: opts.Canonical}, nil
	}

	// First row is the header; map each source column position to its
	// canonical name, dropping columns outside the canonical set.
	keep := make(map[string]bool, len(opts.Canonical))
	for _, col := range opts.Canonical {
		keep[col] = true
	}

	colByIndex := make(map[int]string)
	present := make(map[string]bool)
	for i, header := range rows[0] {
		normalized := NormalizeHeader(header)
		canonical := normalized
		if opts.Mapping != nil {
			mapped, ok := opts.Mapping[normalized]
			if !ok {
				continue
			}
			canonical = mapped
		}
		if !keep[canonical] {
			continue
		}
		colByIndex[i] = canonical
		present[canonical] = true
	}

	if err := checkRequired(opts, present); err != nil {
		return nil, err
	}

	table := &Table{Columns: opts.Canonical}
	for _, row := range rows[1:] {
		record := make(map[string]string, len(opts.Canonical))
		for _, col := range opts.Canonical {
			record[col] = ""
		}
		empty := true
		for i, cell := range row {
			col, ok := colByIndex[i]
			if !ok {
				continue
			}
			record[col] = cell
			if cell != "" {
				empty = false
			}
		}
		if empty {
			continue
		}
		table.Rows = append(table.Rows, record)
	}

	logger.GetGlobalLogger().WithComponent("sheet").
		WithField("file_name", opts.FileName).
		Debugf("loaded %d rows from sheet %d", len(table.Rows), opts.SheetIndex)

	return table, nil
}

func checkRequired(opts LoadOptions, present map[string]bool) error {
	var missing []string
	for _, col := range opts.RequiredAll {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return ingerrors.SheetFormatError(ingerrors.CodeMissingColumns, opts.FileName, missing, nil)
	}

	if len(opts.RequiredAny) > 0 {
		any := false
		for _, col := range opts.RequiredAny {
			if present[col] {
				any = true
				break
			}
		}
		if !any {
			return ingerrors.SheetFormatError(ingerrors.CodeMissingColumns, opts.FileName, opts.RequiredAny, nil).
				WithContext("requirement", "at_least_one_of")
		}
	}
	return nil
}

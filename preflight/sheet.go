package preflight

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hazyhaar/preflight/tabstat"
)

// analyzeSheet scores a spreadsheet export. The workbook is read directly
// from the archive: cell values from the first worksheet part, shared
// strings resolved from the string table. Sampling stops at the tabstat
// row cap.
func (e *Engine) analyzeSheet(_ context.Context, d Descriptor) (Result, error) {
	data, err := d.ReadAll(e.cfg.MaxFileSize)
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", d.Name, err)
	}
	rows, err := readWorkbookRows(data)
	if err != nil {
		return Result{}, fmt.Errorf("parse spreadsheet %s: %w", d.Name, err)
	}

	p := e.policies.LabSheet
	counts := tabstat.ColumnCounts(rows)
	mode := tabstat.Mode(counts)
	empties := tabstat.EmptyCellRate(rows)
	hasUnits := rowsContainUnits(rows)

	s := &scorer{}
	s.detail("rows sampled: %d", len(rows))
	s.detail("column mode: %d", mode)
	s.detail("empty cells: %.0f%%", empties*100)
	s.detail("unit tokens found: %v", hasUnits)

	p.Rows.apply(float64(len(rows)), s)
	if mode >= p.MinColumns {
		s.add(p.ColumnPts)
	} else {
		s.say(p.ColumnAdvice)
	}
	p.Empties.apply(empties, s)
	if hasUnits {
		s.add(p.UnitPts)
	} else {
		s.say(p.UnitAdvice)
	}
	s.add(p.ParseBonus)

	return s.result(FamilyLabSheet, p.Thresholds), nil
}

func rowsContainUnits(rows [][]string) bool {
	for _, row := range rows {
		for _, cell := range row {
			if unitTokenRe.MatchString(cell) {
				return true
			}
		}
	}
	return false
}

// readWorkbookRows opens the workbook archive and returns the sampled rows
// of its first worksheet.
func readWorkbookRows(data []byte) ([][]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	shared, err := readSharedStrings(zr)
	if err != nil {
		return nil, err
	}

	var sheets []string
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "xl/worksheets/") && strings.HasSuffix(f.Name, ".xml") {
			sheets = append(sheets, f.Name)
		}
	}
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no worksheet part found in archive")
	}
	sort.Strings(sheets)

	return readSheetRows(zr, sheets[0], shared)
}

// readSharedStrings loads xl/sharedStrings.xml if present. Rich-text runs
// concatenate their <t> fragments into one string.
func readSharedStrings(zr *zip.Reader) ([]string, error) {
	var file *zip.File
	for _, f := range zr.File {
		if f.Name == "xl/sharedStrings.xml" {
			file = f
			break
		}
	}
	if file == nil {
		return nil, nil
	}
	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open shared strings: %w", err)
	}
	defer rc.Close()

	var strs []string
	var current strings.Builder
	inItem, inText := false, false

	decoder := xml.NewDecoder(rc)
	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "si":
				inItem = true
				current.Reset()
			case "t":
				inText = inItem
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "si":
				inItem = false
				strs = append(strs, current.String())
			}
		}
	}
	return strs, nil
}

// readSheetRows walks one worksheet part row by row, resolving shared
// string references, until EOF or the sampling cap.
func readSheetRows(zr *zip.Reader, name string, shared []string) ([][]string, error) {
	var file *zip.File
	for _, f := range zr.File {
		if f.Name == name {
			file = f
			break
		}
	}
	if file == nil {
		return nil, fmt.Errorf("worksheet %s not found", name)
	}
	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open worksheet: %w", err)
	}
	defer rc.Close()

	var rows [][]string
	var row []string
	var cellType string
	var value strings.Builder
	inValue := false

	decoder := xml.NewDecoder(rc)
	for len(rows) < tabstat.MaxSampleRows {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "row":
				row = nil
			case "c":
				cellType = ""
				for _, attr := range t.Attr {
					if attr.Name.Local == "t" {
						cellType = attr.Value
					}
				}
			case "v", "t":
				inValue = true
				value.Reset()
			}
		case xml.CharData:
			if inValue {
				value.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "v", "t":
				inValue = false
			case "c":
				row = append(row, resolveCell(cellType, value.String(), shared))
				value.Reset()
			case "row":
				if row != nil {
					rows = append(rows, row)
				}
			}
		}
	}
	return rows, nil
}

// resolveCell maps a raw cell value to its display string. Type "s" is an
// index into the shared string table; anything else is taken verbatim.
func resolveCell(cellType, raw string, shared []string) string {
	if cellType == "s" {
		idx, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || idx < 0 || idx >= len(shared) {
			return ""
		}
		return shared[idx]
	}
	return raw
}

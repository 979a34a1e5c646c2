package handlers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// parsedEntry is one commission line lifted out of a carrier statement before
// it is resolved against agents and stored.
type parsedEntry struct {
	PolicyNumber     string
	InsuredName      string
	WritingAgentNPN  string
	PremiumAmount    float64
	CommissionAmount float64
	StatementDate    *time.Time
}

var errNoHeader = errors.New("no recognizable header row found")

// Column aliases seen across carrier statement exports. Matching is
// case-insensitive on a normalized (alphanumeric only) form.
var statementColumns = map[string][]string{
	"policy":     {"policynumber", "policyno", "policy", "contractnumber"},
	"insured":    {"insuredname", "insured", "clientname", "annuitantname"},
	"npn":        {"writingagentnpn", "agentnpn", "npn", "writingnpn", "producernpn"},
	"premium":    {"premiumamount", "premium", "modalpremium", "annualizedpremium"},
	"commission": {"commissionamount", "commission", "commearned", "compensation"},
	"date":       {"statementdate", "date", "processdate", "activitydate"},
}

func normalizeHeader(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// matchHeaderRow maps column roles to indexes when the row looks like a
// statement header. A header needs at least the policy and commission columns.
func matchHeaderRow(row []string) (map[string]int, bool) {
	found := map[string]int{}
	for idx, cell := range row {
		norm := normalizeHeader(cell)
		if norm == "" {
			continue
		}
		for role, aliases := range statementColumns {
			if _, taken := found[role]; taken {
				continue
			}
			for _, alias := range aliases {
				if norm == alias {
					found[role] = idx
					break
				}
			}
		}
	}
	_, hasPolicy := found["policy"]
	_, hasCommission := found["commission"]
	return found, hasPolicy && hasCommission
}

// parseMoney accepts "$1,234.56", "(45.00)" for negatives, and plain numbers.
func parseMoney(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if negative {
		v = -v
	}
	return v, nil
}

var statementDateFormats = []string{"01/02/2006", "1/2/2006", "2006-01-02", "01-02-2006", "Jan 2, 2006"}

func parseStatementDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range statementDateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func cellAt(row []string, idx int, ok bool) string {
	if !ok || idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parseStatementRows scans raw rows for the header and converts every
// following non-empty row into a parsed entry. Rows with an unparseable
// commission amount are reported, not silently dropped.
func parseStatementRows(rows [][]string) ([]parsedEntry, error) {
	var cols map[string]int
	headerRow := -1
	for i, row := range rows {
		if m, ok := matchHeaderRow(row); ok {
			cols = m
			headerRow = i
			break
		}
	}
	if headerRow < 0 {
		return nil, errNoHeader
	}

	var entries []parsedEntry
	for i := headerRow + 1; i < len(rows); i++ {
		row := rows[i]

		policyIdx, hasPolicy := cols["policy"]
		policy := cellAt(row, policyIdx, hasPolicy)
		if policy == "" {
			continue
		}

		commIdx, hasComm := cols["commission"]
		commission, err := parseMoney(cellAt(row, commIdx, hasComm))
		if err != nil {
			return nil, fmt.Errorf("row %d: bad commission amount %q", i+1, cellAt(row, commIdx, hasComm))
		}

		premIdx, hasPrem := cols["premium"]
		premium, err := parseMoney(cellAt(row, premIdx, hasPrem))
		if err != nil {
			return nil, fmt.Errorf("row %d: bad premium amount %q", i+1, cellAt(row, premIdx, hasPrem))
		}

		insuredIdx, hasInsured := cols["insured"]
		npnIdx, hasNPN := cols["npn"]
		dateIdx, hasDate := cols["date"]

		entries = append(entries, parsedEntry{
			PolicyNumber:     policy,
			InsuredName:      cellAt(row, insuredIdx, hasInsured),
			WritingAgentNPN:  cellAt(row, npnIdx, hasNPN),
			PremiumAmount:    premium,
			CommissionAmount: commission,
			StatementDate:    parseStatementDate(cellAt(row, dateIdx, hasDate)),
		})
	}

	if len(entries) == 0 {
		return nil, errors.New("statement contained no data rows")
	}
	return entries, nil
}

// readXLSXRows pulls the first sheet of an xlsx stream into raw rows.
func readXLSXRows(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}

// readCSVRows reads a statement CSV, tolerating ragged rows.
func readCSVRows(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	return reader.ReadAll()
}

// readXLSRows handles the legacy BIFF .xls format some carriers still export.
func readXLSRows(path string) ([][]string, error) {
	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, err
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, errors.New("workbook has no sheets")
	}

	var rows [][]string
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			continue
		}
		var cells []string
		for j := row.FirstCol(); j < row.LastCol(); j++ {
			cells = append(cells, row.Col(j))
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

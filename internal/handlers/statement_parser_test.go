package handlers

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Policy Number", "policynumber"},
		{"  Comm. Earned ", "commearned"},
		{"NPN#", "npn"},
		{"---", ""},
	}
	for _, tt := range tests {
		if got := normalizeHeader(tt.in); got != tt.want {
			t.Errorf("normalizeHeader(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMatchHeaderRow(t *testing.T) {
	cols, ok := matchHeaderRow([]string{"Policy Number", "Insured Name", "Agent NPN", "Premium", "Commission Amount", "Statement Date"})
	if !ok {
		t.Fatal("expected header row to match")
	}
	want := map[string]int{"policy": 0, "insured": 1, "npn": 2, "premium": 3, "commission": 4, "date": 5}
	for role, idx := range want {
		if cols[role] != idx {
			t.Errorf("role %s: got index %d, want %d", role, cols[role], idx)
		}
	}

	// Missing the commission column means it is not a header.
	if _, ok := matchHeaderRow([]string{"Policy Number", "Insured Name", "Premium"}); ok {
		t.Error("row without a commission column should not match")
	}
	if _, ok := matchHeaderRow([]string{"Totals", "", "1234.00"}); ok {
		t.Error("data-looking row should not match")
	}
}

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"$1,234.56", 1234.56, false},
		{"(45.00)", -45, false},
		{"  $0.99 ", 0.99, false},
		{"1234", 1234, false},
		{"", 0, false},
		{"n/a", 0, true},
	}
	for _, tt := range tests {
		got, err := parseMoney(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseMoney(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseMoney(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseStatementDate(t *testing.T) {
	for _, in := range []string{"03/15/2026", "3/15/2026", "2026-03-15", "03-15-2026", "Mar 15, 2026"} {
		got := parseStatementDate(in)
		if got == nil {
			t.Errorf("parseStatementDate(%q) = nil", in)
			continue
		}
		if got.Year() != 2026 || int(got.Month()) != 3 || got.Day() != 15 {
			t.Errorf("parseStatementDate(%q) = %v", in, got)
		}
	}
	if got := parseStatementDate("yesterday"); got != nil {
		t.Errorf("parseStatementDate(unknown) = %v, want nil", got)
	}
	if got := parseStatementDate(""); got != nil {
		t.Errorf("parseStatementDate(empty) = %v, want nil", got)
	}
}

func TestParseStatementRows(t *testing.T) {
	rows := [][]string{
		{"Acme Life Insurance"},
		{"Commission Statement", "March 2026"},
		{"Policy No", "Insured", "Producer NPN", "Premium", "Commission", "Date"},
		{"POL-1001", "Jane Smith", "12345678", "$120.00", "$18.00", "03/01/2026"},
		{"POL-1002", "Bob Jones", "87654321", "(50.00)", "(7.50)", "03/02/2026"},
		{"", "", "", "", ""},
		{"POL-1003", "Ann Lee", "", "300", "45"},
	}
	entries, err := parseStatementRows(rows)
	if err != nil {
		t.Fatalf("parseStatementRows: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if entries[0].PolicyNumber != "POL-1001" || entries[0].CommissionAmount != 18 || entries[0].WritingAgentNPN != "12345678" {
		t.Errorf("first entry = %+v", entries[0])
	}
	if entries[1].CommissionAmount != -7.5 || entries[1].PremiumAmount != -50 {
		t.Errorf("chargeback entry = %+v", entries[1])
	}
	if entries[0].StatementDate == nil || entries[0].StatementDate.Day() != 1 {
		t.Errorf("first entry date = %v", entries[0].StatementDate)
	}
	if entries[2].StatementDate != nil {
		t.Errorf("entry without date column value should have nil date, got %v", entries[2].StatementDate)
	}
}

func TestParseStatementRowsNoHeader(t *testing.T) {
	_, err := parseStatementRows([][]string{
		{"Acme Life Insurance"},
		{"Totals", "1234.00"},
	})
	if err != errNoHeader {
		t.Fatalf("expected errNoHeader, got %v", err)
	}
}

func TestParseStatementRowsBadAmount(t *testing.T) {
	rows := [][]string{
		{"Policy Number", "Commission"},
		{"POL-1", "pending"},
	}
	_, err := parseStatementRows(rows)
	if err == nil || !strings.Contains(err.Error(), "bad commission amount") {
		t.Fatalf("expected bad amount error, got %v", err)
	}
}

func TestReadXLSXRows(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	data := [][]interface{}{
		{"Policy Number", "Insured Name", "Commission Amount"},
		{"POL-9", "Carol White", 12.34},
	}
	for i, row := range data {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}

	rows, err := readXLSXRows(&buf)
	if err != nil {
		t.Fatalf("readXLSXRows: %v", err)
	}
	entries, err := parseStatementRows(rows)
	if err != nil {
		t.Fatalf("parseStatementRows: %v", err)
	}
	if len(entries) != 1 || entries[0].PolicyNumber != "POL-9" || entries[0].CommissionAmount != 12.34 {
		t.Errorf("entries = %+v", entries)
	}
}

func TestReadCSVRows(t *testing.T) {
	csvData := "Policy No,Commission\nPOL-1,\"$1,000.00\"\nPOL-2,(25.00),extra\n"
	rows, err := readCSVRows(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("readCSVRows: %v", err)
	}
	entries, err := parseStatementRows(rows)
	if err != nil {
		t.Fatalf("parseStatementRows: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].CommissionAmount != 1000 || entries[1].CommissionAmount != -25 {
		t.Errorf("entries = %+v", entries)
	}
}

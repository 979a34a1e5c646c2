package handlers

import (
	"testing"
	"time"
)

func TestResolveScoreboardRange(t *testing.T) {
	// Wednesday, April 15 2026.
	now := time.Date(2026, 4, 15, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name      string
		rangeName string
		from, to  string
		wantStart time.Time
		wantEnd   time.Time
		wantErr   bool
	}{
		{
			name:      "week starts monday",
			rangeName: "week",
			wantStart: time.Date(2026, 4, 13, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "empty defaults to week",
			rangeName: "",
			wantStart: time.Date(2026, 4, 13, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "month",
			rangeName: "month",
			wantStart: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "quarter",
			rangeName: "quarter",
			wantStart: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "year",
			rangeName: "year",
			wantStart: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "custom inclusive end",
			rangeName: "custom",
			from:      "2026-03-01",
			to:        "2026-03-31",
			wantStart: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		},
		{name: "custom missing dates", rangeName: "custom", wantErr: true},
		{name: "custom bad date", rangeName: "custom", from: "03/01/2026", to: "2026-03-31", wantErr: true},
		{name: "custom reversed", rangeName: "custom", from: "2026-03-31", to: "2026-03-01", wantErr: true},
		{name: "unknown preset", rangeName: "fortnight", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := resolveScoreboardRange(tt.rangeName, tt.from, tt.to, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !start.Equal(tt.wantStart) {
				t.Errorf("start = %v, want %v", start, tt.wantStart)
			}
			if !end.Equal(tt.wantEnd) {
				t.Errorf("end = %v, want %v", end, tt.wantEnd)
			}
		})
	}
}

func TestResolveScoreboardRangeSunday(t *testing.T) {
	// A Sunday belongs to the week that started the previous Monday, not the
	// week starting the next day.
	sunday := time.Date(2026, 4, 19, 10, 0, 0, 0, time.UTC)
	start, end, err := resolveScoreboardRange("week", "", "", sunday)
	if err != nil {
		t.Fatalf("resolveScoreboardRange: %v", err)
	}
	if want := time.Date(2026, 4, 13, 0, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Errorf("start = %v, want %v", start, want)
	}
	if want := time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC); !end.Equal(want) {
		t.Errorf("end = %v, want %v", end, want)
	}
}

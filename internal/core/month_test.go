package core

import "testing"

func TestParseMonth(t *testing.T) {
	cases := []struct {
		in   string
		want Month
		ok   bool
	}{
		{"2025-03", Month{2025, 3}, true},
		{"2024-12", Month{2024, 12}, true},
		{"2025-3", Month{}, false},
		{"25-03", Month{}, false},
		{"2025-13", Month{}, false},
		{"2025-00", Month{}, false},
		{"2025/03", Month{}, false},
		{"", Month{}, false},
	}
	for i, tc := range cases {
		got, err := ParseMonth(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("case %d: got %v, %v", i, got, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d: expected error for %q", i, tc.in)
		}
	}
}

func TestMonthPrevRollsOverYear(t *testing.T) {
	if got := (Month{2025, 1}).Prev(); got != (Month{2024, 12}) {
		t.Fatalf("got %v", got)
	}
	if got := (Month{2025, 6}).Prev(); got != (Month{2025, 5}) {
		t.Fatalf("got %v", got)
	}
}

func TestMonthDays(t *testing.T) {
	cases := []struct {
		m    Month
		want int
	}{
		{Month{2025, 1}, 31},
		{Month{2025, 2}, 28},
		{Month{2024, 2}, 29}, // leap
		{Month{2025, 4}, 30},
	}
	for _, tc := range cases {
		if got := tc.m.Days(); got != tc.want {
			t.Fatalf("%v: got %d, want %d", tc.m, got, tc.want)
		}
	}
}

func TestParseRecordID(t *testing.T) {
	classID, m, err := ParseRecordID("C1_2025-03")
	if err != nil || classID != "C1" || m != (Month{2025, 3}) {
		t.Fatalf("got %q %v %v", classID, m, err)
	}

	// Class ids may contain underscores; the month comes from the last one.
	classID, m, err = ParseRecordID("kg_baru_7_2024-12")
	if err != nil || classID != "kg_baru_7" || m != (Month{2024, 12}) {
		t.Fatalf("got %q %v %v", classID, m, err)
	}

	bads := []string{"C1", "C1_2025-3", "C1_garbage", "_2025-03", "C1_2025-03_", ""}
	for _, in := range bads {
		if _, _, err := ParseRecordID(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestRecordIDRoundTrip(t *testing.T) {
	id := RecordID("C1", Month{2025, 3})
	if id != "C1_2025-03" {
		t.Fatalf("got %q", id)
	}
}

package core

import "testing"

func TestStipendFlat(t *testing.T) {
	rate := &RateCategory{Kategori: "A", Jenis: JenisPetugas, Payment: PayFlat, Amount: Money{Sen: 20000}}

	// Present with any non-empty attendance: flat amount exactly once.
	if got := Stipend(rate, []int{1, 5, 10}, nil); got.Sen != 20000 {
		t.Fatalf("got %d", got.Sen)
	}
	if got := Stipend(rate, []int{7}, nil); got.Sen != 20000 {
		t.Fatalf("got %d", got.Sen)
	}
	// Absent: zero.
	if got := Stipend(rate, nil, nil); got.Sen != 0 {
		t.Fatalf("got %d", got.Sen)
	}
}

func TestStipendPerSession(t *testing.T) {
	rate := &RateCategory{Kategori: "B", Jenis: JenisMualaf, Payment: PayPerSession, Amount: Money{Sen: 1000}}

	if got := Stipend(rate, []int{2, 9, 16, 23}, nil); got.Sen != 4000 {
		t.Fatalf("got %d", got.Sen)
	}
	if got := Stipend(rate, nil, nil); got.Sen != 0 {
		t.Fatalf("got %d", got.Sen)
	}
}

func TestStipendMissingRateDegradesToZero(t *testing.T) {
	if got := Stipend(nil, []int{1, 2, 3}, nil); got.Sen != 0 {
		t.Fatalf("got %d", got.Sen)
	}
}

func TestStipendDayFilter(t *testing.T) {
	perSession := &RateCategory{Kategori: "B", Jenis: JenisPetugas, Payment: PayPerSession, Amount: Money{Sen: 1000}}
	att := []int{1, 2}

	day := 2
	if !Present(att, &day) {
		t.Fatal("expected present on filtered day")
	}
	if got := Sessions(att, &day); got != 1 {
		t.Fatalf("sessions with filter: got %d, want 1", got)
	}
	// Rate 10 with day filter yields 10, not 20.
	if got := Stipend(perSession, att, &day); got.Sen != 1000 {
		t.Fatalf("got %d", got.Sen)
	}

	missing := 9
	if Present(att, &missing) {
		t.Fatal("expected absent on unattended day")
	}
	if got := Stipend(perSession, att, &missing); got.Sen != 0 {
		t.Fatalf("got %d", got.Sen)
	}

	flat := &RateCategory{Kategori: "A", Jenis: JenisPetugas, Payment: PayFlat, Amount: Money{Sen: 20000}}
	if got := Stipend(flat, att, &day); got.Sen != 20000 {
		t.Fatalf("got %d", got.Sen)
	}
	if got := Stipend(flat, att, &missing); got.Sen != 0 {
		t.Fatalf("got %d", got.Sen)
	}
}

func TestMoneyRinggit(t *testing.T) {
	cases := []struct {
		sen  int64
		want string
	}{
		{0, "RM0.00"},
		{1234, "RM12.34"},
		{20000, "RM200.00"},
		{-550, "-RM5.50"},
	}
	for _, tc := range cases {
		if got := (Money{Sen: tc.sen}).Ringgit(); got != tc.want {
			t.Fatalf("%d: got %q, want %q", tc.sen, got, tc.want)
		}
	}
}

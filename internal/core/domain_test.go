package core

import (
	"testing"
	"time"
)

func TestInvoiceStatusIsValid(t *testing.T) {
	for _, s := range Statuses() {
		if !s.IsValid() {
			t.Fatalf("%q should be valid", s)
		}
	}
	for _, s := range []InvoiceStatus{"", "x", "PAID", "overdue"} {
		if s.IsValid() {
			t.Fatalf("%q should be invalid", s)
		}
	}
}

func TestInvoiceValidate(t *testing.T) {
	good := Invoice{CustomerID: "c-1", Amount: Money{Cents: 4550}, Status: StatusPending}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Invoice{
		{CustomerID: " ", Amount: Money{Cents: 1}, Status: StatusPaid},
		{CustomerID: "c", Amount: Money{Cents: 0}, Status: StatusPaid},
		{CustomerID: "c", Amount: Money{Cents: -5}, Status: StatusPaid},
		{CustomerID: "c", Amount: Money{Cents: 1}, Status: "x"},
	}
	for i, inv := range bads {
		if err := inv.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestRevenueValidate(t *testing.T) {
	if err := (Revenue{Month: "Jan", Revenue: 2000}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Revenue{Month: "Sept", Revenue: 0}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	for _, r := range []Revenue{{Month: "Ja"}, {Month: "January"}, {Month: "Feb", Revenue: -1}} {
		if err := r.Validate(); err == nil {
			t.Fatalf("%+v expected error", r)
		}
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2022, 12, 6, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2022-12-06", "2022-12-06T00:00:00Z", " 2022-12-06 "} {
		got, err := ParseDate(in)
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if !got.Equal(want) {
			t.Fatalf("%q: got %v, want %v", in, got, want)
		}
	}
	if _, err := ParseDate("06/12/2022"); err == nil {
		t.Fatal("expected error for non-ISO date")
	}
}

func TestToday(t *testing.T) {
	clock := func() time.Time { return time.Date(2024, 3, 9, 23, 59, 0, 0, time.UTC) }
	if got := Today(clock); got != "2024-03-09" {
		t.Fatalf("Today = %q", got)
	}
}

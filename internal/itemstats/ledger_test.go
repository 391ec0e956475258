package itemstats

import "testing"

func TestEntry_Deficit(t *testing.T) {
	if got := (Entry{Inventory: 10, Debt: 25}).Deficit(); got != 15 {
		t.Fatalf("deficit=%d want 15", got)
	}
	if got := (Entry{Inventory: 30, Debt: 25}).Deficit(); got != 0 {
		t.Fatalf("deficit=%d want 0", got)
	}
}

func TestLedger_Check(t *testing.T) {
	ok := Ledger{1: {Cost: 10, Used: 4, Debt: 6}, 5: {Inventory: 3}}
	if err := ok.Check(); err != nil {
		t.Fatalf("Check: %v", err)
	}
	broken := Ledger{1: {Cost: 10, Used: 4, Debt: 5}}
	if err := broken.Check(); err == nil {
		t.Fatalf("expected cost mismatch")
	}
	negative := Ledger{1: {Inventory: -1}}
	if err := negative.Check(); err == nil {
		t.Fatalf("expected negative total error")
	}
}

func TestLedger_Rows(t *testing.T) {
	l := Ledger{
		5:    {Inventory: 100, Cost: 300, Debt: 300},
		6001: {Inventory: 2, Cost: 9, Used: 3, Debt: 6},
		6501: {Cost: 1, Debt: 1},
	}

	rows := l.Rows([]int{6501, 42, 6001, 6501})
	if len(rows) != 3 {
		t.Fatalf("rows=%+v", rows)
	}
	// Entries missing from the order come last, by id.
	if rows[0].ItemID != 6501 || rows[1].ItemID != 6001 || rows[2].ItemID != 5 {
		t.Fatalf("order=%d,%d,%d", rows[0].ItemID, rows[1].ItemID, rows[2].ItemID)
	}
	if rows[1].Deficit != 4 {
		t.Fatalf("deficit=%d want 4", rows[1].Deficit)
	}

	all := l.Rows(nil)
	if len(all) != 3 || all[0].ItemID != 5 || all[2].ItemID != 6501 {
		t.Fatalf("default order=%+v", all)
	}
	if all[0].Deficit != 200 {
		t.Fatalf("qp deficit=%d want 200", all[0].Deficit)
	}
}

func TestLedger_Digest(t *testing.T) {
	a := Ledger{1: {Cost: 3, Debt: 3}, 2: {Inventory: 7}}
	b := Ledger{2: {Inventory: 7}, 1: {Cost: 3, Debt: 3}}
	if a.Digest() != b.Digest() {
		t.Fatalf("digest depends on insertion order")
	}
	if len(a.Digest()) != 64 {
		t.Fatalf("digest=%q", a.Digest())
	}
	b[2].Inventory = 8
	if a.Digest() == b.Digest() {
		t.Fatalf("digest did not change")
	}
}

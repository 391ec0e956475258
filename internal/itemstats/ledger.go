package itemstats

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"

	"lukechampine.com/blake3"
)

// Entry accumulates the requirement totals of a single item.
// Cost == Used + Debt holds after every fold.
type Entry struct {
	Inventory int64 `json:"inventory"`
	Used      int64 `json:"used"`
	Cost      int64 `json:"cost"`
	Debt      int64 `json:"debt"`
}

// Deficit is the amount still to be acquired on top of the inventory.
func (e Entry) Deficit() int64 {
	if d := e.Debt - e.Inventory; d > 0 {
		return d
	}
	return 0
}

// Ledger maps item ids (QP included) to their entry. A ledger belongs to a
// single Compute call.
type Ledger map[int]*Entry

func (l Ledger) entry(itemID int) *Entry {
	e, ok := l[itemID]
	if !ok {
		e = &Entry{}
		l[itemID] = e
	}
	return e
}

// IDs returns the item ids in ascending order.
func (l Ledger) IDs() []int {
	ids := make([]int, 0, len(l))
	for id := range l {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Check reports the first entry that breaks the accounting invariants.
func (l Ledger) Check() error {
	for _, id := range l.IDs() {
		e := l[id]
		if e.Inventory < 0 || e.Used < 0 || e.Cost < 0 || e.Debt < 0 {
			return fmt.Errorf("item %d: negative total %+v", id, *e)
		}
		if e.Cost != e.Used+e.Debt {
			return fmt.Errorf("item %d: cost %d != used %d + debt %d", id, e.Cost, e.Used, e.Debt)
		}
	}
	return nil
}

// Digest is a BLAKE3 hash of the id-ordered ledger contents.
func (l Ledger) Digest() string {
	h := blake3.New(32, nil)
	var buf []byte
	for _, id := range l.IDs() {
		e := l[id]
		buf = buf[:0]
		buf = strconv.AppendInt(buf, int64(id), 10)
		for _, v := range [4]int64{e.Inventory, e.Used, e.Cost, e.Debt} {
			buf = append(buf, ':')
			buf = strconv.AppendInt(buf, v, 10)
		}
		buf = append(buf, '\n')
		_, _ = h.Write(buf)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Row is one line of the item stats table.
type Row struct {
	ItemID    int   `json:"itemId"`
	Inventory int64 `json:"inventory"`
	Used      int64 `json:"used"`
	Cost      int64 `json:"cost"`
	Debt      int64 `json:"debt"`
	Deficit   int64 `json:"deficit"`
}

// Rows renders the ledger in display order. Ids without an entry are skipped
// and entries the order leaves out follow in ascending id order, so every
// entry gets a row.
func (l Ledger) Rows(order []int) []Row {
	out := make([]Row, 0, len(l))
	seen := make(map[int]struct{}, len(l))
	add := func(id int) {
		e, ok := l[id]
		if !ok {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		out = append(out, Row{
			ItemID:    id,
			Inventory: e.Inventory,
			Used:      e.Used,
			Cost:      e.Cost,
			Debt:      e.Debt,
			Deficit:   e.Deficit(),
		})
	}
	for _, id := range order {
		add(id)
	}
	for _, id := range l.IDs() {
		add(id)
	}
	return out
}

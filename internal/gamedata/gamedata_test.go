package gamedata

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const testItems = `[
  {"_id": 5, "name": "QP"},
  {"_id": 6001, "name": "Gem of Saber"},
  {"_id": 6501, "name": "Magic Gem of Saber"},
  {"_id": 7001, "name": "Saber Piece"}
]`

const testServant = `{
  "_id": 100100,
  "collectionNo": 2,
  "name": "Altria Pendragon",
  "class": "saber",
  "rarity": 5,
  "skillMaterials": {
    "1": {"materials": [{"itemId": 6001, "quantity": 5}], "qp": 200000},
    "2": {"materials": [{"itemId": 6001, "quantity": 12}], "qp": 400000}
  },
  "ascensionMaterials": {
    "1": {"materials": [{"itemId": 7001, "quantity": 5}], "qp": 100000}
  },
  "costumes": {
    "11": {"name": "Dress", "materials": {"materials": [{"itemId": 6501, "quantity": 10}], "qp": 3000000}},
    "12": {"name": "Free"}
  }
}`

const testSoundtracks = `[
  {"_id": 3, "name": "Track C", "priority": 2},
  {"_id": 1, "name": "Track A", "priority": 1, "material": {"itemId": 6001, "quantity": 1}},
  {"_id": 2, "name": "Track B", "priority": 1}
]`

func writeGamedata(t *testing.T, items, servant, soundtracks string) string {
	t.Helper()
	dir := t.TempDir()
	write := func(rel, body string) {
		p := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
	write("items.json", items)
	if servant != "" {
		write(filepath.Join("servants", "100100.json"), servant)
	}
	if soundtracks != "" {
		write("soundtracks.json", soundtracks)
	}
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeGamedata(t, testItems, testServant, testSoundtracks)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c.Items.ByID) != 4 || c.Items.IDs[0] != QPItemID {
		t.Fatalf("items: %+v", c.Items.IDs)
	}
	s, ok := c.Servants.ByID[100100]
	if !ok {
		t.Fatalf("servant 100100 not loaded")
	}
	if got := s.SkillMaterials[2].Materials[0].Quantity; got != 12 {
		t.Fatalf("skill 2 quantity=%d want 12", got)
	}
	if s.Costumes[12].Materials != nil {
		t.Fatalf("costume 12 should have no requirement")
	}
	if ids := c.Servants.ByID.SortedIDs(); len(ids) != 1 || ids[0] != 100100 {
		t.Fatalf("unexpected servant ids: %v", ids)
	}

	var order []int
	for _, st := range c.Soundtracks.List {
		order = append(order, st.ID)
	}
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("soundtrack order=%v want [1 2 3]", order)
	}
	if c.Items.Digest == "" || c.Servants.Digest == "" || c.Soundtracks.Digest == "" {
		t.Fatalf("expected digests to be set")
	}
}

func TestLoad_DigestsStable(t *testing.T) {
	a, err := Load(writeGamedata(t, testItems, testServant, testSoundtracks))
	if err != nil {
		t.Fatalf("Load a: %v", err)
	}
	b, err := Load(writeGamedata(t, testItems, testServant, testSoundtracks))
	if err != nil {
		t.Fatalf("Load b: %v", err)
	}
	if a.Servants.Digest != b.Servants.Digest || a.Items.Digest != b.Items.Digest {
		t.Fatalf("digests differ for identical data")
	}
}

func TestLoad_MissingSoundtracksAllowed(t *testing.T) {
	c, err := Load(writeGamedata(t, testItems, testServant, ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c.Soundtracks.List) != 0 || c.Soundtracks.Digest == "" {
		t.Fatalf("soundtracks=%+v", c.Soundtracks)
	}
}

func TestLoad_RejectsQPAsMaterial(t *testing.T) {
	bad := `{"_id": 100100, "name": "X", "skillMaterials": {"1": {"materials": [{"itemId": 5, "quantity": 1}], "qp": 0}}}`
	if _, err := Load(writeGamedata(t, testItems, bad, "")); err == nil {
		t.Fatalf("expected reserved item id to be rejected")
	}
}

func TestLoad_RejectsDuplicateItem(t *testing.T) {
	dup := `[{"_id": 6001, "name": "A"}, {"_id": 6001, "name": "B"}]`
	if _, err := Load(writeGamedata(t, dup, "", "")); err == nil {
		t.Fatalf("expected duplicate item id to be rejected")
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(writeGamedata(t, testItems, testServant, testSoundtracks)); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	bad := `{"_id": 100100, "name": "X", "skillMaterials": {"10": {"materials": [], "qp": 0}}}`
	err := Validate(writeGamedata(t, testItems, bad, ""))
	if !errors.Is(err, ErrSchema) {
		t.Fatalf("expected ErrSchema for out-of-range skill level, got %v", err)
	}

	negative := `{"_id": 100100, "name": "X", "skillMaterials": {"1": {"materials": [{"itemId": 6001, "quantity": -1}], "qp": 0}}}`
	err = Validate(writeGamedata(t, testItems, negative, ""))
	if !errors.Is(err, ErrSchema) {
		t.Fatalf("expected ErrSchema for negative quantity, got %v", err)
	}
}

func TestValidate_QPOptional(t *testing.T) {
	noQP := `{"_id": 100100, "name": "X", "skillMaterials": {}, "appendSkillMaterials": {"0": {"materials": [{"itemId": 6001, "quantity": 120}]}}}`
	dir := writeGamedata(t, testItems, noQP, "")
	if err := Validate(dir); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if qp := c.Servants.ByID[100100].AppendSkillMaterials[0].QP; qp != 0 {
		t.Fatalf("qp=%d want 0", qp)
	}
}

func TestValidate_ShippedGamedata(t *testing.T) {
	dir := filepath.Join("..", "..", "configs", "gamedata")
	if err := Validate(dir); err != nil {
		t.Fatalf("Validate(%s): %v", dir, err)
	}
	if _, err := Load(dir); err != nil {
		t.Fatalf("Load(%s): %v", dir, err)
	}
}

func TestEnhancementIsEmpty(t *testing.T) {
	if !(Enhancement{}).IsEmpty() {
		t.Fatalf("zero enhancement should be empty")
	}
	if !(Enhancement{Materials: []ItemQuantity{{ItemID: 6001}}}).IsEmpty() {
		t.Fatalf("zero quantities should be empty")
	}
	if (Enhancement{QP: 1}).IsEmpty() {
		t.Fatalf("qp-only requirement is not empty")
	}
}

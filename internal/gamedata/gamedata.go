package gamedata

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// QPItemID is the reserved item id under which QP is tracked. No enhancement
// material may use it.
const QPItemID = 5

type Catalogs struct {
	Items       ItemCatalog
	Servants    ServantCatalog
	Soundtracks SoundtrackCatalog
}

type ItemCatalog struct {
	ByID   map[int]ItemDef
	IDs    []int
	Digest string
}

type ItemDef struct {
	ID          int    `json:"_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Background  string `json:"background,omitempty"`
}

type ServantCatalog struct {
	ByID   ServantMap
	Digest string
}

// ServantMap indexes servant definitions by their game id.
type ServantMap map[int]ServantDef

// SortedIDs returns the servant ids in ascending order.
func (m ServantMap) SortedIDs() []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

type ServantDef struct {
	ID           int    `json:"_id"`
	CollectionNo int    `json:"collectionNo"`
	Name         string `json:"name"`
	Class        string `json:"class"`
	Rarity       int    `json:"rarity"`

	// Keyed by the level the requirement upgrades from.
	SkillMaterials       map[int]Enhancement `json:"skillMaterials"`
	AppendSkillMaterials map[int]Enhancement `json:"appendSkillMaterials,omitempty"`
	// Keyed by the ascension level the requirement unlocks.
	AscensionMaterials map[int]Enhancement `json:"ascensionMaterials,omitempty"`
	Costumes           map[int]CostumeDef  `json:"costumes,omitempty"`
}

type CostumeDef struct {
	CollectionNo int          `json:"collectionNo"`
	Name         string       `json:"name"`
	Materials    *Enhancement `json:"materials,omitempty"`
}

// Enhancement is the cost of one skill level, ascension or costume unlock.
type Enhancement struct {
	Materials []ItemQuantity `json:"materials"`
	QP        int            `json:"qp"`
}

func (e Enhancement) IsEmpty() bool {
	if e.QP != 0 {
		return false
	}
	for _, m := range e.Materials {
		if m.Quantity != 0 {
			return false
		}
	}
	return true
}

type ItemQuantity struct {
	ItemID   int `json:"itemId"`
	Quantity int `json:"quantity"`
}

type SoundtrackCatalog struct {
	List   []SoundtrackDef
	Digest string
}

type SoundtrackDef struct {
	ID       int           `json:"_id"`
	Name     string        `json:"name"`
	Priority int           `json:"priority"`
	Material *ItemQuantity `json:"material,omitempty"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadItems(filepath.Join(configDir, "items.json"), &c.Items); err != nil {
		return nil, err
	}
	if err := loadServants(filepath.Join(configDir, "servants"), &c.Servants); err != nil {
		return nil, err
	}
	if err := loadSoundtracks(filepath.Join(configDir, "soundtracks.json"), &c.Soundtracks); err != nil {
		return nil, err
	}

	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadItems(path string, out *ItemCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	out.ByID = make(map[int]ItemDef, len(defs))
	for _, d := range defs {
		if d.ID <= 0 {
			return fmt.Errorf("items.json: invalid _id %d", d.ID)
		}
		if _, dup := out.ByID[d.ID]; dup {
			return fmt.Errorf("items.json: duplicate _id %d", d.ID)
		}
		out.ByID[d.ID] = d
	}

	out.IDs = make([]int, 0, len(out.ByID))
	for id := range out.ByID {
		out.IDs = append(out.IDs, id)
	}
	sort.Ints(out.IDs)
	return nil
}

func loadServants(dir string, out *ServantCatalog) error {
	out.ByID = ServantMap{}

	files, err := jsonFiles(dir)
	if err != nil {
		return err
	}

	var concat bytes.Buffer
	for _, p := range files {
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		concat.Write(b)
		concat.WriteByte('\n')

		var s ServantDef
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("servant %s: %w", filepath.Base(p), err)
		}
		if s.ID <= 0 {
			return fmt.Errorf("servant %s: missing _id", filepath.Base(p))
		}
		if _, dup := out.ByID[s.ID]; dup {
			return fmt.Errorf("servant %s: duplicate _id %d", filepath.Base(p), s.ID)
		}
		if err := checkServantMaterials(s); err != nil {
			return fmt.Errorf("servant %s: %w", filepath.Base(p), err)
		}
		out.ByID[s.ID] = s
	}
	out.Digest = sha256Hex(concat.Bytes())
	return nil
}

func loadSoundtracks(path string, out *SoundtrackCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		// Soundtracks are optional game data.
		if os.IsNotExist(err) {
			out.Digest = sha256Hex(nil)
			out.List = nil
			return nil
		}
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []SoundtrackDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("soundtracks.json: %w", err)
	}
	seen := make(map[int]struct{}, len(defs))
	for _, d := range defs {
		if d.ID <= 0 {
			return fmt.Errorf("soundtracks.json: invalid _id %d", d.ID)
		}
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("soundtracks.json: duplicate _id %d", d.ID)
		}
		seen[d.ID] = struct{}{}
		if d.Material != nil && d.Material.ItemID == QPItemID {
			return fmt.Errorf("soundtracks.json: soundtrack %d uses reserved item id %d", d.ID, QPItemID)
		}
	}
	sort.SliceStable(defs, func(i, j int) bool {
		if defs[i].Priority != defs[j].Priority {
			return defs[i].Priority < defs[j].Priority
		}
		return defs[i].ID < defs[j].ID
	})
	out.List = defs
	return nil
}

// checkServantMaterials rejects requirements that list QP as a material; QP
// belongs in the dedicated qp field.
func checkServantMaterials(s ServantDef) error {
	check := func(kind string, key int, e Enhancement) error {
		for _, m := range e.Materials {
			if m.ItemID == QPItemID {
				return fmt.Errorf("%s %d: material uses reserved item id %d", kind, key, QPItemID)
			}
		}
		return nil
	}
	for k, e := range s.SkillMaterials {
		if err := check("skill", k, e); err != nil {
			return err
		}
	}
	for k, e := range s.AppendSkillMaterials {
		if err := check("append skill", k, e); err != nil {
			return err
		}
	}
	for k, e := range s.AscensionMaterials {
		if err := check("ascension", k, e); err != nil {
			return err
		}
	}
	for k, c := range s.Costumes {
		if c.Materials == nil {
			continue
		}
		if err := check("costume", k, *c.Materials); err != nil {
			return err
		}
	}
	return nil
}

func jsonFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".json") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

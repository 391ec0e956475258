// Package account holds the master account snapshot the planner computes over.
package account

import (
	"encoding/json"
	"fmt"
	"os"
)

type Account struct {
	ID     string `json:"_id"`
	UserID string `json:"userId,omitempty"`
	Name   string `json:"name,omitempty"`

	QP    int64  `json:"qp"`
	Items []Item `json:"items"`

	Servants []Servant `json:"servants"`

	// Unlocked costume ids. Costumes are unlocked per servant type, not per copy.
	Costumes []int `json:"costumes"`
	// Unlocked soundtrack ids.
	Soundtracks []int `json:"soundtracks"`
}

type Item struct {
	ItemID   int   `json:"itemId"`
	Quantity int64 `json:"quantity"`
}

// Servant is one owned copy of a servant. Duplicates share GameID and differ
// by InstanceID.
type Servant struct {
	InstanceID   int         `json:"instanceId"`
	GameID       int         `json:"gameId"`
	Level        int         `json:"level,omitempty"`
	Ascension    int         `json:"ascension"`
	Skills       SkillLevels `json:"skills"`
	AppendSkills SkillLevels `json:"appendSkills,omitempty"`
}

// SkillLevels are the levels of the three independently upgraded skill slots.
// A zero level means the slot is locked.
type SkillLevels struct {
	One   int `json:"1"`
	Two   int `json:"2,omitempty"`
	Three int `json:"3,omitempty"`
}

func (s SkillLevels) Slots() [3]int {
	return [3]int{s.One, s.Two, s.Three}
}

// CountAbove returns how many slots are strictly above level.
func (s SkillLevels) CountAbove(level int) int {
	n := 0
	for _, l := range s.Slots() {
		if l > level {
			n++
		}
	}
	return n
}

// UnlockedCostumes returns the costume ids as a set.
func (a *Account) UnlockedCostumes() map[int]struct{} {
	return toSet(a.Costumes)
}

// UnlockedSoundtracks returns the soundtrack ids as a set.
func (a *Account) UnlockedSoundtracks() map[int]struct{} {
	return toSet(a.Soundtracks)
}

func toSet(ids []int) map[int]struct{} {
	out := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func Decode(raw []byte) (*Account, error) {
	var a Account
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func LoadFile(path string) (*Account, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	a, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", path, err)
	}
	return a, nil
}

// Package itemstats computes, per item, how much an account has already spent
// on servant enhancements, how much the remaining enhancements cost and how
// much of it is covered by the current inventory.
package itemstats

import (
	"errors"
	"fmt"

	"fgoplanner.app/internal/account"
	"fgoplanner.app/internal/gamedata"
)

// ErrServantNotFound matches warnings about owned servants whose game data is
// missing from the catalog.
var ErrServantNotFound = errors.New("servant not found in catalog")

type MissingServantError struct {
	InstanceID int
	GameID     int
}

func (e *MissingServantError) Error() string {
	return fmt.Sprintf("servant instance %d: game id %d not found in catalog", e.InstanceID, e.GameID)
}

func (e *MissingServantError) Is(target error) bool { return target == ErrServantNotFound }

// Filter selects which enhancement dimensions are counted.
type Filter struct {
	IncludeUnownedServants bool `json:"includeUnownedServants"`
	IncludeAppendSkills    bool `json:"includeAppendSkills"`
	IncludeCostumes        bool `json:"includeCostumes"`
	IncludeSoundtracks     bool `json:"includeSoundtracks"`
}

type Result struct {
	Ledger Ledger
	// Warnings lists data problems that were skipped over, such as a
	// *MissingServantError per unresolved servant instance.
	Warnings []error
}

// Compute builds a fresh ledger for acct. It does not modify its inputs and
// returns identical results for identical inputs.
func Compute(servants gamedata.ServantMap, soundtracks []gamedata.SoundtrackDef, acct *account.Account, f Filter) *Result {
	res := &Result{Ledger: Ledger{}}
	if acct == nil {
		acct = &account.Account{}
	}

	seedInventory(res.Ledger, acct)

	owned := make(map[int]struct{})
	unlockedCostumes := acct.UnlockedCostumes()

	for _, ms := range acct.Servants {
		servant, ok := servants[ms.GameID]
		if !ok {
			res.Warnings = append(res.Warnings, &MissingServantError{InstanceID: ms.InstanceID, GameID: ms.GameID})
			continue
		}
		_, duplicate := owned[ms.GameID]
		if !duplicate {
			owned[ms.GameID] = struct{}{}
		}
		res.Ledger.addOwnedServant(servant, ms, unlockedCostumes, f, !duplicate)
	}

	if f.IncludeUnownedServants {
		for _, id := range servants.SortedIDs() {
			if _, ok := owned[id]; ok {
				continue
			}
			res.Ledger.addUnownedServant(servants[id], f)
		}
	}

	if f.IncludeSoundtracks {
		res.Ledger.addSoundtracks(soundtracks, acct.UnlockedSoundtracks())
	}

	return res
}

// seedInventory creates an entry for every held item and for QP. Items the
// account does not list are created later on first use.
func seedInventory(l Ledger, acct *account.Account) {
	for _, it := range acct.Items {
		l.entry(it.ItemID).Inventory = it.Quantity
	}
	l.entry(gamedata.QPItemID).Inventory = acct.QP
}

func (l Ledger) addOwnedServant(servant gamedata.ServantDef, ms account.Servant, unlockedCostumes map[int]struct{}, f Filter, unique bool) {
	for level, skill := range servant.SkillMaterials {
		l.foldEnhancement(skill, true, skillMaxUpgrades, ms.Skills.CountAbove(level))
	}

	for level, ascension := range servant.AscensionMaterials {
		count := 0
		if ms.Ascension >= level {
			count = 1
		}
		l.foldEnhancement(ascension, true, singleMaxUpgrades, count)
	}

	if f.IncludeAppendSkills {
		for level, skill := range servant.AppendSkillMaterials {
			l.foldEnhancement(skill, true, skillMaxUpgrades, ms.AppendSkills.CountAbove(level))
		}
	}

	// Costumes belong to the servant type; count them for the first copy only.
	if unique && f.IncludeCostumes {
		for costumeID, costume := range servant.Costumes {
			if costume.Materials == nil || costume.Materials.IsEmpty() {
				continue
			}
			count := 0
			if _, ok := unlockedCostumes[costumeID]; ok {
				count = 1
			}
			l.foldEnhancement(*costume.Materials, true, singleMaxUpgrades, count)
		}
	}
}

func (l Ledger) addUnownedServant(servant gamedata.ServantDef, f Filter) {
	for _, skill := range servant.SkillMaterials {
		l.foldEnhancement(skill, false, skillMaxUpgrades, 0)
	}
	for _, ascension := range servant.AscensionMaterials {
		l.foldEnhancement(ascension, false, singleMaxUpgrades, 0)
	}
	if f.IncludeAppendSkills {
		for _, skill := range servant.AppendSkillMaterials {
			l.foldEnhancement(skill, false, skillMaxUpgrades, 0)
		}
	}
	// A costume cannot be unlocked without owning the servant, so the unlocked
	// set is not consulted here.
	if f.IncludeCostumes {
		for _, costume := range servant.Costumes {
			if costume.Materials == nil || costume.Materials.IsEmpty() {
				continue
			}
			l.foldEnhancement(*costume.Materials, false, singleMaxUpgrades, 0)
		}
	}
}

func (l Ledger) addSoundtracks(soundtracks []gamedata.SoundtrackDef, unlocked map[int]struct{}) {
	for _, st := range soundtracks {
		if st.Material == nil {
			continue
		}
		_, ok := unlocked[st.ID]
		count := 0
		if ok {
			count = 1
		}
		l.foldQuantity(st.Material.ItemID, st.Material.Quantity, ok, singleMaxUpgrades, count)
	}
}

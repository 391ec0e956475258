package itemstats

import "fgoplanner.app/internal/gamedata"

const (
	// Each skill level is paid once per skill slot.
	skillMaxUpgrades = 3
	// Ascensions and costume unlocks are paid once.
	singleMaxUpgrades = 1
)

// foldEnhancement adds one requirement to the ledger. maxUpgrades is how many
// times the requirement can ever be paid and upgradeCount how many times it
// has been paid (0..maxUpgrades). QP goes to the gamedata.QPItemID entry.
//
// For an unowned servant nothing has been paid, so the whole cost is debt.
func (l Ledger) foldEnhancement(e gamedata.Enhancement, owned bool, maxUpgrades, upgradeCount int) {
	for _, m := range e.Materials {
		l.foldQuantity(m.ItemID, m.Quantity, owned, maxUpgrades, upgradeCount)
	}
	l.foldQuantity(gamedata.QPItemID, e.QP, owned, maxUpgrades, upgradeCount)
}

func (l Ledger) foldQuantity(itemID, quantity int, owned bool, maxUpgrades, upgradeCount int) {
	stat := l.entry(itemID)
	cost := int64(quantity) * int64(maxUpgrades)
	stat.Cost += cost
	if !owned {
		stat.Debt += cost
		return
	}
	used := int64(quantity) * int64(upgradeCount)
	stat.Used += used
	stat.Debt += cost - used
}

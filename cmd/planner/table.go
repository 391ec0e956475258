package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"fgoplanner.app/internal/gamedata"
	"fgoplanner.app/internal/planner"
)

func renderStats(w io.Writer, items gamedata.ItemCatalog, rep *planner.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "ITEM\tINVENTORY\tUSED\tCOST\tDEBT\tDEFICIT\t")
	for _, r := range rep.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t\n",
			itemName(items, r.ItemID),
			humanize.Comma(r.Inventory),
			humanize.Comma(r.Used),
			humanize.Comma(r.Cost),
			humanize.Comma(r.Debt),
			humanize.Comma(r.Deficit),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, warn := range rep.Warnings {
		fmt.Fprintln(w, "warning:", warn)
	}
	_, err := fmt.Fprintf(w, "digest %s  computed in %.2fms\n", rep.Digest, rep.ElapsedMS)
	return err
}

func itemName(items gamedata.ItemCatalog, id int) string {
	if def, ok := items.ByID[id]; ok && def.Name != "" {
		return def.Name
	}
	if id == gamedata.QPItemID {
		return "QP"
	}
	return fmt.Sprintf("#%d", id)
}

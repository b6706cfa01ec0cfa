package agent

import (
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
)

// PrintStatus renders the agent's current positions and open orders as
// a table to w, for operators inspecting a running node from a
// terminal.
func (a *Agent) PrintStatus(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}

	fmt.Fprintf(w, "agent %s (%s)\n", a.AgentID, a.AgentType)

	positions := a.paper.GetPositions()
	posTable := tablewriter.NewWriter(w)
	posTable.Header("Coin", "Size", "Entry", "Unrealized PnL")
	for _, p := range positions {
		posTable.Append(
			p.Coin,
			fmt.Sprintf("%.4f", p.Size),
			fmt.Sprintf("%.2f", p.EntryPrice),
			fmt.Sprintf("%.2f", p.UnrealizedPnL),
		)
	}
	posTable.Render()

	orders := a.paper.GetOpenOrders()
	if len(orders) == 0 {
		return
	}
	fmt.Fprintln(w)
	ordTable := tablewriter.NewWriter(w)
	ordTable.Header("OID", "Coin", "Side", "Price", "Size")
	for _, o := range orders {
		side := "sell"
		if o.IsBuy {
			side = "buy"
		}
		ordTable.Append(
			fmt.Sprintf("%d", o.OID),
			o.Coin,
			side,
			fmt.Sprintf("%.4f", o.Price),
			fmt.Sprintf("%.4f", o.Size),
		)
	}
	ordTable.Render()
}

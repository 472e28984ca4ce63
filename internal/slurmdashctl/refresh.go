package slurmdashctl

import (
	"fmt"
	"text/tabwriter"
	"time"
)

// Refresh forces an immediate refresh of every host, bypassing the staleness
// gate, and prints the per-host outcome.
func (a *App) Refresh() error {
	manager, stop, err := a.startEngine()
	if err != nil {
		return err
	}
	defer stop()

	refreshErr := manager.ForceRefresh()
	manager.FlushPublications()

	state := manager.GetState().Get()
	w := tabwriter.NewWriter(a.Out, 1, 1, 2, ' ', 0)
	fmt.Fprintln(w, "HOST\tLAST SYNCED\tERROR")
	for _, host := range a.Params.Hosts {
		hostState := state.Hosts[host]
		lastSynced := "-"
		if !hostState.LastSynced.IsZero() {
			lastSynced = hostState.LastSynced.Format(time.RFC3339)
		}
		lastError := hostState.LastError
		if lastError == "" {
			lastError = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", host, lastSynced, lastError)
	}
	w.Flush()
	return refreshErr
}

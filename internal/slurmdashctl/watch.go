package slurmdashctl

import (
	"context"
	"fmt"
	"time"

	"github.com/slurmdash/slurmdash/internal/statesync/domain"
)

// Watch streams a summary line whenever the tracked job collection changes,
// until ctx is cancelled. Connection source transitions are printed as well.
func (a *App) Watch(ctx context.Context) error {
	manager, stop, err := a.startEngine()
	if err != nil {
		return err
	}
	defer stop()

	jobs := manager.GetAllJobs().Subscribe()
	defer jobs.Close()
	status := manager.GetConnectionStatus().Subscribe()
	defer status.Close()

	fmt.Fprintf(a.Out, "Watching hosts %v\n", a.Params.Hosts)
	lastSummary := ""
	source := domain.Source("")
	for {
		select {
		case <-ctx.Done():
			return nil
		case current := <-status.C:
			if current.Source != source {
				source = current.Source
				fmt.Fprintf(a.Out, "%s | source: %s\n", time.Now().Format(time.Stamp), source)
			}
		case records := <-jobs.C:
			summary := fmt.Sprintf("%d job(s): %s", len(records), domain.SummarizeStates(records))
			if summary == lastSummary {
				continue
			}
			lastSummary = summary
			fmt.Fprintf(a.Out, "%s | %s\n", time.Now().Format(time.Stamp), summary)
		}
	}
}

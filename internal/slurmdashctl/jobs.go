package slurmdashctl

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/slurmdash/slurmdash/internal/statesync/domain"
)

// Jobs prints a one-shot listing of every tracked job across all hosts,
// followed by a per-state summary and array job groupings.
func (a *App) Jobs(showArrays bool) error {
	manager, stop, err := a.startEngine()
	if err != nil {
		return err
	}
	defer stop()
	manager.FlushPublications()

	jobs := manager.GetAllJobs().Get()
	status := manager.GetConnectionStatus().Get()

	w := tabwriter.NewWriter(a.Out, 1, 1, 2, ' ', 0)
	fmt.Fprintln(w, "JOB ID\tHOST\tNAME\tUSER\tSTATE\tPARTITION\tRUNTIME")
	for _, job := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			job.JobId, job.Hostname, job.Name, job.User, job.State, job.Partition, formatRuntime(job.Runtime))
	}
	w.Flush()

	fmt.Fprintf(a.Out, "\n%d job(s): %s (source: %s)\n", len(jobs), domain.SummarizeStates(jobs), status.Source)

	if showArrays {
		printArrayGroups(a, jobs)
	}
	return nil
}

func printArrayGroups(a *App, jobs []*domain.JobRecord) {
	groups := domain.GroupArrayJobs(jobs)
	if len(groups) == 0 {
		return
	}
	fmt.Fprintf(a.Out, "\nArray jobs:\n")
	w := tabwriter.NewWriter(a.Out, 1, 1, 2, ' ', 0)
	fmt.Fprintln(w, "ARRAY JOB\tHOST\tTASKS\tRUNNING\tPENDING\tCOMPLETED\tFAILED\tCANCELLED")
	for _, group := range groups {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
			group.ArrayJobId, group.Hostname, len(group.Tasks),
			group.Running, group.Pending, group.Completed, group.Failed, group.Cancelled)
	}
	w.Flush()
}

func formatRuntime(runtime time.Duration) string {
	if runtime == 0 {
		return "-"
	}
	return runtime.Round(time.Second).String()
}

package domain

import "sort"

// ArrayJobGroup aggregates the tasks of one array job on one host.
// It is derived from member records on every read and never stored,
// so the counts cannot drift from the membership.
type ArrayJobGroup struct {
	ArrayJobId string
	Hostname   string
	Tasks      []*JobRecord

	Running   int
	Pending   int
	Completed int
	Failed    int
	Cancelled int
}

func (g *ArrayJobGroup) TotalTasks() int {
	return len(g.Tasks)
}

// GroupArrayJobs collects array tasks under their parent array job id,
// per host. Records without array linkage are ignored.
func GroupArrayJobs(records []*JobRecord) []*ArrayJobGroup {
	groups := map[JobKey]*ArrayJobGroup{}
	for _, record := range records {
		if !record.IsArrayTask() {
			continue
		}
		key := JobKey{JobId: record.ArrayJobId, Hostname: record.Hostname}
		group, exists := groups[key]
		if !exists {
			group = &ArrayJobGroup{ArrayJobId: record.ArrayJobId, Hostname: record.Hostname}
			groups[key] = group
		}
		group.Tasks = append(group.Tasks, record)
		switch record.State {
		case Running:
			group.Running++
		case Pending:
			group.Pending++
		case Completed:
			group.Completed++
		case Failed:
			group.Failed++
		case Cancelled:
			group.Cancelled++
		}
	}

	result := make([]*ArrayJobGroup, 0, len(groups))
	for _, group := range groups {
		sort.Slice(group.Tasks, func(i, j int) bool {
			a, b := group.Tasks[i], group.Tasks[j]
			if a.ArrayTaskId != nil && b.ArrayTaskId != nil && *a.ArrayTaskId != *b.ArrayTaskId {
				return *a.ArrayTaskId < *b.ArrayTaskId
			}
			return a.JobId < b.JobId
		})
		result = append(result, group)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Hostname != result[j].Hostname {
			return result[i].Hostname < result[j].Hostname
		}
		return result[i].ArrayJobId < result[j].ArrayJobId
	})
	return result
}

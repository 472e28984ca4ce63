package domain

import (
	"time"

	"github.com/slurmdash/slurmdash/pkg/api"
)

type JobState string

const (
	Pending    JobState = "PENDING"
	Running    JobState = "RUNNING"
	Completed  JobState = "COMPLETED"
	Failed     JobState = "FAILED"
	Cancelled  JobState = "CANCELLED"
	Timeout    JobState = "TIMEOUT"
	Completing JobState = "COMPLETING"
	NodeFail   JobState = "NODE_FAIL"
	Preempted  JobState = "PREEMPTED"
	Suspended  JobState = "SUSPENDED"
	Unknown    JobState = "UNKNOWN"
)

// SLURM reports states either as short codes (squeue) or long names (sacct).
var stateCodes = map[string]JobState{
	"PD": Pending,
	"R":  Running,
	"CD": Completed,
	"F":  Failed,
	"CA": Cancelled,
	"TO": Timeout,
	"CG": Completing,
	"NF": NodeFail,
	"PR": Preempted,
	"S":  Suspended,

	"PENDING":    Pending,
	"RUNNING":    Running,
	"COMPLETED":  Completed,
	"FAILED":     Failed,
	"CANCELLED":  Cancelled,
	"TIMEOUT":    Timeout,
	"COMPLETING": Completing,
	"NODE_FAIL":  NodeFail,
	"PREEMPTED":  Preempted,
	"SUSPENDED":  Suspended,
}

func ParseJobState(value string) JobState {
	if state, ok := stateCodes[value]; ok {
		return state
	}
	return Unknown
}

func (s JobState) IsTerminal() bool {
	switch s {
	case Completed, Failed, Cancelled, Timeout, NodeFail:
		return true
	}
	return false
}

// Authority ranks update sources. An incoming record may only overwrite an
// existing one written at a higher authority during a full host refresh.
type Authority int

const (
	AuthorityCacheHydration Authority = iota
	AuthorityBackgroundPoll
	AuthorityForcedPoll
	AuthorityPushChannel
)

func (a Authority) String() string {
	switch a {
	case AuthorityCacheHydration:
		return "cache-hydration"
	case AuthorityBackgroundPoll:
		return "background-poll"
	case AuthorityForcedPoll:
		return "forced-poll"
	case AuthorityPushChannel:
		return "push-channel"
	}
	return "unknown"
}

// JobKey identifies a job. Job ids are only unique within one host.
type JobKey struct {
	JobId    string
	Hostname string
}

type JobRecord struct {
	JobId       string
	Hostname    string
	Name        string
	User        string
	State       JobState
	Cpus        *int32
	Memory      *int64
	Nodes       *int32
	Partition   string
	Runtime     time.Duration
	SubmitTime  time.Time
	ArrayJobId  string
	ArrayTaskId *int32
}

func (r *JobRecord) Key() JobKey {
	return JobKey{JobId: r.JobId, Hostname: r.Hostname}
}

func (r *JobRecord) IsArrayTask() bool {
	return r.ArrayJobId != ""
}

func (r *JobRecord) DeepCopy() *JobRecord {
	if r == nil {
		return nil
	}
	record := *r
	record.Cpus = copyInt32(r.Cpus)
	record.Memory = copyInt64(r.Memory)
	record.Nodes = copyInt32(r.Nodes)
	record.ArrayTaskId = copyInt32(r.ArrayTaskId)
	return &record
}

func FromWire(wire *api.JobRecordWire) *JobRecord {
	return &JobRecord{
		JobId:       wire.JobId,
		Hostname:    wire.Hostname,
		Name:        wire.Name,
		User:        wire.User,
		State:       ParseJobState(wire.State),
		Cpus:        copyInt32(wire.Cpus),
		Memory:      copyInt64(wire.Memory),
		Nodes:       copyInt32(wire.Nodes),
		Partition:   wire.Partition,
		Runtime:     time.Duration(wire.Runtime) * time.Second,
		SubmitTime:  time.Unix(wire.SubmitTime, 0).UTC(),
		ArrayJobId:  wire.ArrayJobId,
		ArrayTaskId: copyInt32(wire.ArrayTaskId),
	}
}

func FromWireAll(wires []*api.JobRecordWire) []*JobRecord {
	records := make([]*JobRecord, 0, len(wires))
	for _, wire := range wires {
		records = append(records, FromWire(wire))
	}
	return records
}

func copyInt32(v *int32) *int32 {
	if v == nil {
		return nil
	}
	value := *v
	return &value
}

func copyInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	value := *v
	return &value
}

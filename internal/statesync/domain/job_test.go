package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/slurmdash/slurmdash/pkg/api"
)

func TestParseJobState(t *testing.T) {
	assert.Equal(t, Pending, ParseJobState("PD"))
	assert.Equal(t, Running, ParseJobState("R"))
	assert.Equal(t, Completed, ParseJobState("CD"))
	assert.Equal(t, Failed, ParseJobState("F"))
	assert.Equal(t, Cancelled, ParseJobState("CA"))
	assert.Equal(t, Timeout, ParseJobState("TO"))
	assert.Equal(t, Completing, ParseJobState("CG"))
	assert.Equal(t, NodeFail, ParseJobState("NF"))

	assert.Equal(t, Running, ParseJobState("RUNNING"))
	assert.Equal(t, Cancelled, ParseJobState("CANCELLED"))

	assert.Equal(t, Unknown, ParseJobState("SOMETHING_NEW"))
	assert.Equal(t, Unknown, ParseJobState(""))
}

func TestJobState_IsTerminal(t *testing.T) {
	assert.True(t, Completed.IsTerminal())
	assert.True(t, Failed.IsTerminal())
	assert.True(t, Cancelled.IsTerminal())
	assert.True(t, Timeout.IsTerminal())
	assert.False(t, Running.IsTerminal())
	assert.False(t, Pending.IsTerminal())
	assert.False(t, Completing.IsTerminal())
}

func TestAuthorityOrdering(t *testing.T) {
	assert.True(t, AuthorityPushChannel > AuthorityForcedPoll)
	assert.True(t, AuthorityForcedPoll > AuthorityBackgroundPoll)
	assert.True(t, AuthorityBackgroundPoll > AuthorityCacheHydration)
}

func TestFromWire(t *testing.T) {
	cpus := int32(4)
	taskId := int32(7)
	wire := &api.JobRecordWire{
		JobId:       "123",
		Hostname:    "cluster1",
		Name:        "simulation",
		User:        "bob",
		State:       "R",
		Cpus:        &cpus,
		Partition:   "compute",
		Runtime:     90,
		SubmitTime:  1700000000,
		ArrayJobId:  "120",
		ArrayTaskId: &taskId,
	}

	record := FromWire(wire)

	assert.Equal(t, JobKey{JobId: "123", Hostname: "cluster1"}, record.Key())
	assert.Equal(t, Running, record.State)
	assert.Equal(t, 90*time.Second, record.Runtime)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), record.SubmitTime)
	assert.True(t, record.IsArrayTask())
	assert.Equal(t, int32(7), *record.ArrayTaskId)
	assert.Nil(t, record.Memory)
	assert.Nil(t, record.Nodes)
}

func TestJobRecord_DeepCopy(t *testing.T) {
	cpus := int32(2)
	original := &JobRecord{JobId: "1", Hostname: "cluster1", State: Running, Cpus: &cpus}

	copied := original.DeepCopy()
	*copied.Cpus = 16
	copied.State = Failed

	assert.Equal(t, int32(2), *original.Cpus)
	assert.Equal(t, Running, original.State)
}

package gate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/slurmdash/slurmdash/internal/common/util"
)

func TestShouldSync_UnknownHostAlwaysAllowed(t *testing.T) {
	clock := &util.DummyClock{T: time.Now()}
	g := NewStalenessGate(30*time.Second, clock)

	assert.True(t, g.ShouldSync("cluster1", false))
}

func TestShouldSync_VetoedWithinMinimumInterval(t *testing.T) {
	clock := &util.DummyClock{T: time.Now()}
	g := NewStalenessGate(30*time.Second, clock)

	g.RecordSyncSuccess("cluster1", clock.Now())

	clock.Advance(10 * time.Second)
	assert.False(t, g.ShouldSync("cluster1", false))

	clock.Advance(21 * time.Second)
	assert.True(t, g.ShouldSync("cluster1", false))
}

func TestShouldSync_ForceBypassesVeto(t *testing.T) {
	clock := &util.DummyClock{T: time.Now()}
	g := NewStalenessGate(30*time.Second, clock)

	g.RecordSyncSuccess("cluster1", clock.Now())
	clock.Advance(time.Second)

	assert.True(t, g.ShouldSync("cluster1", true))
}

func TestShouldSync_HostsAreIndependent(t *testing.T) {
	clock := &util.DummyClock{T: time.Now()}
	g := NewStalenessGate(30*time.Second, clock)

	g.RecordSyncSuccess("cluster1", clock.Now())
	clock.Advance(time.Second)

	assert.False(t, g.ShouldSync("cluster1", false))
	assert.True(t, g.ShouldSync("cluster2", false))
}

func TestRecordSyncSuccess_ResetsWindow(t *testing.T) {
	clock := &util.DummyClock{T: time.Now()}
	g := NewStalenessGate(30*time.Second, clock)

	g.RecordSyncSuccess("cluster1", clock.Now())
	clock.Advance(31 * time.Second)
	assert.True(t, g.ShouldSync("cluster1", false))

	g.RecordSyncSuccess("cluster1", clock.Now())
	clock.Advance(5 * time.Second)
	assert.False(t, g.ShouldSync("cluster1", false))
}

package poll

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/slurmdash/slurmdash/pkg/api"
)

// SnapshotCache keeps the last good status response per host. It backs
// cache-only mode and hydrates the store on startup; records served from it
// carry the lowest authority so any live source overwrites them.
type SnapshotCache struct {
	cache *gocache.Cache
}

func NewSnapshotCache(retention time.Duration) *SnapshotCache {
	return &SnapshotCache{
		cache: gocache.New(retention, retention),
	}
}

func (c *SnapshotCache) Store(host string, response *api.StatusResponse) {
	c.cache.SetDefault(host, response)
}

func (c *SnapshotCache) Get(host string) (*api.StatusResponse, bool) {
	value, found := c.cache.Get(host)
	if !found {
		return nil, false
	}
	return value.(*api.StatusResponse), true
}

func (c *SnapshotCache) Hosts() []string {
	items := c.cache.Items()
	hosts := make([]string, 0, len(items))
	for host := range items {
		hosts = append(hosts, host)
	}
	return hosts
}

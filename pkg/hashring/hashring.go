// Package hashring maps user identities onto configuration service
// replicas. Each replica owns its own database, so a user must keep
// landing on the same one while the replica set is unchanged.
package hashring

import (
	"sort"
	"strconv"

	xx "github.com/cespare/xxhash/v2"
)

// DefaultReplicas is the number of virtual nodes per endpoint.
const DefaultReplicas = 64

type vnode struct {
	hash     uint64
	endpoint string
}

type Ring struct {
	vnodes []vnode
}

// New builds a ring over endpoints. Duplicate endpoints are ignored.
func New(endpoints []string, replicas int) *Ring {
	if replicas <= 0 {
		replicas = DefaultReplicas
	}
	r := &Ring{}
	seen := map[string]struct{}{}
	for _, ep := range endpoints {
		if _, ok := seen[ep]; ok {
			continue
		}
		seen[ep] = struct{}{}
		for i := 0; i < replicas; i++ {
			h := xx.Sum64String(ep + "#" + strconv.Itoa(i))
			r.vnodes = append(r.vnodes, vnode{hash: h, endpoint: ep})
		}
	}
	sort.Slice(r.vnodes, func(i, j int) bool { return r.vnodes[i].hash < r.vnodes[j].hash })
	return r
}

// Pick returns the endpoint owning key, or "" for an empty ring.
func (r *Ring) Pick(key string) string {
	if len(r.vnodes) == 0 {
		return ""
	}
	h := xx.Sum64String(key)
	i := sort.Search(len(r.vnodes), func(i int) bool { return r.vnodes[i].hash >= h })
	if i == len(r.vnodes) {
		i = 0
	}
	return r.vnodes[i].endpoint
}

func (r *Ring) Len() int { return len(r.vnodes) }

package remote

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/Songmu/flextime"
)

// Specification describes a function published by a Handler.
type Specification struct {
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Parameters     json.RawMessage `json:"parameters"`
	WorkerEndpoint string          `json:"worker_endpoint"`
}

var DefaultSpecificationPath = "/.well-known/concierge-function"

type cacheEntry struct {
	spec     Specification
	cachedAt time.Time
}

// SpecificationCache keeps fetched specifications per endpoint until they
// expire.
type SpecificationCache struct {
	mu             sync.Mutex
	entries        map[string]cacheEntry
	expireDuration time.Duration
}

func NewSpecificationCache(expireDuration time.Duration) *SpecificationCache {
	return &SpecificationCache{
		entries:        make(map[string]cacheEntry),
		expireDuration: expireDuration,
	}
}

func (sc *SpecificationCache) Get(endpoint string) (Specification, bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	e, ok := sc.entries[endpoint]
	if !ok {
		return Specification{}, false
	}
	if flextime.Since(e.cachedAt) > sc.expireDuration {
		delete(sc.entries, endpoint)
		return Specification{}, false
	}
	return e.spec, true
}

func (sc *SpecificationCache) Set(endpoint string, spec Specification) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.entries[endpoint] = cacheEntry{spec: spec, cachedAt: flextime.Now()}
}

func (sc *SpecificationCache) Delete(endpoint string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	delete(sc.entries, endpoint)
}

var DefaultSpecificationCache = NewSpecificationCache(15 * time.Minute)

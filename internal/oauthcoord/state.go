package oauthcoord

import (
	"sync"
	"time"
)

// StateRecord is the server-side half of the §4.4 state, keyed by the
// opaque `state` value handed to the provider.
type StateRecord struct {
	Provider     string
	CodeVerifier string
	Nonce        string
	ExpiresAt    time.Time
}

// stateTable is the in-memory map<state → StateRecord>, grounded on the
// teacher's TenantAuthCache (internal/auth/tenant_headers.go): a
// mutex-protected map with a background goroutine sweeping expired entries.
type stateTable struct {
	mu      sync.Mutex
	records map[string]StateRecord
}

func newStateTable() *stateTable {
	t := &stateTable{records: make(map[string]StateRecord)}
	go t.sweep()
	return t
}

func (t *stateTable) put(state string, rec StateRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records[state] = rec
}

// takeOneShot looks up and deletes state in one step, spec §4.4 callback
// step 2: "look up and delete the in-memory state record (one-shot)".
func (t *stateTable) takeOneShot(state string) (StateRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[state]
	if !ok {
		return StateRecord{}, false
	}
	delete(t.records, state)
	if time.Now().After(rec.ExpiresAt) {
		return StateRecord{}, false
	}
	return rec, true
}

func (t *stateTable) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		t.mu.Lock()
		now := time.Now()
		for k, v := range t.records {
			if now.After(v.ExpiresAt) {
				delete(t.records, k)
			}
		}
		t.mu.Unlock()
	}
}

// deviceEntry is the device-flow's deviceCode → claim record, spec §4.4
// "device flow".
type deviceEntry struct {
	OrganizationID string
	UserID         string
	Provider       string
	Name           string
	Token          string // empty until a poller supplies a value
	ExpiresAt      time.Time
}

type deviceTable struct {
	mu      sync.Mutex
	entries map[string]deviceEntry
}

func newDeviceTable() *deviceTable {
	t := &deviceTable{entries: make(map[string]deviceEntry)}
	go t.sweep()
	return t
}

func (t *deviceTable) put(code string, e deviceEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[code] = e
}

func (t *deviceTable) get(code string) (deviceEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[code]
	if !ok || time.Now().After(e.ExpiresAt) {
		return deviceEntry{}, false
	}
	return e, true
}

func (t *deviceTable) setToken(code, token string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[code]
	if !ok {
		return false
	}
	e.Token = token
	t.entries[code] = e
	return true
}

func (t *deviceTable) delete(code string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, code)
}

func (t *deviceTable) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		t.mu.Lock()
		now := time.Now()
		for k, v := range t.entries {
			if now.After(v.ExpiresAt) {
				delete(t.entries, k)
			}
		}
		t.mu.Unlock()
	}
}

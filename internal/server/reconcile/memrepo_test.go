package reconcile

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/dmitrijs2005/shopsync/internal/common"
	"github.com/dmitrijs2005/shopsync/internal/proto"
	"github.com/dmitrijs2005/shopsync/internal/records"
	"github.com/dmitrijs2005/shopsync/internal/server/repositories/syncrecords"
)

// memRepo is an in-memory syncrecords.Repository with the same
// compare-and-set contract as the Postgres one.
type memRepo[P records.Payload] struct {
	mu      sync.Mutex
	rows    map[int64]records.Record[P]
	origins map[syncrecords.Origin]int64
	changed map[int64]int64
	next    int64

	// casMisses makes the next n conditional writes miss.
	casMisses int
	failWrite error
	// beforeWrite runs before every conditional write, outside the lock.
	beforeWrite func()
}

func newMemRepo[P records.Payload]() *memRepo[P] {
	return &memRepo[P]{
		rows:    map[int64]records.Record[P]{},
		origins: map[syncrecords.Origin]int64{},
		changed: map[int64]int64{},
	}
}

func (m *memRepo[P]) Get(_ context.Context, owner string, id int64) (*records.Record[P], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.OwnerID != owner {
		return nil, common.ErrorNotFound
	}
	return &r, nil
}

func (m *memRepo[P]) FindByOrigin(_ context.Context, owner string, o syncrecords.Origin) (*records.Record[P], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.Device == "" {
		return nil, common.ErrorNotFound
	}
	id, ok := m.origins[o]
	if !ok || m.rows[id].OwnerID != owner {
		return nil, common.ErrorNotFound
	}
	r := m.rows[id]
	return &r, nil
}

func (m *memRepo[P]) hook() error {
	if m.beforeWrite != nil {
		m.beforeWrite()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite != nil {
		return m.failWrite
	}
	return nil
}

func (m *memRepo[P]) miss() bool {
	if m.casMisses > 0 {
		m.casMisses--
		return true
	}
	return false
}

func (m *memRepo[P]) Insert(_ context.Context, r records.Record[P], o syncrecords.Origin, at int64) (int64, bool, error) {
	if err := m.hook(); err != nil {
		return 0, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.Device != "" {
		if _, dup := m.origins[o]; dup {
			return 0, false, nil
		}
	}
	m.next++
	r.ServerID = m.next
	r.LocalID = 0
	r.SyncState = records.Synced
	m.rows[r.ServerID] = r
	m.changed[r.ServerID] = at
	if o.Device != "" {
		m.origins[o] = r.ServerID
	}
	return r.ServerID, true, nil
}

func (m *memRepo[P]) CompareAndUpdate(_ context.Context, r records.Record[P], expected, at int64) (bool, error) {
	if err := m.hook(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rows[r.ServerID]
	if !ok || cur.OwnerID != r.OwnerID || cur.LastModifiedAt != expected || m.miss() {
		return false, nil
	}
	cur.Payload = r.Payload
	cur.LastModifiedAt = r.LastModifiedAt
	cur.Tombstoned = false
	m.rows[r.ServerID] = cur
	m.changed[r.ServerID] = at
	return true, nil
}

func (m *memRepo[P]) CompareAndTombstone(_ context.Context, owner string, id, lma, expected, at int64) (bool, error) {
	if err := m.hook(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rows[id]
	if !ok || cur.OwnerID != owner || cur.LastModifiedAt != expected || m.miss() {
		return false, nil
	}
	cur.Tombstoned = true
	cur.LastModifiedAt = lma
	m.rows[id] = cur
	m.changed[id] = at
	return true, nil
}

func (m *memRepo[P]) ChangedSince(_ context.Context, owner string, wm *int64) ([]records.Record[P], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []records.Record[P]
	for _, r := range m.rows {
		if r.OwnerID != owner || (wm != nil && r.LastModifiedAt <= *wm && m.changed[r.ServerID] <= *wm) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastModifiedAt != out[j].LastModifiedAt {
			return out[i].LastModifiedAt < out[j].LastModifiedAt
		}
		return out[i].ServerID < out[j].ServerID
	})
	return out, nil
}

func (m *memRepo[P]) snapshot() map[int64]records.Record[P] {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]records.Record[P], len(m.rows))
	for k, v := range m.rows {
		out[k] = v
	}
	return out
}

type published struct {
	owner  string
	kind   records.Kind
	device string
	ev     *proto.SyncEvent
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (f *fakePublisher) Publish(owner string, kind records.Kind, device string, ev *proto.SyncEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, published{owner, kind, device, ev})
}

var errDiskFull = errors.New("disk full")

// Package memdb is an in memory store.Store for tests and dry runs.
package memdb

import (
	"context"
	"sort"
	"sync"

	"github.com/drand/ceremony/ceremony"
	"github.com/drand/ceremony/store"
)

// Store keeps encoded records in maps keyed by their store key, so callers
// never share memory with it.
type Store struct {
	mtx         sync.RWMutex
	assignments map[string][]byte
	judgements  map[string][]byte
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		assignments: make(map[string][]byte),
		judgements:  make(map[string][]byte),
	}
}

func (m *Store) PutAssignment(_ context.Context, a *ceremony.CommunityAssignment) error {
	buff, err := store.MarshalAssignment(a)
	if err != nil {
		return err
	}
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.assignments[string(store.AssignmentKey(a.Cindex, a.Community))] = buff
	return nil
}

func (m *Store) Assignment(_ context.Context, cindex uint32, cid string) (*ceremony.CommunityAssignment, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	v, ok := m.assignments[string(store.AssignmentKey(cindex, cid))]
	if !ok {
		return nil, store.ErrNotFound
	}
	return store.UnmarshalAssignment(v)
}

func (m *Store) Assignments(_ context.Context, cindex uint32) ([]*ceremony.CommunityAssignment, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	var out []*ceremony.CommunityAssignment
	for _, k := range sortedKeys(m.assignments) {
		if store.KeyCindex([]byte(k)) != cindex {
			continue
		}
		a, err := store.UnmarshalAssignment(m.assignments[k])
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *Store) PutJudgement(_ context.Context, j *store.MeetupJudgement) error {
	buff, err := store.MarshalJudgement(j)
	if err != nil {
		return err
	}
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.judgements[string(store.JudgementKey(j.Cindex, j.Community, j.Meetup))] = buff
	return nil
}

func (m *Store) Judgement(_ context.Context, cindex uint32, cid string, meetup uint64) (*store.MeetupJudgement, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	v, ok := m.judgements[string(store.JudgementKey(cindex, cid, meetup))]
	if !ok {
		return nil, store.ErrNotFound
	}
	return store.UnmarshalJudgement(v)
}

func (m *Store) Judgements(_ context.Context, cindex uint32, cid string) ([]*store.MeetupJudgement, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	var out []*store.MeetupJudgement
	for _, k := range sortedKeys(m.judgements) {
		if !store.IsJudgementOf([]byte(k), cindex, cid) {
			continue
		}
		j, err := store.UnmarshalJudgement(m.judgements[k])
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, nil
}

func (m *Store) Purge(_ context.Context, below uint32) (int, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	var deleted int
	for _, records := range []map[string][]byte{m.assignments, m.judgements} {
		for k := range records {
			if store.KeyCindex([]byte(k)) < below {
				delete(records, k)
				deleted++
			}
		}
	}
	return deleted, nil
}

func (m *Store) Close(context.Context) error {
	return nil
}

// sortedKeys returns the keys in byte order, the order bolt iterates in.
func sortedKeys(records map[string][]byte) []string {
	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Package boltdb implements store.Store on top of the bbolt key value store.
// Records are kept hexjson encoded, one bucket per record kind.
package boltdb

import (
	"bytes"
	"context"
	"path"
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/drand/ceremony/ceremony"
	"github.com/drand/ceremony/log"
	"github.com/drand/ceremony/store"
)

// FileName is the name of the file boltdb writes to.
const FileName = "ceremony.db"

// OpenPerm is the permission of the database file.
const OpenPerm = 0660

var (
	assignmentBucket = []byte("assignments")
	judgementBucket  = []byte("judgements")
)

// Store implements store.Store with a bolt database.
//
//nolint:gocritic
type Store struct {
	sync.Mutex
	db *bolt.DB

	log log.Logger
}

// NewStore opens, or creates, the database in folder.
func NewStore(ctx context.Context, l log.Logger, folder string, opts *bolt.Options) (*Store, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	db, err := bolt.Open(path.Join(folder, FileName), OpenPerm, opts)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{assignmentBucket, judgementBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, log: l.Named("boltdb")}, nil
}

func (b *Store) PutAssignment(ctx context.Context, a *ceremony.CommunityAssignment) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	buff, err := store.MarshalAssignment(a)
	if err != nil {
		return err
	}
	b.Lock()
	defer b.Unlock()
	err = b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(assignmentBucket).Put(store.AssignmentKey(a.Cindex, a.Community), buff)
	})
	if err != nil {
		b.log.Debugw("storing assignment", "cindex", a.Cindex, "community", a.Community, "err", err)
	}
	return err
}

func (b *Store) Assignment(ctx context.Context, cindex uint32, cid string) (*ceremony.CommunityAssignment, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var a *ceremony.CommunityAssignment
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(assignmentBucket).Get(store.AssignmentKey(cindex, cid))
		if v == nil {
			return store.ErrNotFound
		}
		var err error
		a, err = store.UnmarshalAssignment(v)
		return err
	})
	return a, err
}

func (b *Store) Assignments(ctx context.Context, cindex uint32) ([]*ceremony.CommunityAssignment, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var out []*ceremony.CommunityAssignment
	prefix := store.CindexPrefix(cindex)
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(assignmentBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			a, err := store.UnmarshalAssignment(v)
			if err != nil {
				return err
			}
			out = append(out, a)
		}
		return nil
	})
	return out, err
}

func (b *Store) PutJudgement(ctx context.Context, j *store.MeetupJudgement) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	buff, err := store.MarshalJudgement(j)
	if err != nil {
		return err
	}
	b.Lock()
	defer b.Unlock()
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(judgementBucket).Put(store.JudgementKey(j.Cindex, j.Community, j.Meetup), buff)
	})
}

func (b *Store) Judgement(ctx context.Context, cindex uint32, cid string, meetup uint64) (*store.MeetupJudgement, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var j *store.MeetupJudgement
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(judgementBucket).Get(store.JudgementKey(cindex, cid, meetup))
		if v == nil {
			return store.ErrNotFound
		}
		var err error
		j, err = store.UnmarshalJudgement(v)
		return err
	})
	return j, err
}

func (b *Store) Judgements(ctx context.Context, cindex uint32, cid string) ([]*store.MeetupJudgement, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var out []*store.MeetupJudgement
	prefix := store.AssignmentKey(cindex, cid)
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(judgementBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if !store.IsJudgementOf(k, cindex, cid) {
				continue
			}
			j, err := store.UnmarshalJudgement(v)
			if err != nil {
				return err
			}
			out = append(out, j)
		}
		return nil
	})
	return out, err
}

func (b *Store) Purge(ctx context.Context, below uint32) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	b.Lock()
	defer b.Unlock()
	var deleted int
	err := b.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{assignmentBucket, judgementBucket} {
			bucket := tx.Bucket(name)
			var keys [][]byte
			c := bucket.Cursor()
			for k, _ := c.First(); k != nil && store.KeyCindex(k) < below; k, _ = c.Next() {
				keys = append(keys, append([]byte(nil), k...))
			}
			// deleting while iterating skips keys with a bolt cursor
			for _, k := range keys {
				if err := bucket.Delete(k); err != nil {
					return err
				}
			}
			deleted += len(keys)
		}
		return nil
	})
	if err != nil {
		b.log.Errorw("purging", "below", below, "err", err)
		return 0, err
	}
	return deleted, nil
}

func (b *Store) Close(context.Context) error {
	err := b.db.Close()
	if err != nil {
		b.log.Errorw("closing", "err", err)
	}
	return err
}

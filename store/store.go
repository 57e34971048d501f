// Package store defines how assignments and meetup judgements are persisted
// between the phases of a ceremony cycle.
package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"

	json "github.com/nikkolasg/hexjson"

	"github.com/drand/ceremony/ceremony"
	"github.com/drand/ceremony/validation"
)

// ErrNotFound is returned when no record is stored under the requested key.
var ErrNotFound = errors.New("record not found")

// Store persists community assignments and meetup judgements.
type Store interface {
	// PutAssignment stores an assignment, overwriting any previous one of
	// the same cycle and community.
	PutAssignment(ctx context.Context, a *ceremony.CommunityAssignment) error
	Assignment(ctx context.Context, cindex uint32, cid string) (*ceremony.CommunityAssignment, error)
	// Assignments returns every assignment of a cycle ordered by community id.
	Assignments(ctx context.Context, cindex uint32) ([]*ceremony.CommunityAssignment, error)
	PutJudgement(ctx context.Context, j *MeetupJudgement) error
	Judgement(ctx context.Context, cindex uint32, cid string, meetup uint64) (*MeetupJudgement, error)
	// Judgements returns the judgements of a community ordered by meetup.
	Judgements(ctx context.Context, cindex uint32, cid string) ([]*MeetupJudgement, error)
	// Purge deletes every record of a cycle below the given one and returns
	// how many were deleted.
	Purge(ctx context.Context, below uint32) (int, error)
	Close(ctx context.Context) error
}

// MeetupJudgement is the judgement of one meetup together with the roster its
// indices refer to.
type MeetupJudgement struct {
	Cindex    uint32               `json:"cindex"`
	Community string               `json:"community"`
	Meetup    uint64               `json:"meetup"`
	Roster    []string             `json:"roster"`
	Judgement validation.Judgement `json:"judgement"`
}

// Legit returns the account ids of the legit participants.
func (m *MeetupJudgement) Legit() []string {
	out := make([]string, 0, len(m.Judgement.Legit))
	for _, i := range m.Judgement.Legit {
		if i >= 0 && i < len(m.Roster) {
			out = append(out, m.Roster[i])
		}
	}
	return out
}

// AssignmentKey is the key of an assignment: the cycle index in big endian
// followed by the community id.
func AssignmentKey(cindex uint32, cid string) []byte {
	key := make([]byte, 4+len(cid))
	binary.BigEndian.PutUint32(key, cindex)
	copy(key[4:], cid)
	return key
}

// JudgementKey is the assignment key followed by the meetup index in big endian.
func JudgementKey(cindex uint32, cid string, meetup uint64) []byte {
	key := make([]byte, 4+len(cid)+8)
	binary.BigEndian.PutUint32(key, cindex)
	copy(key[4:], cid)
	binary.BigEndian.PutUint64(key[4+len(cid):], meetup)
	return key
}

// CindexPrefix returns the key prefix shared by every record of a cycle.
func CindexPrefix(cindex uint32) []byte {
	var p [4]byte
	binary.BigEndian.PutUint32(p[:], cindex)
	return p[:]
}

// KeyCindex returns the cycle index a key belongs to.
func KeyCindex(key []byte) uint32 {
	if len(key) < 4 {
		return 0
	}
	return binary.BigEndian.Uint32(key)
}

// IsJudgementOf reports whether key is the key of a judgement of community
// cid in cycle cindex. Community ids sharing a prefix share key prefixes, so
// the length is checked too.
func IsJudgementOf(key []byte, cindex uint32, cid string) bool {
	prefix := AssignmentKey(cindex, cid)
	return len(key) == len(prefix)+8 && bytes.HasPrefix(key, prefix)
}

// MarshalAssignment encodes an assignment record.
func MarshalAssignment(a *ceremony.CommunityAssignment) ([]byte, error) {
	return json.Marshal(a)
}

// UnmarshalAssignment decodes an assignment record.
func UnmarshalAssignment(buff []byte) (*ceremony.CommunityAssignment, error) {
	a := new(ceremony.CommunityAssignment)
	return a, json.Unmarshal(buff, a)
}

// MarshalJudgement encodes a judgement record.
func MarshalJudgement(j *MeetupJudgement) ([]byte, error) {
	return json.Marshal(j)
}

// UnmarshalJudgement decodes a judgement record.
func UnmarshalJudgement(buff []byte) (*MeetupJudgement, error) {
	j := new(MeetupJudgement)
	return j, json.Unmarshal(buff, j)
}

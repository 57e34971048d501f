package core

import (
	"context"

	"github.com/drand/ceremony/log"
)

// Reward lists the legit participants of one meetup.
type Reward struct {
	Cindex    uint32   `json:"cindex"`
	Community string   `json:"community"`
	Meetup    uint64   `json:"meetup"`
	Accounts  []string `json:"accounts"`
	// Early is set when the meetup was unambiguous enough to reward
	// before the attesting phase closes.
	Early bool `json:"early"`
}

// Rewarder hands out rewards, typically by submitting them to a ledger.
type Rewarder interface {
	Reward(ctx context.Context, r *Reward) error
}

// RewarderFunc adapts a function to the Rewarder interface.
type RewarderFunc func(ctx context.Context, r *Reward) error

// Reward implements Rewarder.
func (f RewarderFunc) Reward(ctx context.Context, r *Reward) error {
	return f(ctx, r)
}

type logRewarder struct {
	l log.Logger
}

func (r *logRewarder) Reward(_ context.Context, rw *Reward) error {
	r.l.Infow("reward", "cindex", rw.Cindex, "community", rw.Community,
		"meetup", rw.Meetup, "accounts", rw.Accounts, "early", rw.Early)
	return nil
}

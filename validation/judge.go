package validation

import "sort"

// ParticipantJudgements judges one meetup. participants lists the roster
// indices under judgement; votes and attestations are indexed by roster index.
//
// Participants without a vote are excluded first, then the majority vote is
// determined among the others and dissenting voters are excluded. Finally
// attestations are pruned to a fixpoint: while the group of participants with
// the fewest incoming or outgoing attestations is below threshold(remaining),
// that whole group is excluded and the counts are recomputed without it.
func ParticipantJudgements(participants []int, votes []uint32, attestations [][]int, threshold ThresholdFn) (*Judgement, error) {
	participants = dedup(participants)
	j, vote, unanimous, err := judgeVotes(participants, votes, attestations)
	if err != nil {
		return nil, err
	}
	excluded := PruneAttestations(j.Legit, attestations, threshold)
	j.exclude(excluded)
	j.EarlyRewardsPossible = EarlyRewardsPossible(j.Legit, attestations, len(participants), vote, unanimous)
	return j, nil
}

// UpdatedParticipants judges one meetup in a single pass: after the vote
// exclusions, the attestation threshold is evaluated once on the remaining
// count, then participants giving too few attestations are excluded, then
// participants receiving too few from those still remaining.
func UpdatedParticipants(participants []int, votes []uint32, attestations [][]int, threshold ThresholdFn) (*Judgement, error) {
	participants = dedup(participants)
	j, vote, unanimous, err := judgeVotes(participants, votes, attestations)
	if err != nil {
		return nil, err
	}
	t := threshold(len(j.Legit))
	j.exclude(ExcludedOutgoing(j.Legit, attestations, t))
	j.exclude(ExcludedIncoming(j.Legit, attestations, t))
	j.EarlyRewardsPossible = EarlyRewardsPossible(j.Legit, attestations, len(participants), vote, unanimous)
	return j, nil
}

// judgeVotes applies the no vote and wrong vote exclusions.
func judgeVotes(participants []int, votes []uint32, attestations [][]int) (*Judgement, uint32, bool, error) {
	for _, i := range participants {
		if i < 0 || i >= len(votes) || i >= len(attestations) {
			return nil, 0, false, ErrIndexOutOfBounds
		}
	}
	j := newJudgement(participants)

	noVote, err := ExcludedNoVote(j.Legit, votes)
	if err != nil {
		return nil, 0, false, err
	}
	j.exclude(noVote)

	vote, _, unanimous, err := MajorityVote(j.Legit, votes)
	if err != nil {
		return nil, 0, false, err
	}

	wrongVote, err := ExcludedWrongVote(j.Legit, votes, vote)
	if err != nil {
		return nil, 0, false, err
	}
	j.exclude(wrongVote)
	return j, vote, unanimous, nil
}

// ExcludedNoVote returns the participants whose vote is 0. They must go before
// the majority is computed, else absentees could make 0 the majority.
func ExcludedNoVote(participants []int, votes []uint32) ([]ExcludedParticipant, error) {
	var excluded []ExcludedParticipant
	for _, i := range participants {
		if i < 0 || i >= len(votes) {
			return nil, ErrIndexOutOfBounds
		}
		if votes[i] == 0 {
			excluded = append(excluded, ExcludedParticipant{Index: i, Reason: NoVote})
		}
	}
	return excluded, nil
}

// ExcludedWrongVote returns the participants whose vote differs from vote.
func ExcludedWrongVote(participants []int, votes []uint32, vote uint32) ([]ExcludedParticipant, error) {
	var excluded []ExcludedParticipant
	for _, i := range participants {
		if i < 0 || i >= len(votes) {
			return nil, ErrIndexOutOfBounds
		}
		if votes[i] != vote {
			excluded = append(excluded, ExcludedParticipant{Index: i, Reason: WrongVote})
		}
	}
	return excluded, nil
}

// MajorityVote returns the most frequent vote among participants, its support
// and whether every participant cast it.
func MajorityVote(participants []int, votes []uint32) (vote uint32, count int, unanimous bool, err error) {
	support := make(map[uint32]int)
	for _, i := range participants {
		if i < 0 || i >= len(votes) {
			return 0, 0, false, ErrIndexOutOfBounds
		}
		support[votes[i]]++
	}
	if len(support) == 0 {
		return 0, 0, false, ErrBallotEmpty
	}

	type candidate struct {
		vote  uint32
		count int
	}
	candidates := make([]candidate, 0, len(support))
	for v, c := range support {
		candidates = append(candidates, candidate{v, c})
	}
	sort.Slice(candidates, func(a, b int) bool {
		if candidates[a].count != candidates[b].count {
			return candidates[a].count > candidates[b].count
		}
		return candidates[a].vote < candidates[b].vote
	})

	top := candidates[0]
	if top.count < MinDependableVotes {
		return 0, 0, false, ErrNoDependableVote
	}
	if len(candidates) > 1 && candidates[1].count == top.count {
		return 0, 0, false, ErrNoDependableVote
	}
	return top.vote, top.count, len(candidates) == 1, nil
}

func dedup(participants []int) []int {
	seen := make(map[int]bool, len(participants))
	out := make([]int, 0, len(participants))
	for _, p := range participants {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

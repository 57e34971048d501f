package validation

// graph counts attestations among a set of remaining participants. Self
// attestations, duplicates and attestations of non members are ignored.
type graph struct {
	members      []int
	isMember     map[int]bool
	attestations [][]int
}

func newGraph(members []int, attestations [][]int) *graph {
	g := &graph{
		members:      members,
		isMember:     make(map[int]bool, len(members)),
		attestations: attestations,
	}
	for _, m := range members {
		g.isMember[m] = true
	}
	return g
}

func (g *graph) attested(p int) map[int]bool {
	out := make(map[int]bool)
	if p < 0 || p >= len(g.attestations) {
		return out
	}
	for _, q := range g.attestations[p] {
		if q != p && g.isMember[q] {
			out[q] = true
		}
	}
	return out
}

func (g *graph) outgoing() map[int]int {
	counts := make(map[int]int, len(g.members))
	for _, p := range g.members {
		counts[p] = len(g.attested(p))
	}
	return counts
}

func (g *graph) incoming() map[int]int {
	counts := make(map[int]int, len(g.members))
	for _, p := range g.members {
		counts[p] = 0
	}
	for _, p := range g.members {
		for q := range g.attested(p) {
			counts[q]++
		}
	}
	return counts
}

// minGroup returns the smallest count and the members having it, in member order.
func (g *graph) minGroup(counts map[int]int) (int, []int) {
	min := -1
	for _, p := range g.members {
		if c := counts[p]; min < 0 || c < min {
			min = c
		}
	}
	var group []int
	for _, p := range g.members {
		if counts[p] == min {
			group = append(group, p)
		}
	}
	return min, group
}

func without(members []int, excluded []int) []int {
	drop := make(map[int]bool, len(excluded))
	for _, e := range excluded {
		drop[e] = true
	}
	out := make([]int, 0, len(members))
	for _, m := range members {
		if !drop[m] {
			out = append(out, m)
		}
	}
	return out
}

func below(members []int, counts map[int]int, threshold int, reason ExclusionReason) []ExcludedParticipant {
	var excluded []ExcludedParticipant
	for _, p := range members {
		if counts[p] < threshold {
			excluded = append(excluded, ExcludedParticipant{Index: p, Reason: reason})
		}
	}
	return excluded
}

// ExcludedOutgoing returns the participants attesting fewer than threshold
// other participants.
func ExcludedOutgoing(participants []int, attestations [][]int, threshold int) []ExcludedParticipant {
	return below(participants, newGraph(participants, attestations).outgoing(), threshold, TooFewOutgoingAttestations)
}

// ExcludedIncoming returns the participants attested by fewer than threshold
// other participants.
func ExcludedIncoming(participants []int, attestations [][]int, threshold int) []ExcludedParticipant {
	return below(participants, newGraph(participants, attestations).incoming(), threshold, TooFewIncomingAttestations)
}

// PruneAttestations excludes, one group at a time, the participants with the
// fewest attestations until every remaining participant gives and receives at
// least threshold(remaining). Each round drops the incoming group when its
// count is strictly smaller than the outgoing one, else the outgoing group.
func PruneAttestations(participants []int, attestations [][]int, threshold ThresholdFn) []ExcludedParticipant {
	var excluded []ExcludedParticipant
	remaining := participants
	for len(remaining) > 0 {
		g := newGraph(remaining, attestations)
		minOut, outGroup := g.minGroup(g.outgoing())
		minIn, inGroup := g.minGroup(g.incoming())
		t := threshold(len(remaining))

		var group []int
		var reason ExclusionReason
		switch {
		case minIn < minOut && minIn < t:
			group, reason = inGroup, TooFewIncomingAttestations
		case minIn >= minOut && minOut < t:
			group, reason = outGroup, TooFewOutgoingAttestations
		default:
			return excluded
		}
		for _, p := range group {
			excluded = append(excluded, ExcludedParticipant{Index: p, Reason: reason})
		}
		remaining = without(remaining, group)
	}
	return excluded
}

// VoteYieldsMajority reports whether vote is more than half of the meetup size.
func VoteYieldsMajority(meetupSize int, vote uint32) bool {
	return 2*uint64(vote) > uint64(meetupSize)
}

// AttestationsMatchVote reports whether every participant attested exactly
// vote-1 others among participants.
func AttestationsMatchVote(participants []int, attestations [][]int, vote uint32) bool {
	if vote == 0 {
		return false
	}
	g := newGraph(participants, attestations)
	for _, p := range participants {
		if p < 0 || p >= len(attestations) || len(g.attested(p)) != int(vote)-1 {
			return false
		}
	}
	return true
}

// AttestationGraphFullyConnected reports whether every participant attested
// every other one.
func AttestationGraphFullyConnected(participants []int, attestations [][]int) bool {
	g := newGraph(participants, attestations)
	for _, p := range participants {
		if len(g.attested(p)) != len(participants)-1 {
			return false
		}
	}
	return true
}

// EarlyRewardsPossible reports whether the outcome of a meetup cannot change
// anymore before the attesting phase ends: every voter cast the same vote, it
// is a majority of the meetup, exactly vote participants are legit and they
// all attested each other. unanimous is taken over every voter, including
// those excluded afterwards.
func EarlyRewardsPossible(legit []int, attestations [][]int, meetupSize int, vote uint32, unanimous bool) bool {
	return unanimous &&
		len(legit) == int(vote) &&
		VoteYieldsMajority(meetupSize, vote) &&
		AttestationsMatchVote(legit, attestations, vote) &&
		AttestationGraphFullyConnected(legit, attestations)
}

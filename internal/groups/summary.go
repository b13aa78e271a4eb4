package groups

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fjordchat/fjord/internal/event"
)

// Summarize renders a group's user events as one human-readable line, e.g.
// "Ana and Bo joined, Cy changed the topic ×2". Users with identical merged
// transition sequences share one name list; sequences are merged per
// MergeAdjacent and the creator's join is implied by room creation and
// dropped.
func Summarize(users map[event.UserID][]UserEvent, creator event.UserID, nameCap int) string {
	if nameCap <= 0 {
		nameCap = DefaultNameCap
	}

	type userSeq struct {
		name       string
		seq        []Transition
		firstIndex int
	}

	var seqs []userSeq
	for user, events := range users {
		if len(events) == 0 {
			continue
		}
		sorted := append([]UserEvent(nil), events...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

		raw := make([]Transition, 0, len(sorted))
		for _, ue := range sorted {
			raw = append(raw, ue.Transition)
		}
		merged := MergeAdjacent(raw)
		if user == creator {
			merged = dropJoins(merged)
		}
		if len(merged) == 0 {
			continue
		}
		seqs = append(seqs, userSeq{
			name:       nameForUser(user, sorted),
			seq:        merged,
			firstIndex: sorted[0].Index,
		})
	}
	if len(seqs) == 0 {
		return ""
	}
	sort.Slice(seqs, func(i, j int) bool {
		if seqs[i].firstIndex != seqs[j].firstIndex {
			return seqs[i].firstIndex < seqs[j].firstIndex
		}
		return seqs[i].name < seqs[j].name
	})

	// Group users sharing an identical merged sequence, preserving the
	// order of first appearance.
	type seqGroup struct {
		names []string
		seq   []Transition
	}
	var ordered []*seqGroup
	byKey := make(map[string]*seqGroup)
	for _, us := range seqs {
		key := seqKey(us.seq)
		if g, ok := byKey[key]; ok {
			g.names = append(g.names, us.name)
			continue
		}
		g := &seqGroup{names: []string{us.name}, seq: us.seq}
		byKey[key] = g
		ordered = append(ordered, g)
	}

	parts := make([]string, 0, len(ordered))
	for _, g := range ordered {
		parts = append(parts, FormatNames(g.names, nameCap)+" "+strings.Join(collapseRuns(g.seq), ", "))
	}
	return strings.Join(parts, ", ")
}

// MergeAdjacent merges adjacent transition pairs per the fixed rules:
// Joined immediately followed by Left becomes JoinedAndLeft, Left
// immediately followed by Joined becomes LeftAndJoined. All other adjacent
// pairs remain distinct. Idempotent.
func MergeAdjacent(seq []Transition) []Transition {
	out := make([]Transition, 0, len(seq))
	for _, t := range seq {
		if n := len(out); n > 0 {
			prev := out[n-1]
			switch {
			case prev == TransitionJoined && t == TransitionLeft:
				out[n-1] = TransitionJoinedAndLeft
				continue
			case prev == TransitionLeft && t == TransitionJoined:
				out[n-1] = TransitionLeftAndJoined
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

// collapseRuns renders the sequence with runs of identical transitions
// collapsed into "<description> ×N".
func collapseRuns(seq []Transition) []string {
	var out []string
	for i := 0; i < len(seq); {
		j := i + 1
		for j < len(seq) && seq[j] == seq[i] {
			j++
		}
		desc := Describe(seq[i])
		if n := j - i; n > 1 {
			desc = fmt.Sprintf("%s ×%d", desc, n)
		}
		out = append(out, desc)
		i = j
	}
	return out
}

// dropJoins removes plain Joined entries; room creation already implies the
// creator joined.
func dropJoins(seq []Transition) []Transition {
	out := seq[:0]
	for _, t := range seq {
		if t == TransitionJoined {
			continue
		}
		out = append(out, t)
	}
	return out
}

// FormatNames renders a name list with fixed English pluralization rules:
// one name verbatim, two as "A and B", up to cap with an Oxford comma, and
// past the cap as "A, B, and N others".
func FormatNames(names []string, cap int) string {
	switch n := len(names); {
	case n == 0:
		return ""
	case n == 1:
		return names[0]
	case n == 2:
		return names[0] + " and " + names[1]
	case cap > 0 && n > cap:
		shown := cap - 1
		if shown < 1 {
			shown = 1
		}
		return fmt.Sprintf("%s, and %d others", strings.Join(names[:shown], ", "), n-cap)
	default:
		return strings.Join(names[:n-1], ", ") + ", and " + names[n-1]
	}
}

func seqKey(seq []Transition) string {
	parts := make([]string, len(seq))
	for i, t := range seq {
		parts[i] = string(t)
	}
	return strings.Join(parts, "|")
}

// nameForUser picks the display name recorded for the user, preferring
// events they sent themselves, falling back to the bare user id.
func nameForUser(user event.UserID, sorted []UserEvent) string {
	for _, ue := range sorted {
		// Membership events name the sender, not the target; only trust
		// the display name when the user acted on themselves.
		if ue.Sender == user && ue.DisplayName != "" {
			return ue.DisplayName
		}
	}
	return string(user)
}

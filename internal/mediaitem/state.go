package mediaitem

import "time"

// DeriveState computes the state an item's stored fields place it in,
// per SPEC_FULL.md §4.2/§3. It is pure and never consults the database -
// Store.Upsert calls it to keep last_state consistent with every write
// (Testable Property 8).
//
// Failed is not derivable from field progression alone (nothing in the
// data model distinguishes "stuck" from "not yet attempted"), so the one
// exception: if the item arrives already marked Failed, Failed is
// preserved rather than recomputed away until its fields reach Completed.
func DeriveState(item *Item) State {
	var computed State
	switch item.Kind {
	case KindMovie, KindEpisode:
		computed = deriveLeafState(item)
	case KindShow:
		computed = deriveParentState(item, childStates(item.Seasons))
	case KindSeason:
		computed = deriveParentState(item, childStates(item.Episodes))
	default:
		computed = StateUnknown
	}

	if item.LastState == StateFailed && computed.Rank() < StateCompleted.Rank() {
		return StateFailed
	}
	return computed
}

func deriveLeafState(item *Item) State {
	switch {
	case item.Symlinked && item.UpdateFolder != "":
		return StateCompleted
	case item.Symlinked:
		return StateSymlinked
	case item.File != "" && item.Folder != "":
		return StateDownloaded
	case item.ActiveStream != nil && item.ActiveStream.Hash != "":
		return StateScraped
	case item.ScrapedAt != nil:
		return StateScraped
	case item.IndexedAt != nil:
		return StateIndexed
	case item.RequestedAt != nil:
		return StateRequested
	default:
		return StateUnknown
	}
}

// deriveOwnProgress is the progress a container item (Show/Season) can
// reach independent of its children: it tracks only its own request/index
// timestamps, since Downloaded/Symlinked/Completed are purely aggregate.
func deriveOwnProgress(item *Item) State {
	switch {
	case item.IndexedAt != nil:
		return StateIndexed
	case item.RequestedAt != nil:
		return StateRequested
	default:
		return StateUnknown
	}
}

func childStates(children []*Item) []State {
	states := make([]State, len(children))
	for i, c := range children {
		states[i] = DeriveState(c)
	}
	return states
}

func deriveParentState(item *Item, children []State) State {
	own := deriveOwnProgress(item)
	if len(children) == 0 {
		return own
	}

	first := children[0]
	for _, c := range children[1:] {
		if c != first {
			return StatePartiallyCompleted
		}
	}
	if first.Rank() > own.Rank() {
		return first
	}
	return own
}

// NeededEpisodes returns the episodes of a season (or, for a show, across
// all its seasons) that still require a file: those whose state is one of
// Indexed, Scraped, Unknown, Failed, PartiallyCompleted and which have
// aired. Used by the selector's Season/Show wanted-files predicate.
func NeededEpisodes(episodes []*Item, now time.Time) []*Item {
	var needed []*Item
	for _, e := range episodes {
		if !e.Aired(now) {
			continue
		}
		switch DeriveState(e) {
		case StateIndexed, StateScraped, StateUnknown, StateFailed, StatePartiallyCompleted:
			needed = append(needed, e)
		}
	}
	return needed
}

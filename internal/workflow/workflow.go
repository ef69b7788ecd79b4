// Package workflow drives one item through internal/transition's state
// machine until it reaches a fixed point, dispatching each capability hop
// through a capability.Registry. It is the durable "Item Workflow" of
// SPEC_FULL.md §4.4: at most one run is ever active per item, each
// activity gets a 2-minute timeout with no retries, and the whole run is
// bounded to 10 minutes.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arrflow/arrflow/internal/capability"
	"github.com/arrflow/arrflow/internal/mediaitem"
	"github.com/arrflow/arrflow/internal/transition"
)

const (
	activityTimeout = 2 * time.Minute
	runDeadline     = 10 * time.Minute
	maxIterations   = 7 // fixed-point bound, see internal/transition
)

// ErrMaxIterations is returned when a run does not reach a fixed point
// within maxIterations transitions - a sign of a cycle in capability
// outputs, not an expected outcome.
var ErrMaxIterations = errors.New("workflow: exceeded maximum transition iterations")

// Engine runs item workflows, guaranteeing at most one concurrent run per
// item id by cancelling and replacing any run already in flight for that
// id - the Go equivalent of the workflow-id-reuse/termination semantics
// described in SPEC_FULL.md §4.4.
type Engine struct {
	store    *mediaitem.Store
	registry *capability.Registry
	log      *slog.Logger

	// ReindexCooldown/ScrapeCooldown are how long after the last attempt
	// an already-indexed/scraped item becomes eligible again. Zero means
	// never skip (always eligible).
	ReindexCooldown       time.Duration
	ScrapeCooldown        time.Duration
	PostProcessingEnabled bool
	// NeedsSubtitles is consulted for the PostProcessing gate; nil means
	// no item ever needs subtitles.
	NeedsSubtitles func(item *mediaitem.Item) bool

	mu      sync.Mutex
	running map[int64]*context.CancelFunc
}

func NewEngine(store *mediaitem.Store, registry *capability.Registry, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		store:    store,
		registry: registry,
		log:      log.With("component", "workflow"),
		running:  make(map[int64]*context.CancelFunc),
	}
}

// buildGate turns the engine's cooldown configuration into the pure
// predicates internal/transition needs. These are timestamp comparisons
// only - the actual network calls happen inside the capability adapters
// invoked by runActivities, keeping the transition evaluation itself
// side-effect free.
func (e *Engine) buildGate() transition.Gate {
	now := time.Now()
	return transition.Gate{
		Now: now,
		ShouldReindex: func(existing *mediaitem.Item) bool {
			if e.ReindexCooldown == 0 || existing.IndexedAt == nil {
				return true
			}
			return now.Sub(*existing.IndexedAt) >= e.ReindexCooldown
		},
		CanScrape: func(item *mediaitem.Item) bool {
			if item.ActiveStream != nil && item.ActiveStream.Hash != "" {
				return false // already has a selected stream
			}
			if e.ScrapeCooldown == 0 || item.ScrapedAt == nil {
				return true
			}
			return now.Sub(*item.ScrapedAt) >= e.ScrapeCooldown
		},
		ShouldSymlink: func(item *mediaitem.Item) bool {
			return !item.Symlinked
		},
		NeedsSubtitles: func(item *mediaitem.Item) bool {
			if e.NeedsSubtitles == nil {
				return false
			}
			return e.NeedsSubtitles(item)
		},
		PostProcessingEnabled: e.PostProcessingEnabled,
	}
}

// Submit starts (or restarts) a workflow run for an item produced by
// startedBy. If a run is already active for this item id, it is
// cancelled first - the new submission always wins.
func (e *Engine) Submit(ctx context.Context, startedBy transition.StartedBy, incoming *mediaitem.Item) {
	e.mu.Lock()
	if cancel, ok := e.running[incoming.ID]; ok {
		(*cancel)()
	}
	runCtx, cancel := context.WithTimeout(context.Background(), runDeadline)
	e.running[incoming.ID] = &cancel
	e.mu.Unlock()

	go func() {
		defer cancel()
		defer func() {
			e.mu.Lock()
			if e.running[incoming.ID] == &cancel {
				delete(e.running, incoming.ID)
			}
			e.mu.Unlock()
		}()

		if err := e.run(runCtx, startedBy, incoming); err != nil && !errors.Is(err, context.Canceled) {
			e.log.Error("workflow run failed", "item_id", incoming.ID, "error", err)
		}
	}()
}

// run drives one item through the transition fixed-point loop: each
// iteration asks internal/transition what capability to invoke next,
// runs it with a bounded timeout, feeds its result back in as the next
// incoming item, and persists once a fixed point is reached.
func (e *Engine) run(ctx context.Context, startedBy transition.StartedBy, incoming *mediaitem.Item) error {
	runID := uuid.NewString()
	log := e.log.With("run_id", runID, "item_id", incoming.ID)

	existing, err := e.loadExisting(incoming)
	if err != nil {
		return fmt.Errorf("load existing item: %w", err)
	}

	gate := e.buildGate()

	for i := 0; i < maxIterations; i++ {
		result := transition.Apply(existing, startedBy, incoming, gate)

		if result.FixedPoint() {
			return e.persist(result.Item)
		}

		log.Info("dispatching capability", "capability", result.Capability, "children", len(result.Children))

		updatedChildren, err := e.runActivities(ctx, result.Capability, result.Children)
		if err != nil {
			return err
		}

		existing = result.Item
		incoming = mergeChildren(result.Item, updatedChildren)
		// A capability's output carries no last_state of its own; derive it
		// fresh from the fields it just wrote so the next Apply call
		// dispatches on accurate progress instead of a stale/zero value.
		incoming.LastState = mediaitem.DeriveState(incoming)
		startedBy = transition.StartedBy(result.Capability)
	}

	return fmt.Errorf("%w: item %d", ErrMaxIterations, incoming.ID)
}

// runActivities invokes one capability against every child, each under
// its own activityTimeout and with no retries - a failed activity fails
// the whole run rather than being silently retried (SPEC_FULL.md §4.4).
func (e *Engine) runActivities(ctx context.Context, cap transition.Capability, children []*mediaitem.Item) ([]*mediaitem.Item, error) {
	updated := make([]*mediaitem.Item, 0, len(children))
	for _, child := range children {
		activityCtx, cancel := context.WithTimeout(ctx, activityTimeout)
		out, err := e.registry.Invoke(activityCtx, capability.Name(cap), child)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("activity %s on item %d: %w", cap, child.ID, err)
		}
		updated = append(updated, out)
	}
	return updated, nil
}

func (e *Engine) loadExisting(incoming *mediaitem.Item) (*mediaitem.Item, error) {
	if incoming.ID == 0 {
		return nil, nil
	}
	item, err := e.store.GetByID(incoming.ID)
	if errors.Is(err, mediaitem.ErrNotFound) {
		return nil, nil
	}
	return item, err
}

func (e *Engine) persist(item *mediaitem.Item) error {
	if item == nil {
		return nil
	}
	return e.store.Upsert(item)
}

// mergeChildren folds each activity's updated child back into parent's
// tree by matching on ItemID, so the next transition iteration sees the
// fresh state.
func mergeChildren(parent *mediaitem.Item, updated []*mediaitem.Item) *mediaitem.Item {
	if parent.IsLeaf() {
		if len(updated) == 1 {
			return updated[0]
		}
		return parent
	}

	byID := make(map[string]*mediaitem.Item, len(updated))
	for _, u := range updated {
		byID[u.ItemID] = u
	}
	replace := func(items []*mediaitem.Item) []*mediaitem.Item {
		out := make([]*mediaitem.Item, len(items))
		for i, it := range items {
			if u, ok := byID[it.ItemID]; ok {
				out[i] = u
			} else {
				out[i] = it
			}
		}
		return out
	}
	parent.Seasons = replace(parent.Seasons)
	for _, season := range parent.Seasons {
		season.Episodes = replace(season.Episodes)
	}
	parent.Episodes = replace(parent.Episodes)
	return parent
}

package dispatch

import (
	"context"
	"encoding/json"
	"log"

	"dispatchq/internal/models"
	"dispatchq/internal/queue"
	"dispatchq/internal/state"
	"dispatchq/internal/store"
)

// recorder consumes the queue's event stream and mirrors each item's
// lifecycle into the request store. It keeps the last known status per item
// and refuses transitions the state machine forbids, so a dropped or
// reordered event can't corrupt history.
type recorder[P any] struct {
	store    store.RequestStore
	statuses map[string]state.Status
}

func newRecorder[P any](requestStore store.RequestStore) *recorder[P] {
	return &recorder[P]{
		store:    requestStore,
		statuses: make(map[string]state.Status),
	}
}

func (r *recorder[P]) run(ctx context.Context, events <-chan queue.Event[P]) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			r.apply(ctx, ev)
		}
	}
}

func (r *recorder[P]) apply(ctx context.Context, ev queue.Event[P]) {
	var err error
	switch ev.Type {
	case queue.EventQueued:
		payload, merr := json.Marshal(ev.Payload)
		if merr != nil {
			log.Printf("recorder: payload for %s is not serializable: %v", ev.ItemID, merr)
			payload = nil
		}
		err = r.store.Insert(ctx, models.RequestRecord{
			ID:          ev.ItemID,
			Priority:    ev.Priority,
			Payload:     payload,
			MaxAttempts: ev.MaxRetries,
			EnqueuedAt:  ev.At,
		})
		r.statuses[ev.ItemID] = state.StatusQueued

	case queue.EventStarted:
		if !r.transition(ev.ItemID, state.StatusProcessing) {
			return
		}
		err = r.store.MarkProcessing(ctx, ev.ItemID, ev.Attempt, ev.At)

	case queue.EventSucceeded:
		if !r.transition(ev.ItemID, state.StatusSucceeded) {
			return
		}
		err = r.store.MarkSuccess(ctx, ev.ItemID)

	case queue.EventRetrying:
		if !r.transition(ev.ItemID, state.StatusRetrying) {
			return
		}
		err = r.store.MarkFailure(ctx, ev.ItemID, ev.Err.Error(), ev.Attempt, ev.MaxRetries)

	case queue.EventFailed:
		if !r.transition(ev.ItemID, state.StatusFailed) {
			return
		}
		err = r.store.MarkFailure(ctx, ev.ItemID, ev.Err.Error(), ev.Attempt+1, ev.MaxRetries)

	case queue.EventCleared:
		if !r.transition(ev.ItemID, state.StatusCleared) {
			return
		}
		err = r.store.MarkCleared(ctx, ev.ItemID)

	default:
		log.Printf("recorder: unknown event type %q for %s", ev.Type, ev.ItemID)
		return
	}

	if err != nil {
		log.Printf("recorder: failed to record %s for %s: %v", ev.Type, ev.ItemID, err)
	}
}

func (r *recorder[P]) transition(id string, to state.Status) bool {
	from, ok := r.statuses[id]
	if !ok {
		// The queued event was dropped; don't invent history.
		return false
	}
	if !state.IsValidTransition(from, to) {
		log.Printf("recorder: dropping invalid transition %s -> %s for %s", from, to, id)
		if to.Terminal() {
			// The item is finished either way; forget it so the map stays
			// bounded in a long-lived process.
			delete(r.statuses, id)
		}
		return false
	}
	if to.Terminal() {
		delete(r.statuses, id)
	} else {
		r.statuses[id] = to
	}
	return true
}

package autoheal

import (
	"sigs.k8s.io/controller-runtime/pkg/event"
	"sigs.k8s.io/controller-runtime/pkg/predicate"
)

// EventFilter returns a predicate.Funcs that filters events for the
// AutoHealRule controller.
//
// It allows:
//   - All Create events, so a new rule is cached immediately
//   - Update events where .metadata.generation changed (a spec edit to
//     cooldown/actions/triggerName, per spec.md §4.5)
//   - Update events where deletionTimestamp was just set, so the
//     finalizer-driven cache-cleanup path runs promptly instead of waiting
//     on the next periodic requeue
//
// It blocks:
//   - Update events caused solely by this controller's own status.Apply
//     or finalizer add/remove calls, which never bump generation
//   - Delete events: by the time the apiserver actually removes the rule
//     the finalizer has already emptied the cache entry on the preceding
//     Update, so there is nothing left to do
//   - Generic events
func EventFilter() predicate.Funcs {
	return predicate.Funcs{
		CreateFunc: func(e event.CreateEvent) bool {
			return true
		},
		UpdateFunc: func(e event.UpdateEvent) bool {
			if e.ObjectNew.GetGeneration() != e.ObjectOld.GetGeneration() {
				return true
			}
			if newDeleted := e.ObjectNew.GetDeletionTimestamp(); newDeleted != nil && !newDeleted.IsZero() {
				if oldDeleted := e.ObjectOld.GetDeletionTimestamp(); oldDeleted == nil || oldDeleted.IsZero() {
					return true
				}
			}
			return false
		},
		DeleteFunc: func(e event.DeleteEvent) bool {
			return false
		},
		GenericFunc: func(e event.GenericEvent) bool {
			return false
		},
	}
}

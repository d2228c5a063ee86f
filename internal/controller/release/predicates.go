package release

import (
	"sigs.k8s.io/controller-runtime/pkg/event"
	"sigs.k8s.io/controller-runtime/pkg/predicate"
)

// EventFilter returns a predicate.Funcs that filters events for the Release
// controller.
//
// It allows:
//   - All Create and Delete events on Release
//   - Update events on Release where .metadata.generation changed (a spec
//     edit, per spec.md §3.1) or where a finalizer was added/removed, or
//     where deletionTimestamp was just set (finalizer-driven deletion, same
//     as the teacher's ServiceMonitor case)
//
// It blocks:
//   - Update events on Release caused solely by this controller's own
//     status.Apply server-side-apply patch, which never bumps generation
//     and would otherwise requeue the object for no reason
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
			if len(e.ObjectNew.GetFinalizers()) != len(e.ObjectOld.GetFinalizers()) {
				return true
			}
			if newDeleted := e.ObjectNew.GetDeletionTimestamp(); newDeleted != nil && !newDeleted.IsZero() {
				if oldDeleted := e.ObjectOld.GetDeletionTimestamp(); oldDeleted == nil || oldDeleted.IsZero() {
					return true
				}
			}
			// Block everything else: the reconcile loop's own status.Apply
			// call is what usually triggers this branch.
			return false
		},
		DeleteFunc: func(e event.DeleteEvent) bool {
			return true
		},
		GenericFunc: func(e event.GenericEvent) bool {
			return false
		},
	}
}

// DeploymentPredicate returns a predicate that filters the owned
// stable/canary Deployment events Owns(&appsv1.Deployment{}) generates.
// It allows Create and Delete so the Release reconcile reacts to the
// variant appearing or disappearing, and blocks Update: replica/image
// changes on an owned Deployment are ones the Release controller itself
// made, so re-reconciling on them would only requeue against its own write.
func DeploymentPredicate() predicate.Predicate {
	return predicate.Funcs{
		CreateFunc: func(e event.CreateEvent) bool {
			return true
		},
		UpdateFunc: func(e event.UpdateEvent) bool {
			return false
		},
		DeleteFunc: func(e event.DeleteEvent) bool {
			return true
		},
		GenericFunc: func(e event.GenericEvent) bool {
			return false
		},
	}
}

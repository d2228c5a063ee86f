package preview

import (
	"context"
	"time"

	phv1alpha1 "github.com/phkaiser13/ph-operator/api/v1alpha1"
)

// GarbageCollect deletes every Preview older than maxAge, by creation
// timestamp, driving each one through the same finalizer-guarded namespace
// teardown as a normal deletion. It is run out-of-band from the reconcile
// loop, per spec.md §4.7 ("a separate operator action traverses all Preview
// resources").
func (r *Reconciler) GarbageCollect(ctx context.Context, maxAge time.Duration) (deleted int, err error) {
	var previews phv1alpha1.PreviewList
	if err := r.List(ctx, &previews); err != nil {
		return 0, err
	}

	now := r.now()
	for i := range previews.Items {
		p := &previews.Items[i]
		if p.CreationTimestamp.IsZero() {
			continue
		}
		if now.Sub(p.CreationTimestamp.Time) <= maxAge {
			continue
		}
		if err := r.Delete(ctx, p); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

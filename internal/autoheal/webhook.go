package autoheal

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// alertPayload matches the Alertmanager-style webhook body, per spec.md
// §6.2.
type alertPayload struct {
	Alerts []alertEntry `json:"alerts"`
}

type alertEntry struct {
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations"`
}

// RuleClient reads the matched rule's owning AutoHealRule and patches its
// status when an alert is matched, before the actions run; the status does
// not record the actions' outcomes. Implemented against the live
// client.Client by the caller that wires Handler, and by a fake in tests.
type RuleClient interface {
	// PatchExecuted records one execution against the rule named by
	// namespace/name: state=Executing, lastExecutionTime=now,
	// executionsCount+=1, a Triggered condition.
	PatchExecuted(ctx context.Context, namespace, name string) (client.Object, error)
}

// Handler implements the fixed-path POST /webhook contract, per spec.md
// §6.2 and §4.5.
type Handler struct {
	Cache      *Cache
	Dispatcher *Dispatcher
	Rules      RuleClient
}

// ServeHTTP always responds 202 once the body parses, scheduling
// per-alert processing asynchronously; malformed JSON or a missing
// "alerts" key responds 400.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := ctrl.LoggerFrom(r.Context())

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload alertPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if payload.Alerts == nil {
		http.Error(w, `missing "alerts" key`, http.StatusBadRequest)
		return
	}

	ctx := context.Background()
	for _, entry := range payload.Alerts {
		alertname := entry.Labels["alertname"]
		if alertname == "" {
			logger.Info("autoheal webhook: alert missing alertname label, skipping")
			continue
		}
		entry := entry
		go h.processAlert(ctx, alertname, entry)
	}

	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) processAlert(ctx context.Context, alertname string, entry alertEntry) {
	logger := ctrl.LoggerFrom(ctx)

	rule, ok := h.Cache.Get(alertname)
	if !ok {
		logger.Info("autoheal webhook: no rule registered for alert", "alertname", alertname)
		return
	}

	now := time.Now()
	if !rule.LastExecutionTime.IsZero() && now.Before(rule.LastExecutionTime.Add(rule.Cooldown)) {
		logger.Info("autoheal webhook: alert in cooldown, skipping", "alertname", alertname, "rule", rule.Name)
		return
	}
	h.Cache.Touch(alertname, now)

	owner, err := h.Rules.PatchExecuted(ctx, rule.Namespace, rule.Name)
	if err != nil {
		logger.Error(err, "autoheal webhook: unable to mark rule executing", "rule", rule.Name)
		return
	}

	alert := Alert{Labels: entry.Labels, Annotations: entry.Annotations}
	results := h.Dispatcher.Dispatch(ctx, rule.Namespace, owner, rule.Actions, alert)
	for _, res := range results {
		if res.Err != nil {
			logger.Error(res.Err, "autoheal action failed", "rule", rule.Name, "action", res.Kind)
		}
	}
}

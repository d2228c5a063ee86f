// Package notify implements the notification channels named in spec.md
// §6.6: a Slack webhook, a generic opaque webhook POST (DR failover
// notifications), and an issue-tracker record.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/slack-go/slack"

	pherrors "github.com/phkaiser13/ph-operator/internal/phcore/errors"
)

// SlackNotifier posts a message to a Slack incoming webhook URL, using
// github.com/slack-go/slack the way kubernaut's notifier does.
type SlackNotifier struct{}

// Send posts message to the Slack incoming webhook at webhookURL.
func (SlackNotifier) Send(ctx context.Context, webhookURL, message string) error {
	msg := &slack.WebhookMessage{Text: message}
	if err := slack.PostWebhookContext(ctx, webhookURL, msg); err != nil {
		return pherrors.Wrap(pherrors.KindKubeAPI, "post slack webhook", err)
	}
	return nil
}

// WebhookNotifier POSTs an arbitrary JSON payload to a configured URL, the
// opaque "notification" collaborator the DR controller calls on failover
// (spec.md §4.6), grounded on the original's reqwest POST.
type WebhookNotifier struct {
	HTTPClient *http.Client
}

func (w WebhookNotifier) client() *http.Client {
	if w.HTTPClient != nil {
		return w.HTTPClient
	}
	return http.DefaultClient
}

// Post sends payload as a JSON body to webhookURL. A non-2xx response is
// reported as an error but never retried; callers log and continue rather
// than fail the reconcile over a best-effort notification.
func (w WebhookNotifier) Post(ctx context.Context, webhookURL string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return pherrors.Wrap(pherrors.KindDeserialization, "marshal webhook payload", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return pherrors.Wrap(pherrors.KindBadSpec, "build webhook request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client().Do(req)
	if err != nil {
		return pherrors.Wrap(pherrors.KindKubeAPI, "post webhook", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return pherrors.New(pherrors.KindKubeAPI, fmt.Sprintf("webhook returned status %d", resp.StatusCode))
	}
	return nil
}

// IssueTracker records an issue-tracker entry. The concrete tracker backend
// is an external collaborator per spec.md §6.6 ("opaque POST/record
// operation"); this records the call for later wiring to a specific
// tracker API without the release/autoheal callers depending on one.
type IssueTracker struct {
	// Record, when set, receives every issue title/body pair instead of the
	// default no-op — tests inject a recording func here.
	Record func(ctx context.Context, title, body string) error
}

// File records an issue with title and body.
func (t IssueTracker) File(ctx context.Context, title, body string) error {
	if t.Record == nil {
		return nil
	}
	return t.Record(ctx, title, body)
}

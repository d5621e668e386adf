package auditlog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/wardenchat/warden/automod/engine"
	"github.com/wardenchat/warden/util"

	"golang.org/x/time/rate"
)

type SlackWebhookBody struct {
	Text string `json:"text"`
}

// Posts audit records to a Slack channel via "incoming webhook". Only enforcement and deletion records are sent, unless AllKinds is set.
//
// The slack incoming webhook must be already configured in the slack workplace.
type SlackSink struct {
	WebhookURL string
	Client     *http.Client
	// webhooks are rate limited by slack; excess records wait (up to the context deadline)
	Limiter  *rate.Limiter
	AllKinds bool
}

var _ engine.AuditSink = (*SlackSink)(nil)

func NewSlackSink(webhookURL string) *SlackSink {
	return &SlackSink{
		WebhookURL: webhookURL,
		Client:     util.RobustHTTPClient(),
		Limiter:    rate.NewLimiter(rate.Limit(1), 5),
	}
}

func (s *SlackSink) Record(ctx context.Context, rec engine.AuditRecord) error {
	if rec.Kind == engine.AuditViolation && !s.AllKinds {
		return nil
	}
	if s.Limiter != nil {
		if err := s.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("slack rate limit: %w", err)
		}
	}
	msg := fmt.Sprintf("🛡️ [%s] %s", rec.TenantID, Summary(rec))
	return s.sendSlackMsg(ctx, msg)
}

// loosely based on: https://golangcode.com/send-slack-messages-without-a-library/
func (s *SlackSink) sendSlackMsg(ctx context.Context, msg string) error {
	body, err := json.Marshal(SlackWebhookBody{Text: msg})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode != http.StatusOK || string(respBody) != "ok" {
		return fmt.Errorf("failed slack webhook POST request. status=%d", resp.StatusCode)
	}
	return nil
}

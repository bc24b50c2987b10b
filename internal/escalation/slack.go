package escalation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

const (
	slackColorCritical = "#ff0000"
	slackColorOK       = "#36a64f"
)

// slackPayload mirrors the JSON body built by mozalert/escalations/slack.py.
type slackPayload struct {
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username"`
	IconEmoji   string            `json:"icon_emoji"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	MrkdwnIn []string     `json:"mrkdwn_in"`
	Color    string       `json:"color"`
	Fields   []slackField `json:"fields"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// SlackEscalator posts a color-coded summary to a Slack incoming webhook.
// No Slack SDK appears anywhere in the example pack or original_source (the
// original talks to the webhook with a bare `requests.post`), so this stays
// on net/http deliberately — there is no ecosystem library to adopt here.
type SlackEscalator struct {
	HTTPClient *http.Client
}

// NewSlackEscalator returns a SlackEscalator using a client with a bounded
// timeout, since a hung webhook must never stall a check's tick.
func NewSlackEscalator() Escalator {
	return &SlackEscalator{HTTPClient: &http.Client{Timeout: 10 * time.Second}}
}

func (s *SlackEscalator) Escalate(ctx context.Context, req Request, args map[string]string) error {
	webhookURL := args["webhook_url"]
	if webhookURL == "" {
		return fmt.Errorf("slack escalation missing required arg %q", "webhook_url")
	}

	color := slackColorCritical
	if req.Recovery || req.Status.IsOK() {
		color = slackColorOK
	}

	payload := slackPayload{
		Channel:   args["channel"],
		Username:  "Checkoperator",
		IconEmoji: ":rotating_light:",
		Attachments: []slackAttachment{{
			MrkdwnIn: []string{"text"},
			Color:    color,
			Fields: []slackField{
				{Title: "Target", Value: req.Config.Namespace + "/" + req.Config.Name, Short: false},
				{Title: "Status", Value: string(req.Status.Status), Short: true},
				{Title: "Attempt", Value: fmt.Sprintf("%d", req.Status.Attempt), Short: true},
			},
		}},
	}
	if link := gcpDeepLink(req.Config.Name); link != "" {
		payload.Attachments[0].Fields = append(payload.Attachments[0].Fields, slackField{
			Title: "Logs", Value: link, Short: false,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.HTTPClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// gcpDeepLink builds a link into the GCP console's GKE workload logs page
// when GCP_PROJECT, GCP_CLUSTER, and GCP_REGION are all set in the
// environment, matching spec.md §6's optional GCP deep-link enrichment.
// Returns "" when any of the three is unset.
func gcpDeepLink(checkName string) string {
	project := os.Getenv("GCP_PROJECT")
	cluster := os.Getenv("GCP_CLUSTER")
	region := os.Getenv("GCP_REGION")
	if project == "" || cluster == "" || region == "" {
		return ""
	}
	return fmt.Sprintf(
		"https://console.cloud.google.com/kubernetes/job/%s/%s/default/%s/logs?project=%s",
		region, cluster, checkName, project,
	)
}

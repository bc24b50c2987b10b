package escalation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/afrank/checkoperator/internal/checkconfig"
	"github.com/afrank/checkoperator/internal/status"

	"github.com/stretchr/testify/require"
)

func TestSlackEscalateMissingWebhookURLErrors(t *testing.T) {
	esc := NewSlackEscalator()
	err := esc.Escalate(context.Background(), Request{}, map[string]string{})
	require.Error(t, err)
}

func TestSlackEscalatePostsColorCodedPayload(t *testing.T) {
	var received slackPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	esc := NewSlackEscalator()
	req := Request{
		Config: checkconfig.CheckConfig{Name: "db-ping", Namespace: "prod"},
		Status: status.Status{Status: status.CRITICAL, Attempt: 3},
	}

	err := esc.Escalate(context.Background(), req, map[string]string{"webhook_url": srv.URL})
	require.NoError(t, err)
	require.Len(t, received.Attachments, 1)
	require.Equal(t, slackColorCritical, received.Attachments[0].Color)
	require.Equal(t, "prod/db-ping", received.Attachments[0].Fields[0].Value)
}

func TestSlackEscalateRecoveryUsesOKColor(t *testing.T) {
	var received slackPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	esc := NewSlackEscalator()
	req := Request{
		Config:   checkconfig.CheckConfig{Name: "db-ping", Namespace: "prod"},
		Status:   status.Status{Status: status.OK},
		Recovery: true,
	}

	err := esc.Escalate(context.Background(), req, map[string]string{"webhook_url": srv.URL})
	require.NoError(t, err)
	require.Equal(t, slackColorOK, received.Attachments[0].Color)
}

func TestSlackEscalateErrorsOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	esc := NewSlackEscalator()
	req := Request{Config: checkconfig.CheckConfig{Name: "x", Namespace: "y"}}
	err := esc.Escalate(context.Background(), req, map[string]string{"webhook_url": srv.URL})
	require.Error(t, err)
}

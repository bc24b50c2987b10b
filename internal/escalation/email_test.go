package escalation

import (
	"context"
	"testing"
	"time"

	"github.com/afrank/checkoperator/internal/checkconfig"
	"github.com/afrank/checkoperator/internal/status"

	"github.com/stretchr/testify/require"
)

func TestEmailEscalateMissingAddressErrors(t *testing.T) {
	e := &EmailEscalator{}
	err := e.Escalate(context.Background(), Request{}, map[string]string{})
	require.Error(t, err)
}

func TestRenderBodyIncludesMaxAttemptsWhenConfigured(t *testing.T) {
	e := &EmailEscalator{}
	req := Request{
		Config: checkconfig.CheckConfig{Name: "db-ping", MaxAttempts: 3},
		Status: status.Status{Status: status.CRITICAL, Attempt: 2},
	}
	body := e.renderBody(req)
	require.Contains(t, body, "Attempt:</b> 2/3")
}

func TestRenderBodyOmitsMaxAttemptsWhenUnset(t *testing.T) {
	e := &EmailEscalator{}
	req := Request{
		Config: checkconfig.CheckConfig{Name: "db-ping"},
		Status: status.Status{Status: status.CRITICAL, Attempt: 2},
	}
	body := e.renderBody(req)
	require.Contains(t, body, "Attempt:</b> 2<br>")
	require.NotContains(t, body, "2/")
}

func TestRenderBodyIncludesLogsAndSourceRef(t *testing.T) {
	e := &EmailEscalator{}
	req := Request{
		Config: checkconfig.CheckConfig{Name: "db-ping", SourceRef: "github.com/org/repo"},
		Status: status.Status{Logs: "connection refused", LastCheck: time.Now()},
	}
	body := e.renderBody(req)
	require.Contains(t, body, "connection refused")
	require.Contains(t, body, "github.com/org/repo")
}

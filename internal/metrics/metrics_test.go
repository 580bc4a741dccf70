package metrics

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewRegistersCollectors(t *testing.T) {
	m := New()
	if m.Registry() == nil {
		t.Fatal("expected a registry")
	}

	// Recording through the helpers must not panic and must show up in a dump.
	m.IncRequests("GET", "teams", 200)
	m.IncRefresh("success")
	m.IncRefresh("failure")
	m.SetRefreshWaiters(2)
	m.IncAuthFailure()
	m.IncCacheLookup("hit")
	m.ObserveDuration("GET", "teams", 0.042)

	var buf bytes.Buffer
	if err := m.DumpText(&buf); err != nil {
		t.Fatalf("DumpText: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"codemate_http_requests_total{method=GET,resource=teams,status_code=200} 1",
		"codemate_token_refreshes_total{outcome=failure} 1",
		"codemate_token_refreshes_total{outcome=success} 1",
		"codemate_refresh_waiters 2",
		"codemate_auth_failures_total 1",
		"codemate_team_cache_lookups_total{outcome=hit} 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("dump missing %q\ngot:\n%s", want, out)
		}
	}

	// Runtime collector families are noise for the CLI dump.
	if strings.Contains(out, "go_goroutines") {
		t.Error("dump should only contain codemate_* families")
	}
}

func TestDumpSkipsZeroSeries(t *testing.T) {
	m := New()

	var buf bytes.Buffer
	if err := m.DumpText(&buf); err != nil {
		t.Fatalf("DumpText: %v", err)
	}
	if got := buf.String(); strings.Contains(got, "codemate_auth_failures_total") {
		t.Errorf("zero-valued series should be omitted, got:\n%s", got)
	}
}

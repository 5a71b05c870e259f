package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spigell/gh-profiler/internal/analysis"
	"github.com/spigell/gh-profiler/internal/profile"
)

type fakeAnalyzer struct {
	rec       *profile.AnalysisRecord
	err       error
	found     bool
	entries   []analysis.LeaderboardEntry
	lastInput string
	lastLimit int
	refreshed bool
}

func (f *fakeAnalyzer) Analyze(_ context.Context, input string, _ time.Duration) (*profile.AnalysisRecord, error) {
	f.lastInput = input
	return f.rec, f.err
}

func (f *fakeAnalyzer) Refresh(ctx context.Context, input string, deadline time.Duration) (*profile.AnalysisRecord, error) {
	f.refreshed = true
	return f.Analyze(ctx, input, deadline)
}

func (f *fakeAnalyzer) GetCached(_ context.Context, input string) (*profile.AnalysisRecord, bool, error) {
	f.lastInput = input
	return f.rec, f.found, f.err
}

func (f *fakeAnalyzer) Leaderboard(_ context.Context, limit int) ([]analysis.LeaderboardEntry, error) {
	f.lastLimit = limit
	return f.entries, f.err
}

func (f *fakeAnalyzer) HealthCheck(context.Context) analysis.Health {
	return analysis.Health{UpstreamReachable: true}
}

func do(t *testing.T, svc Analyzer, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	New(svc, time.Second, nil).Routes().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestAnalyzeEndpoint(t *testing.T) {
	fake := &fakeAnalyzer{rec: &profile.AnalysisRecord{Identifier: "octocat", Scores: profile.ScoreBreakdown{Total: 61.5}}}

	resp := do(t, fake, http.MethodGet, "/api/analyze?username=octocat")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if fake.lastInput != "octocat" {
		t.Fatalf("unexpected input %q", fake.lastInput)
	}

	var body map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["username"] != "octocat" {
		t.Fatalf("unexpected body: %v", body)
	}
	scores := body["scores"].(map[string]any)
	if scores["total_score"] != 61.5 {
		t.Fatalf("unexpected total score: %v", scores["total_score"])
	}
}

func TestAnalyzeEndpointErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind profile.Kind
		want int
	}{
		{kind: profile.KindInvalidIdentifier, want: http.StatusBadRequest},
		{kind: profile.KindProfileNotFound, want: http.StatusNotFound},
		{kind: profile.KindUpstreamRateLimited, want: http.StatusTooManyRequests},
		{kind: profile.KindUpstreamAuthError, want: http.StatusBadGateway},
		{kind: profile.KindUpstreamUnavailable, want: http.StatusBadGateway},
		{kind: profile.KindTimeout, want: http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			t.Parallel()
			fake := &fakeAnalyzer{err: profile.NewError(tt.kind, "analyze", errors.New("cause"))}
			resp := do(t, fake, http.MethodGet, "/api/analyze?username=someone")
			if resp.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, resp.Code)
			}

			var body map[string]string
			if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["error"] != string(tt.kind) {
				t.Fatalf("unexpected error kind %q", body["error"])
			}
		})
	}
}

func TestAnalyzeEndpointRequiresUsername(t *testing.T) {
	if resp := do(t, &fakeAnalyzer{}, http.MethodGet, "/api/analyze"); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestAnalyzeEndpointPersistenceFailure(t *testing.T) {
	fake := &fakeAnalyzer{
		rec: &profile.AnalysisRecord{Identifier: "octocat"},
		err: profile.NewError(profile.KindPersistenceError, "upsert analysis", errors.New("disk full")),
	}

	resp := do(t, fake, http.MethodGet, "/api/analyze?username=octocat")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected the record to be served, got %d", resp.Code)
	}
	if resp.Header().Get("X-Persistence-Error") != string(profile.KindPersistenceError) {
		t.Fatalf("expected persistence error header")
	}
}

func TestGetAnalysisEndpoint(t *testing.T) {
	resp := do(t, &fakeAnalyzer{}, http.MethodGet, "/api/analysis/octocat")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing analysis, got %d", resp.Code)
	}

	fake := &fakeAnalyzer{found: true, rec: &profile.AnalysisRecord{Identifier: "octocat"}}
	resp = do(t, fake, http.MethodGet, "/api/analysis/octocat")
	if resp.Code != http.StatusOK || fake.lastInput != "octocat" {
		t.Fatalf("expected stored analysis, got %d for %q", resp.Code, fake.lastInput)
	}
}

func TestRefreshEndpoint(t *testing.T) {
	fake := &fakeAnalyzer{rec: &profile.AnalysisRecord{Identifier: "octocat"}}

	if resp := do(t, fake, http.MethodGet, "/api/analysis/octocat/refresh"); resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET refresh, got %d", resp.Code)
	}

	resp := do(t, fake, http.MethodPost, "/api/analysis/octocat/refresh")
	if resp.Code != http.StatusOK || !fake.refreshed {
		t.Fatalf("expected refresh to run, got %d", resp.Code)
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	fake := &fakeAnalyzer{entries: []analysis.LeaderboardEntry{{Rank: 1, Username: "octocat", TotalScore: 80}}}

	resp := do(t, fake, http.MethodGet, "/api/leaderboard?limit=5")
	if resp.Code != http.StatusOK || fake.lastLimit != 5 {
		t.Fatalf("unexpected response %d with limit %d", resp.Code, fake.lastLimit)
	}

	var body struct {
		Leaderboard []analysis.LeaderboardEntry `json:"leaderboard"`
		Count       int                         `json:"count"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Count != 1 || body.Leaderboard[0].Username != "octocat" {
		t.Fatalf("unexpected body: %+v", body)
	}

	if resp := do(t, fake, http.MethodGet, "/api/leaderboard?limit=abc"); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid limit, got %d", resp.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	resp := do(t, &fakeAnalyzer{}, http.MethodGet, "/api/health")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" || body["upstream_reachable"] != true || body["model_reachable"] != false {
		t.Fatalf("unexpected health body: %v", body)
	}
}

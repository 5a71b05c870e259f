package github

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/gh-profiler/internal/profile"
)

var fixedNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

type fakeUpstream struct {
	mu sync.Mutex

	user       *User
	profileErr error
	repos      []Repository
	readmes    map[string]string
	languages  map[string]map[string]int
	commits    map[string][]time.Time
	repoErrs   map[string]error
	delay      time.Duration

	inFlight    int
	maxInFlight int
	calls       map[string]int
}

func (f *fakeUpstream) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
}

func (f *fakeUpstream) GetProfile(ctx context.Context, login string) (*User, error) {
	f.record("profile")
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return f.user, nil
}

func (f *fakeUpstream) ListRepositories(ctx context.Context, login string) ([]Repository, error) {
	f.record("repos")
	return f.repos, nil
}

func (f *fakeUpstream) GetReadme(ctx context.Context, owner, repo string) (Readme, error) {
	f.record("readme")

	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	content, ok := f.readmes[repo]
	return Readme{Content: content, Found: ok}, nil
}

func (f *fakeUpstream) ListCommits(ctx context.Context, owner, repo, author string, since time.Time) ([]time.Time, error) {
	f.record("commits")
	return f.commits[repo], nil
}

func (f *fakeUpstream) ListLanguages(ctx context.Context, owner, repo string) (map[string]int, error) {
	f.record("languages")
	if err := f.repoErrs[repo]; err != nil {
		return nil, err
	}
	return f.languages[repo], nil
}

func (f *fakeUpstream) Ping(ctx context.Context) error { return nil }

func month(offset int) time.Time {
	return time.Date(2026, 10, 3, 0, 0, 0, 0, time.UTC).AddDate(0, -offset, 0)
}

func TestCollectorFetch(t *testing.T) {
	long := fmt.Sprintf("%0600d", 0)

	upstream := &fakeUpstream{
		user: &User{Login: "octocat", Name: "The Octocat", HTMLURL: "https://github.com/octocat", Followers: 10},
		repos: []Repository{
			{Name: "popular", Stars: 5000, Language: "Go", PushedAt: fixedNow.AddDate(0, -1, 0)},
			{Name: "fresh", Stars: 2, Language: "Rust", PushedAt: fixedNow.AddDate(0, 0, -1)},
			{Name: "old", Stars: 0, Language: "C", PushedAt: fixedNow.AddDate(-3, 0, 0)},
			{Name: "forked", Stars: 9000, Fork: true, PushedAt: fixedNow},
			{Name: "broken", Stars: 100, Language: "Zig", PushedAt: fixedNow},
		},
		readmes:   map[string]string{"popular": long, "fresh": "short"},
		languages: map[string]map[string]int{"popular": {"Go": 100}, "fresh": {"Rust": 50}},
		commits: map[string][]time.Time{
			"popular": {month(0), month(0), month(1), month(12)},
			"fresh":   {month(3)},
		},
		repoErrs: map[string]error{
			"broken": profile.NewError(profile.KindUpstreamUnavailable, "list languages", errors.New("502")),
		},
	}

	collector := NewCollector(upstream, Options{MaxReposAnalyzed: 3, Now: func() time.Time { return fixedNow }})

	raw, err := collector.Fetch(context.Background(), "octocat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if raw.Name != "The Octocat" || raw.ProfileURL != "https://github.com/octocat" || raw.Followers != 10 {
		t.Fatalf("unexpected profile metadata: %+v", raw)
	}

	var names []string
	for _, repo := range raw.Repositories {
		names = append(names, repo.Name)
	}
	if fmt.Sprint(names) != "[popular fresh]" {
		t.Fatalf("unexpected analyzed repositories: %v", names)
	}

	if len(raw.Skipped) != 1 || raw.Skipped[0].Name != "broken" {
		t.Fatalf("expected broken repository to be skipped, got %+v", raw.Skipped)
	}

	popular := raw.Repositories[0]
	if !popular.HasReadme || popular.ReadmeLength != 600 || !popular.ReadmeQuality {
		t.Fatalf("unexpected readme fields: %+v", popular)
	}
	if popular.Commits != 4 {
		t.Fatalf("expected 4 commits listed for popular, got %d", popular.Commits)
	}
	fresh := raw.Repositories[1]
	if !fresh.HasReadme || fresh.ReadmeQuality {
		t.Fatalf("expected short readme without quality flag: %+v", fresh)
	}

	if raw.Activity.Months != 12 || len(raw.Activity.ByMonth) != 12 {
		t.Fatalf("expected 12 monthly buckets, got %+v", raw.Activity)
	}
	// The commit 12 months back falls outside the window.
	if raw.Activity.TotalCommits != 4 {
		t.Fatalf("expected 4 commits inside the window, got %d", raw.Activity.TotalCommits)
	}
	if raw.Activity.ByMonth["2026-10"] != 2 || raw.Activity.ByMonth["2026-09"] != 1 || raw.Activity.ByMonth["2026-07"] != 1 {
		t.Fatalf("unexpected buckets: %v", raw.Activity.ByMonth)
	}
	if raw.Activity.ActiveMonths() != 3 {
		t.Fatalf("expected 3 active months, got %d", raw.Activity.ActiveMonths())
	}
}

func TestCollectorKeepsForksWhenNothingElse(t *testing.T) {
	upstream := &fakeUpstream{
		user: &User{Login: "forker"},
		repos: []Repository{
			{Name: "a", Fork: true, Stars: 1},
			{Name: "b", Fork: true, Stars: 2},
		},
	}

	raw, err := NewCollector(upstream, Options{Now: func() time.Time { return fixedNow }}).Fetch(context.Background(), "forker")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(raw.Repositories) != 2 || raw.Repositories[0].Name != "b" || !raw.Repositories[0].IsFork {
		t.Fatalf("expected forks to be analyzed, got %+v", raw.Repositories)
	}
	if raw.Repositories[0].HasReadme {
		t.Fatalf("missing readme must be reported as absent")
	}
}

func TestCollectorProfileErrorsAreFatal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		want       error
		retryAfter time.Duration
	}{
		{
			name: "not found",
			err:  profile.NewError(profile.KindProfileNotFound, "get profile", errors.New("404")),
			want: profile.ErrProfileNotFound,
		},
		{
			name:       "rate limited",
			err:        &profile.Error{Kind: profile.KindUpstreamRateLimited, Op: "get profile", RetryAfter: 30 * time.Second},
			want:       profile.ErrUpstreamRateLimited,
			retryAfter: 30 * time.Second,
		},
		{
			name: "untyped failure",
			err:  errors.New("connection reset"),
			want: profile.ErrUpstreamUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			upstream := &fakeUpstream{profileErr: tt.err}
			_, err := NewCollector(upstream, Options{}).Fetch(context.Background(), "octocat")
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			pe, ok := profile.AsError(err)
			if !ok || pe.Identifier != "octocat" || pe.RetryAfter != tt.retryAfter {
				t.Fatalf("unexpected error details: %+v", pe)
			}
			if upstream.calls["repos"] != 0 {
				t.Fatalf("repositories must not be listed after a profile failure")
			}
		})
	}
}

func TestCollectorBoundsConcurrency(t *testing.T) {
	upstream := &fakeUpstream{user: &User{Login: "busy"}, delay: 10 * time.Millisecond}
	for i := 0; i < 10; i++ {
		upstream.repos = append(upstream.repos, Repository{Name: fmt.Sprintf("r%d", i), Stars: i})
	}

	raw, err := NewCollector(upstream, Options{MaxReposAnalyzed: 10}).Fetch(context.Background(), "busy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(raw.Repositories) != 10 {
		t.Fatalf("expected 10 repositories, got %d", len(raw.Repositories))
	}
	if upstream.maxInFlight > DefaultConcurrency {
		t.Fatalf("expected at most %d concurrent fetches, saw %d", DefaultConcurrency, upstream.maxInFlight)
	}
}

func TestCollectorLogsSkips(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	upstream := &fakeUpstream{
		user:     &User{Login: "octocat"},
		repos:    []Repository{{Name: "broken"}},
		repoErrs: map[string]error{"broken": &profile.Error{Kind: profile.KindUpstreamUnavailable}},
	}

	raw, err := NewCollector(upstream, Options{Logger: zap.New(core)}).Fetch(context.Background(), "octocat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(raw.Repositories) != 0 || len(raw.Skipped) != 1 {
		t.Fatalf("expected the repository to be skipped: %+v", raw)
	}
	if raw.Skipped[0].Reason != "languages: UpstreamUnavailable" {
		t.Fatalf("unexpected skip reason: %q", raw.Skipped[0].Reason)
	}

	entries := logs.FilterMessage("repository skipped").All()
	if len(entries) != 1 {
		t.Fatalf("expected one skip log, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["repository"]; got != "broken" {
		t.Fatalf("unexpected repository field: %v", got)
	}
}

func TestCollectorAccountWideRepoErrorsAreFatal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "rate limited",
			err:  &profile.Error{Kind: profile.KindUpstreamRateLimited, Op: "list languages", RetryAfter: 30 * time.Second},
			want: profile.ErrUpstreamRateLimited,
		},
		{
			name: "auth",
			err:  profile.NewError(profile.KindUpstreamAuthError, "list languages", errors.New("403")),
			want: profile.ErrUpstreamAuthError,
		},
		{
			name: "timeout",
			err:  profile.NewError(profile.KindTimeout, "list languages", context.DeadlineExceeded),
			want: profile.ErrTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			upstream := &fakeUpstream{
				user:     &User{Login: "octocat"},
				repos:    []Repository{{Name: "a", Stars: 5}, {Name: "b", Stars: 1}},
				repoErrs: map[string]error{"a": tt.err, "b": tt.err},
			}

			raw, err := NewCollector(upstream, Options{Now: func() time.Time { return fixedNow }}).Fetch(context.Background(), "octocat")
			if raw != nil {
				t.Fatalf("expected no profile, got %+v", raw)
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			pe, _ := profile.AsError(err)
			if pe.Identifier != "octocat" {
				t.Fatalf("expected identifier on error, got %+v", pe)
			}
			if pe.Kind == profile.KindUpstreamRateLimited && pe.RetryAfter != 30*time.Second {
				t.Fatalf("retry-after hint lost: %+v", pe)
			}
		})
	}
}

func TestSelectRepositoriesRanking(t *testing.T) {
	repos := []Repository{
		{Name: "b", Stars: 10},
		{Name: "a", Stars: 10},
		{Name: "recent", Stars: 0, PushedAt: fixedNow},
		{Name: "stale-star", Stars: 99, PushedAt: fixedNow.AddDate(-2, 0, 0)},
	}

	got := SelectRepositories(repos, 3, fixedNow)
	var names []string
	for _, r := range got {
		names = append(names, r.Name)
	}
	// stale-star: 20, a/b: ~10.41 each (tie broken by name), recent: 10.
	if fmt.Sprint(names) != "[stale-star a b]" {
		t.Fatalf("unexpected ranking: %v", names)
	}
}

func TestRankScore(t *testing.T) {
	if got := RankScore(Repository{Stars: 9, PushedAt: fixedNow}, fixedNow); got != 20 {
		t.Fatalf("expected 20, got %v", got)
	}
	if got := RankScore(Repository{Stars: 0}, fixedNow); got != 0 {
		t.Fatalf("expected 0 for no stars and no push date, got %v", got)
	}
}

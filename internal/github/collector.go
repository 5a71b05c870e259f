package github

import (
	"cmp"
	"context"
	"errors"
	"math"
	"slices"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/gh-profiler/internal/profile"
)

const (
	DefaultMaxReposAnalyzed    = 6
	DefaultCommitHistoryMonths = 12
	DefaultReadmeMinLength     = 500
	DefaultConcurrency         = 4

	readmeSampleLength = 1000
)

// Options tunes what the collector looks at.
type Options struct {
	MaxReposAnalyzed    int
	CommitHistoryMonths int
	// ReadmeMinLength marks READMEs longer than this as quality documentation.
	ReadmeMinLength int
	// Concurrency limits the in-flight per-repository fetches.
	Concurrency int
	Now         func() time.Time
	Logger      *zap.Logger
}

// Collector turns upstream calls into a normalized raw profile. It never retries.
type Collector struct {
	upstream Upstream
	opts     Options
	logger   *zap.Logger
}

// NewCollector wires a collector to an upstream. Zero options fall back to defaults.
func NewCollector(upstream Upstream, opts Options) *Collector {
	if opts.MaxReposAnalyzed <= 0 {
		opts.MaxReposAnalyzed = DefaultMaxReposAnalyzed
	}
	if opts.CommitHistoryMonths <= 0 {
		opts.CommitHistoryMonths = DefaultCommitHistoryMonths
	}
	if opts.ReadmeMinLength <= 0 {
		opts.ReadmeMinLength = DefaultReadmeMinLength
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Collector{upstream: upstream, opts: opts, logger: logger}
}

// Ping checks that the upstream answers.
func (c *Collector) Ping(ctx context.Context) error {
	return c.upstream.Ping(ctx)
}

type repoResult struct {
	snapshot profile.RepositorySnapshot
	commits  []time.Time
	skipped  string
}

// Fetch collects the raw profile of id. Profile and repository listing
// failures are fatal, as are rate limit, auth and timeout failures of any
// per-repository call. Other repository failures are recorded in Skipped.
func (c *Collector) Fetch(ctx context.Context, id profile.Identifier) (*profile.RawProfile, error) {
	login := id.String()
	now := c.opts.Now().UTC()
	logger := c.logger.With(zap.String("identifier", login))

	user, err := c.upstream.GetProfile(ctx, login)
	if err != nil {
		return nil, withIdentifier(err, id, "get profile")
	}

	listed, err := c.upstream.ListRepositories(ctx, login)
	if err != nil {
		return nil, withIdentifier(err, id, "list repositories")
	}

	selected := SelectRepositories(listed, c.opts.MaxReposAnalyzed, now)
	logger.Debug("selected repositories",
		zap.Int("listed", len(listed)),
		zap.Int("selected", len(selected)),
	)

	since := lookbackStart(now, c.opts.CommitHistoryMonths)
	results := make([]repoResult, len(selected))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	for i, repo := range selected {
		g.Go(func() error {
			res, err := c.collectRepository(gctx, repo, login, since)
			if err != nil {
				return err
			}
			results[i] = res
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, withIdentifier(err, id, "collect repositories")
	}

	raw := &profile.RawProfile{
		Identifier:   id,
		Name:         user.Name,
		Bio:          user.Bio,
		Location:     user.Location,
		Company:      user.Company,
		Blog:         user.Blog,
		ProfileURL:   user.HTMLURL,
		AvatarURL:    user.AvatarURL,
		Followers:    user.Followers,
		Following:    user.Following,
		PublicRepos:  user.PublicRepos,
		Repositories: make([]profile.RepositorySnapshot, 0, len(selected)),
		Activity:     emptyActivity(since, c.opts.CommitHistoryMonths),
		FetchedAt:    now,
	}

	for _, res := range results {
		if res.skipped != "" {
			raw.Skipped = append(raw.Skipped, profile.SkippedRepository{Name: res.snapshot.Name, Reason: res.skipped})
			logger.Warn("repository skipped",
				zap.String("repository", res.snapshot.Name),
				zap.String("reason", res.skipped),
			)
			continue
		}
		for _, date := range res.commits {
			if date.Before(since) || date.After(now) {
				continue
			}
			raw.Activity.Add(date, 1)
		}
		raw.Repositories = append(raw.Repositories, res.snapshot)
	}

	logger.Info("profile collected",
		zap.Int("repositories", len(raw.Repositories)),
		zap.Int("skipped", len(raw.Skipped)),
		zap.Int("commits", raw.Activity.TotalCommits),
	)

	return raw, nil
}

func (c *Collector) collectRepository(ctx context.Context, repo Repository, author string, since time.Time) (repoResult, error) {
	owner := repo.Owner
	if owner == "" {
		owner = author
	}

	res := repoResult{snapshot: profile.RepositorySnapshot{
		Name:            repo.Name,
		URL:             repo.HTMLURL,
		Description:     repo.Description,
		PrimaryLanguage: repo.Language,
		Topics:          slices.Clone(repo.Topics),
		Stars:           repo.Stars,
		Forks:           repo.Forks,
		IsFork:          repo.Fork,
		PushedAt:        repo.PushedAt,
	}}

	readme, err := c.upstream.GetReadme(ctx, owner, repo.Name)
	if err != nil {
		err = skipOrFail(&res, "readme", err)
		return res, err
	}
	if readme.Found {
		res.snapshot.HasReadme = true
		res.snapshot.ReadmeLength = utf8.RuneCountInString(readme.Content)
		res.snapshot.ReadmeQuality = res.snapshot.ReadmeLength > c.opts.ReadmeMinLength
		res.snapshot.ReadmeSample = truncateRunes(readme.Content, readmeSampleLength)
	}

	languages, err := c.upstream.ListLanguages(ctx, owner, repo.Name)
	if err != nil {
		err = skipOrFail(&res, "languages", err)
		return res, err
	}
	res.snapshot.Languages = languages

	commits, err := c.upstream.ListCommits(ctx, owner, repo.Name, author, since)
	if err != nil {
		err = skipOrFail(&res, "commits", err)
		return res, err
	}
	res.commits = commits
	res.snapshot.Commits = len(commits)

	return res, nil
}

// SelectRepositories drops forks when the account owns at least one non-fork
// repository, ranks the rest by RankScore and keeps the first limit.
func SelectRepositories(repos []Repository, limit int, now time.Time) []Repository {
	hasOwn := slices.ContainsFunc(repos, func(r Repository) bool { return !r.Fork })

	candidates := make([]Repository, 0, len(repos))
	for _, r := range repos {
		if hasOwn && r.Fork {
			continue
		}
		candidates = append(candidates, r)
	}

	slices.SortStableFunc(candidates, func(a, b Repository) int {
		if c := cmp.Compare(RankScore(b, now), RankScore(a, now)); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

// RankScore orders repositories by popularity and recency:
// log10(stars+1)*10 plus up to 10 points decaying linearly over a year since the last push.
func RankScore(r Repository, now time.Time) float64 {
	score := math.Log10(float64(max(r.Stars, 0))+1) * 10
	if !r.PushedAt.IsZero() {
		days := now.Sub(r.PushedAt).Hours() / 24
		score += 10 * math.Max(0, 1-days/365)
	}
	return score
}

// lookbackStart is the first day of the oldest month in the window.
func lookbackStart(now time.Time, months int) time.Time {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, -(months - 1), 0)
}

func emptyActivity(since time.Time, months int) profile.CommitActivity {
	activity := profile.CommitActivity{Months: months, ByMonth: make(map[string]int, months)}
	for i := 0; i < months; i++ {
		activity.ByMonth[profile.MonthKey(since.AddDate(0, i, 0))] = 0
	}
	return activity
}

func withIdentifier(err error, id profile.Identifier, op string) error {
	if pe, ok := profile.AsError(err); ok {
		copied := *pe
		copied.Identifier = id
		return &copied
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &profile.Error{Kind: profile.KindTimeout, Op: op, Identifier: id, Err: err}
	}
	return &profile.Error{Kind: profile.KindUpstreamUnavailable, Op: op, Identifier: id, Err: err}
}

// skipOrFail records err as a skip reason unless it concerns the whole
// account or the request, in which case it is returned.
func skipOrFail(res *repoResult, stage string, err error) error {
	if accountWide(err) {
		return err
	}
	res.skipped = skipReason(stage, err)
	return nil
}

func accountWide(err error) bool {
	switch profile.KindOf(err) {
	case profile.KindUpstreamRateLimited, profile.KindUpstreamAuthError, profile.KindTimeout:
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func skipReason(stage string, err error) string {
	if kind := profile.KindOf(err); kind != "" {
		return stage + ": " + string(kind)
	}
	return stage + ": " + err.Error()
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

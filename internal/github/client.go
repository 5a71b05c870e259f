package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v62/github"
	"go.uber.org/zap"

	"github.com/spigell/gh-profiler/internal/profile"
)

const (
	perPage = 100
	// maxRepoPages bounds repository listing to 300 repositories per account.
	maxRepoPages = 3
	// maxCommitPages bounds commit listing to 1000 commits per repository.
	maxCommitPages = 10
)

// ClientOptions configures the API adapter.
type ClientOptions struct {
	Token      string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
	Now        func() time.Time
}

// Client implements Upstream over the GitHub REST API.
type Client struct {
	api    *gh.Client
	logger *zap.Logger
	now    func() time.Time
}

// NewClient builds a client. Without a token the API is used anonymously with
// the lower public rate limit.
func NewClient(opts ClientOptions) (*Client, error) {
	api := gh.NewClient(opts.HTTPClient)
	if opts.Token != "" {
		api = api.WithAuthToken(opts.Token)
	}

	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		parsed, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parse github base url: %w", err)
		}
		api.BaseURL = parsed
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Client{api: api, logger: logger, now: now}, nil
}

func (c *Client) GetProfile(ctx context.Context, login string) (*User, error) {
	u, _, err := c.api.Users.Get(ctx, login)
	if err != nil {
		return nil, c.classify("get profile", err)
	}

	return &User{
		Login:       u.GetLogin(),
		Name:        u.GetName(),
		Bio:         u.GetBio(),
		Location:    u.GetLocation(),
		Company:     u.GetCompany(),
		Blog:        u.GetBlog(),
		HTMLURL:     u.GetHTMLURL(),
		AvatarURL:   u.GetAvatarURL(),
		Followers:   u.GetFollowers(),
		Following:   u.GetFollowing(),
		PublicRepos: u.GetPublicRepos(),
	}, nil
}

func (c *Client) ListRepositories(ctx context.Context, login string) ([]Repository, error) {
	opts := &gh.RepositoryListByUserOptions{
		Type:        "owner",
		Sort:        "pushed",
		Direction:   "desc",
		ListOptions: gh.ListOptions{PerPage: perPage},
	}

	var out []Repository
	for page := 0; page < maxRepoPages; page++ {
		repos, resp, err := c.api.Repositories.ListByUser(ctx, login, opts)
		if err != nil {
			return nil, c.classify("list repositories", err)
		}
		for _, r := range repos {
			out = append(out, Repository{
				Owner:       r.GetOwner().GetLogin(),
				Name:        r.GetName(),
				HTMLURL:     r.GetHTMLURL(),
				Description: r.GetDescription(),
				Language:    r.GetLanguage(),
				Topics:      r.Topics,
				Stars:       r.GetStargazersCount(),
				Forks:       r.GetForksCount(),
				Fork:        r.GetFork(),
				PushedAt:    r.GetPushedAt().Time,
			})
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return out, nil
}

func (c *Client) GetReadme(ctx context.Context, owner, repo string) (Readme, error) {
	content, _, err := c.api.Repositories.GetReadme(ctx, owner, repo, nil)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return Readme{}, nil
		}
		return Readme{}, c.classify("get readme", err)
	}

	text, err := content.GetContent()
	if err != nil {
		return Readme{}, profile.NewError(profile.KindUpstreamUnavailable, "decode readme", err)
	}

	return Readme{Content: text, Found: true}, nil
}

func (c *Client) ListCommits(ctx context.Context, owner, repo, author string, since time.Time) ([]time.Time, error) {
	opts := &gh.CommitsListOptions{
		Author:      author,
		Since:       since,
		ListOptions: gh.ListOptions{PerPage: perPage},
	}

	var dates []time.Time
	for page := 0; page < maxCommitPages; page++ {
		commits, resp, err := c.api.Repositories.ListCommits(ctx, owner, repo, opts)
		if err != nil {
			// An empty repository answers 409 Conflict.
			if isStatus(err, http.StatusConflict) {
				return nil, nil
			}
			return nil, c.classify("list commits", err)
		}
		for _, commit := range commits {
			date := commit.GetCommit().GetAuthor().GetDate().Time
			if date.IsZero() {
				date = commit.GetCommit().GetCommitter().GetDate().Time
			}
			if !date.IsZero() {
				dates = append(dates, date)
			}
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return dates, nil
}

func (c *Client) ListLanguages(ctx context.Context, owner, repo string) (map[string]int, error) {
	langs, _, err := c.api.Repositories.ListLanguages(ctx, owner, repo)
	if err != nil {
		return nil, c.classify("list languages", err)
	}
	return langs, nil
}

// Ping checks credentials and reachability through the rate limit endpoint,
// which does not count against the quota.
func (c *Client) Ping(ctx context.Context) error {
	limits, _, err := c.api.RateLimit.Get(ctx)
	if err != nil {
		return c.classify("ping", err)
	}
	if core := limits.GetCore(); core != nil {
		c.logger.Debug("github rate limit",
			zap.Int("limit", core.Limit),
			zap.Int("remaining", core.Remaining),
			zap.Time("reset", core.Reset.Time),
		)
	}
	return nil
}

func (c *Client) classify(op string, err error) error {
	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		retryAfter := rateErr.Rate.Reset.Time.Sub(c.now())
		if retryAfter < 0 {
			retryAfter = 0
		}
		return &profile.Error{Kind: profile.KindUpstreamRateLimited, Op: op, RetryAfter: retryAfter, Err: err}
	}

	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &profile.Error{Kind: profile.KindUpstreamRateLimited, Op: op, RetryAfter: abuseErr.GetRetryAfter(), Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return profile.NewError(profile.KindTimeout, op, err)
	}

	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch code := respErr.Response.StatusCode; {
		case code == http.StatusNotFound:
			return profile.NewError(profile.KindProfileNotFound, op, err)
		case code == http.StatusUnauthorized || code == http.StatusForbidden:
			return profile.NewError(profile.KindUpstreamAuthError, op, err)
		case code == http.StatusTooManyRequests:
			return &profile.Error{Kind: profile.KindUpstreamRateLimited, Op: op, RetryAfter: retryAfterHeader(respErr.Response), Err: err}
		default:
			return profile.NewError(profile.KindUpstreamUnavailable, op, err)
		}
	}

	return profile.NewError(profile.KindUpstreamUnavailable, op, err)
}

func isStatus(err error, status int) bool {
	var respErr *gh.ErrorResponse
	return errors.As(err, &respErr) && respErr.Response != nil && respErr.Response.StatusCode == status
}

func retryAfterHeader(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v + "s")
	if err != nil {
		return 0
	}
	return d
}

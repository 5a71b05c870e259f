package profile

import (
	"maps"
	"slices"
	"time"
)

// Identifier is a canonical GitHub handle. It is the cache and storage key.
type Identifier string

func (i Identifier) String() string { return string(i) }

// RawProfile is the normalized collector output for one developer.
type RawProfile struct {
	Identifier   Identifier           `json:"identifier" yaml:"identifier"`
	Name         string               `json:"name,omitempty" yaml:"name,omitempty"`
	Bio          string               `json:"bio,omitempty" yaml:"bio,omitempty"`
	Location     string               `json:"location,omitempty" yaml:"location,omitempty"`
	Company      string               `json:"company,omitempty" yaml:"company,omitempty"`
	Blog         string               `json:"blog,omitempty" yaml:"blog,omitempty"`
	ProfileURL   string               `json:"profile_url,omitempty" yaml:"profile_url,omitempty"`
	AvatarURL    string               `json:"avatar_url,omitempty" yaml:"avatar_url,omitempty"`
	Followers    int                  `json:"followers" yaml:"followers"`
	Following    int                  `json:"following" yaml:"following"`
	PublicRepos  int                  `json:"public_repos" yaml:"public_repos"`
	Repositories []RepositorySnapshot `json:"repositories" yaml:"repositories"`
	Activity     CommitActivity       `json:"commit_activity" yaml:"commit_activity"`
	Skipped      []SkippedRepository  `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	FetchedAt    time.Time            `json:"fetched_at" yaml:"fetched_at"`
}

// RepositorySnapshot describes one analyzed repository.
type RepositorySnapshot struct {
	Name            string         `json:"name" yaml:"name"`
	URL             string         `json:"url,omitempty" yaml:"url,omitempty"`
	Description     string         `json:"description,omitempty" yaml:"description,omitempty"`
	PrimaryLanguage string         `json:"language,omitempty" yaml:"language,omitempty"`
	Languages       map[string]int `json:"languages,omitempty" yaml:"languages,omitempty"`
	Topics          []string       `json:"topics,omitempty" yaml:"topics,omitempty"`
	Stars           int            `json:"stars" yaml:"stars"`
	Forks           int            `json:"forks" yaml:"forks"`
	IsFork          bool           `json:"is_fork" yaml:"is_fork"`
	HasReadme       bool           `json:"has_readme" yaml:"has_readme"`
	ReadmeLength    int            `json:"readme_length" yaml:"readme_length"`
	ReadmeQuality   bool           `json:"readme_quality" yaml:"readme_quality"`
	ReadmeSample    string         `json:"readme_sample,omitempty" yaml:"readme_sample,omitempty"`
	PushedAt        time.Time      `json:"pushed_at" yaml:"pushed_at"`
	Commits         int            `json:"commits" yaml:"commits"`
}

// HasDescription reports whether the repository carries a non-empty description.
func (r RepositorySnapshot) HasDescription() bool {
	return r.Description != ""
}

// SkippedRepository records a repository that could not be analyzed.
type SkippedRepository struct {
	Name   string `json:"name" yaml:"name"`
	Reason string `json:"reason" yaml:"reason"`
}

// CommitActivity holds per-month commit counts over the lookback window.
// Months are keyed YYYY-MM.
type CommitActivity struct {
	Months       int            `json:"analysis_period_months" yaml:"analysis_period_months"`
	ByMonth      map[string]int `json:"commits_by_month" yaml:"commits_by_month"`
	TotalCommits int            `json:"total_commits" yaml:"total_commits"`
}

// ActiveMonths counts the buckets with at least one commit.
func (a CommitActivity) ActiveMonths() int {
	active := 0
	for _, n := range a.ByMonth {
		if n > 0 {
			active++
		}
	}
	return active
}

// Add records count commits for the month containing t.
func (a *CommitActivity) Add(t time.Time, count int) {
	if a.ByMonth == nil {
		a.ByMonth = make(map[string]int)
	}
	a.ByMonth[MonthKey(t)] += count
	a.TotalCommits += count
}

// MonthKey formats the bucket key for t.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// Clone returns a deep copy so callers never share mutable state with the cache.
func (p *RawProfile) Clone() *RawProfile {
	if p == nil {
		return nil
	}

	out := *p
	out.Repositories = make([]RepositorySnapshot, len(p.Repositories))
	for i, repo := range p.Repositories {
		repo.Languages = maps.Clone(repo.Languages)
		repo.Topics = slices.Clone(repo.Topics)
		out.Repositories[i] = repo
	}
	out.Activity.ByMonth = maps.Clone(p.Activity.ByMonth)
	out.Skipped = slices.Clone(p.Skipped)

	return &out
}

// Languages returns the distinct primary languages across repositories, sorted.
func (p *RawProfile) Languages() []string {
	seen := make(map[string]struct{})
	for _, repo := range p.Repositories {
		if repo.PrimaryLanguage == "" {
			continue
		}
		seen[repo.PrimaryLanguage] = struct{}{}
	}
	return slices.Sorted(maps.Keys(seen))
}

// TotalStars sums the stars of analyzed repositories.
func (p *RawProfile) TotalStars() int {
	total := 0
	for _, repo := range p.Repositories {
		total += repo.Stars
	}
	return total
}

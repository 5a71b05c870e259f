// Package github collects the public footprint of a developer from the
// code-hosting API and normalizes it into a profile.RawProfile.
package github

import (
	"context"
	"time"
)

// User is the account metadata returned by the profile call.
type User struct {
	Login       string
	Name        string
	Bio         string
	Location    string
	Company     string
	Blog        string
	HTMLURL     string
	AvatarURL   string
	Followers   int
	Following   int
	PublicRepos int
}

// Repository is one owned repository as listed upstream.
type Repository struct {
	Owner       string
	Name        string
	HTMLURL     string
	Description string
	Language    string
	Topics      []string
	Stars       int
	Forks       int
	Fork        bool
	PushedAt    time.Time
}

// Readme is the decoded README of a repository.
type Readme struct {
	Content string
	Found   bool
}

// Upstream is the code-hosting collaborator. Errors are *profile.Error values
// classified by kind.
type Upstream interface {
	GetProfile(ctx context.Context, login string) (*User, error)
	ListRepositories(ctx context.Context, login string) ([]Repository, error)
	// GetReadme reports Found=false with a nil error when the repository has no README.
	GetReadme(ctx context.Context, owner, repo string) (Readme, error)
	// ListCommits returns author dates of commits by author since the given time.
	ListCommits(ctx context.Context, owner, repo, author string, since time.Time) ([]time.Time, error)
	ListLanguages(ctx context.Context, owner, repo string) (map[string]int, error)
	Ping(ctx context.Context) error
}

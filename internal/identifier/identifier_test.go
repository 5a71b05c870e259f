package identifier

import (
	"errors"
	"strings"
	"testing"

	"github.com/spigell/gh-profiler/internal/profile"
)

func TestNormalizeEquivalentForms(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"octocat",
		"github.com/octocat",
		"https://github.com/octocat",
		"https://github.com/octocat/",
		"http://www.github.com/octocat?tab=repositories",
		"  @octocat  ",
		"OctoCat",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			t.Parallel()
			got, err := Normalize(input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != "octocat" {
				t.Fatalf("expected octocat, got %q", got)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{"octocat", "https://github.com/Some-User/", "@a", "github.com/x1-y2"}
	for _, input := range inputs {
		once, err := Normalize(input)
		if err != nil {
			t.Fatalf("normalize %q: %v", input, err)
		}
		twice, err := Normalize(string(once))
		if err != nil {
			t.Fatalf("normalize %q twice: %v", input, err)
		}
		if once != twice {
			t.Fatalf("not idempotent: %q -> %q -> %q", input, once, twice)
		}
	}
}

func TestNormalizeRejectsInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "whitespace", input: "   "},
		{name: "only slashes", input: "https://github.com///"},
		{name: "leading hyphen", input: "-octocat"},
		{name: "trailing hyphen", input: "octocat-"},
		{name: "underscore", input: "octo_cat"},
		{name: "dot", input: "github.com"},
		{name: "too long", input: strings.Repeat("a", MaxLength+1)},
		{name: "bare at", input: "@"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Normalize(tt.input)
			if err == nil {
				t.Fatalf("expected error for %q", tt.input)
			}
			if !errors.Is(err, profile.ErrInvalidIdentifier) {
				t.Fatalf("expected InvalidIdentifier, got %v", err)
			}
		})
	}
}

func TestNormalizeAcceptsMaxLength(t *testing.T) {
	input := strings.Repeat("a", MaxLength)
	if _, err := Normalize(input); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// Package identifier canonicalizes user supplied GitHub handles and profile URLs.
package identifier

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/spigell/gh-profiler/internal/profile"
)

// MaxLength is the longest handle GitHub accepts.
const MaxLength = 39

var handlePattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]*[a-z0-9])?$`)

// Normalize reduces a handle, host/handle or scheme://host/handle input to the bare
// lower-cased handle. Normalize(Normalize(x)) == Normalize(x).
func Normalize(input string) (profile.Identifier, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", invalid(input, errors.New("empty input"))
	}

	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}

	handle := lastSegment(s)
	handle = strings.TrimPrefix(handle, "@")
	handle = strings.ToLower(handle)

	if handle == "" {
		return "", invalid(input, errors.New("no handle found"))
	}
	if len(handle) > MaxLength {
		return "", invalid(input, fmt.Errorf("handle longer than %d characters", MaxLength))
	}
	if !handlePattern.MatchString(handle) {
		return "", invalid(input, errors.New("handle must be alphanumeric or hyphens and must not start or end with a hyphen"))
	}

	return profile.Identifier(handle), nil
}

// MustNormalize is Normalize for inputs known to be valid, e.g. in tests.
func MustNormalize(input string) profile.Identifier {
	id, err := Normalize(input)
	if err != nil {
		panic(err)
	}
	return id
}

func lastSegment(s string) string {
	segments := strings.Split(s, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if seg := strings.TrimSpace(segments[i]); seg != "" {
			return seg
		}
	}
	return ""
}

func invalid(input string, err error) error {
	return &profile.Error{
		Kind: profile.KindInvalidIdentifier,
		Op:   "normalize",
		Err:  fmt.Errorf("%q: %w", input, err),
	}
}

package gitlib

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
)

// DefaultRemoteTemplate turns "org/name" into a GitHub HTTPS remote.
const DefaultRemoteTemplate = "https://github.com/{repo}.git"

// ErrInvalidRemote is returned for repository names or templates that do
// not produce a usable remote.
var ErrInvalidRemote = errors.New("invalid remote")

const repoPlaceholder = "{repo}"

// RemoteURL expands template for repo ("org/name") and validates the result.
func RemoteURL(template, repo string) (string, error) {
	if template == "" {
		template = DefaultRemoteTemplate
	}

	if !strings.Contains(template, repoPlaceholder) {
		return "", fmt.Errorf("%w: template %q has no %s placeholder", ErrInvalidRemote, template, repoPlaceholder)
	}

	err := validateRepoName(repo)
	if err != nil {
		return "", err
	}

	raw := strings.ReplaceAll(template, repoPlaceholder, repo)

	ep, err := transport.NewEndpoint(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrInvalidRemote, raw, err)
	}

	if strings.Trim(ep.Path, "/") == "" {
		return "", fmt.Errorf("%w: %s has no path", ErrInvalidRemote, raw)
	}

	return raw, nil
}

func validateRepoName(repo string) error {
	org, name, ok := strings.Cut(repo, "/")
	if !ok || org == "" || name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("%w: repository %q is not org/name", ErrInvalidRemote, repo)
	}

	for _, part := range []string{org, name} {
		if part == "." || part == ".." || strings.HasPrefix(part, "-") ||
			strings.ContainsAny(part, " \t\n\\:@?#") {
			return fmt.Errorf("%w: repository %q", ErrInvalidRemote, repo)
		}
	}

	return nil
}

// RedactURL strips user info from URL-style remotes for logs and errors.
func RedactURL(remote string) string {
	u, err := url.Parse(remote)
	if err != nil || u.User == nil {
		return remote
	}

	u.User = nil

	return u.String()
}

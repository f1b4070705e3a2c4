package domain

import (
	"regexp"
	"strings"
)

var githubRepoPattern = regexp.MustCompile(`github\.com/([^/]+)/([^/]+)`)

const invalidRepositoryURLMessage = "Invalid GitHub repository URL. Expected format: https://github.com/user/repo"

// RepositoryRef identifies a public GitHub repository.
type RepositoryRef struct {
	Owner string
	Name  string
}

func (r RepositoryRef) Path() string {
	return r.Owner + "/" + r.Name
}

// ParseRepositoryURL extracts owner/repo from a URL such as
// https://github.com/acme/site. A trailing ".git", query or fragment on the
// repo segment is dropped.
func ParseRepositoryURL(raw string) (RepositoryRef, error) {
	m := githubRepoPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return RepositoryRef{}, NewUserError(ErrInvalidInput, invalidRepositoryURLMessage, nil)
	}
	name := m[2]
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	name = strings.TrimSuffix(name, ".git")
	if m[1] == "" || name == "" {
		return RepositoryRef{}, NewUserError(ErrInvalidInput, invalidRepositoryURLMessage, nil)
	}
	return RepositoryRef{Owner: m[1], Name: name}, nil
}

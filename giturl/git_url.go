// Package giturl parses different git url syntax and builds
// authenticated remote URLs
package giturl

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

var (
	// The repository name can contain
	// ASCII letters, digits, and the characters ., -, and _.

	// user@host.xz:path/to/repo.git
	scpURLRgx = regexp.MustCompile(`^(?P<user>[\w\-\.]+)@(?P<host>([\w\-]+\.?[\w\-]+)+(\:\d+)?):(?P<path>([\w\-\.]+\/)*)(?P<repo>[\w\-\.]+(\.git)?)$`)

	// ssh://user@host.xz[:port]/path/to/repo.git
	sshURLRgx = regexp.MustCompile(`^ssh://(?P<user>[\w\-\.]+)@(?P<host>([\w\-]+\.?[\w\-]+)+(\:\d+)??)/(?P<path>([\w\-\.]+\/)*)(?P<repo>[\w\-\.]+(\.git)?)$`)

	// http[s]://[user[:password]@]host.xz[:port]/path/to/repo.git
	// password is matched but never captured
	httpURLRgx = regexp.MustCompile(`^(?P<scheme>https?)://((?P<user>[\w\-\.]+)(:[^@/]*)?@)?(?P<host>([\w\-]+\.?[\w\-]+)+(\:\d+)?)/(?P<path>([\w\-\.]+\/)*)(?P<repo>[\w\-\.]+(\.git)?)$`)

	// file:///path/to/repo.git
	localURLRgx = regexp.MustCompile(`^file:///(?P<path>([\w\-\.]+\/)*)(?P<repo>[\w\-\.]+(\.git)?)$`)
)

// schemes which support credentials in the user-info part of the URL
var credentialSchemes = []string{"http", "https"}

// URL represents parsed git url
type URL struct {
	Scheme string // value will be either 'scp', 'ssh', 'http', 'https' or 'local'
	User   string // might be empty for http and local urls
	Host   string // host or host:port
	Path   string // path to the repo
	Repo   string // repository name from the path includes .git
}

// String returns credential free representation of the URL
// which is safe to use in logs and metric labels
func (u *URL) String() string {
	if u.Host == "" {
		return u.Path + "/" + u.Repo
	}
	return u.Host + "/" + u.Path + "/" + u.Repo
}

// NormaliseURL will return normalised url
func NormaliseURL(rawURL string) string {
	nURL := strings.ToLower(strings.TrimSpace(rawURL))
	nURL = strings.TrimRight(nURL, "/")

	return nURL
}

// Parse parses a raw url into a URL structure.
// valid git urls are...
//   - user@host.xz:path/to/repo.git
//   - ssh://user@host.xz[:port]/path/to/repo.git
//   - http[s]://host.xz[:port]/path/to/repo.git
//   - file:///path/to/repo.git
func Parse(rawURL string) (*URL, error) {
	gURL := &URL{}

	rawURL = NormaliseURL(rawURL)

	var sections []string

	switch {
	case IsSCPURL(rawURL):
		sections = scpURLRgx.FindStringSubmatch(rawURL)
		gURL.Scheme = "scp"
		gURL.User = sections[scpURLRgx.SubexpIndex("user")]
		gURL.Host = sections[scpURLRgx.SubexpIndex("host")]
		gURL.Path = sections[scpURLRgx.SubexpIndex("path")]
		gURL.Repo = sections[scpURLRgx.SubexpIndex("repo")]
	case IsSSHURL(rawURL):
		sections = sshURLRgx.FindStringSubmatch(rawURL)
		gURL.Scheme = "ssh"
		gURL.User = sections[sshURLRgx.SubexpIndex("user")]
		gURL.Host = sections[sshURLRgx.SubexpIndex("host")]
		gURL.Path = sections[sshURLRgx.SubexpIndex("path")]
		gURL.Repo = sections[sshURLRgx.SubexpIndex("repo")]
	case IsHTTPURL(rawURL):
		sections = httpURLRgx.FindStringSubmatch(rawURL)
		gURL.Scheme = sections[httpURLRgx.SubexpIndex("scheme")]
		gURL.User = sections[httpURLRgx.SubexpIndex("user")]
		gURL.Host = sections[httpURLRgx.SubexpIndex("host")]
		gURL.Path = sections[httpURLRgx.SubexpIndex("path")]
		gURL.Repo = sections[httpURLRgx.SubexpIndex("repo")]
	case IsLocalURL(rawURL):
		sections = localURLRgx.FindStringSubmatch(rawURL)
		gURL.Scheme = "local"
		gURL.Path = sections[localURLRgx.SubexpIndex("path")]
		gURL.Repo = sections[localURLRgx.SubexpIndex("repo")]
	default:
		return nil, fmt.Errorf(
			"provided remote url is invalid, supported urls are 'user@host.xz:path/to/repo.git','ssh://user@host.xz/path/to/repo.git', 'https://host.xz/path/to/repo.git' or 'file:///path/to/repo.git'")
	}

	// scp path doesn't have leading "/"
	// also removing training "/" for consistency
	gURL.Path = strings.Trim(gURL.Path, "/")

	if gURL.Path == "" {
		return nil, fmt.Errorf("repo path (org) cannot be empty")
	}
	if gURL.Repo == "" || gURL.Repo == ".git" {
		return nil, fmt.Errorf("repo name is invalid")
	}

	return gURL, nil
}

// Equals returns whether or not the two parsed git URLs are equivalent.
// git URLs can be represented in multiple schemes so if host, path and repo name
// of URLs are same then those URLs are for the same remote repository
func (lURL *URL) Equals(rURL *URL) bool {
	return lURL.Host == rURL.Host &&
		lURL.Path == rURL.Path &&
		(lURL.Repo == rURL.Repo ||
			strings.TrimSuffix(lURL.Repo, ".git") == strings.TrimSuffix(rURL.Repo, ".git"))
}

// Redacted returns credential free label for the given raw url. it falls back
// to the scheme alone if url cannot be parsed.
func Redacted(rawURL string) string {
	if gURL, err := Parse(rawURL); err == nil {
		return gURL.String()
	}
	scheme, _, ok := strings.Cut(rawURL, "://")
	if !ok {
		return "unknown"
	}
	return strings.ToLower(scheme) + "://unknown"
}

// AuthenticatedURL returns given url with "username:password@" inserted
// right after the scheme delimiter. credentials are only added for schemes
// which support user-info (http and https) and only if the url doesn't
// already contain user-info and at least one of username or password is set.
// for all other urls rawURL is returned unchanged.
// credentials are inserted as is, any reserved character must be
// percent-encoded by the caller.
func AuthenticatedURL(rawURL, username, password string) string {
	if username == "" && password == "" {
		return rawURL
	}

	scheme, rest, ok := strings.Cut(rawURL, "://")
	if !ok || !supportsCredentials(scheme) {
		return rawURL
	}

	authority := rest
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		authority = rest[:i]
	}
	if strings.Contains(authority, "@") {
		return rawURL
	}

	return scheme + "://" + username + ":" + password + "@" + rest
}

func supportsCredentials(scheme string) bool {
	return slices.Contains(credentialSchemes, strings.ToLower(scheme))
}

// IsSCPURL returns true if supplied URL is scp-like syntax
func IsSCPURL(rawURL string) bool {
	return scpURLRgx.MatchString(rawURL)
}

// IsSSHURL returns true if supplied URL is SSH URL
func IsSSHURL(rawURL string) bool {
	return sshURLRgx.MatchString(rawURL)
}

// IsHTTPURL returns true if supplied URL is HTTP or HTTPS URL
func IsHTTPURL(rawURL string) bool {
	return httpURLRgx.MatchString(rawURL)
}

// IsLocalURL returns true if supplied URL is file URL
func IsLocalURL(rawURL string) bool {
	return localURLRgx.MatchString(rawURL)
}

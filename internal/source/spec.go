package source

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/igr88/archetect/internal/apperr"
)

// Kind says where a source lives.
type Kind int

const (
	Local Kind = iota
	Remote
)

func (k Kind) String() string {
	if k == Remote {
		return "remote"
	}
	return "local"
}

// Spec is a parsed source specifier.
type Spec struct {
	Raw  string
	Kind Kind

	// Path is the absolute local path of a Local spec.
	Path string

	// URL is the clone URL of a Remote spec, without the ref suffix.
	URL  string
	Ref  string
	Host string
	Repo string // repository path on Host, without ".git"
}

var (
	sshGitPattern = regexp.MustCompile(`^\S+@([^:/\s]+):(.+)$`)
	objectID      = regexp.MustCompile(`^(?:[0-9a-f]{40}|[0-9a-f]{64})$`)
)

// Parse interprets raw. A relative local path is resolved against
// relativeTo, or the working directory when relativeTo is empty. Local paths
// are not checked for existence here.
func Parse(raw, relativeTo string) (Spec, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Spec{}, apperr.New(apperr.KindSourceResolution, "parse source", raw, "empty source")
	}

	if !strings.Contains(raw, "://") {
		base, ref, _ := strings.Cut(raw, "#")
		if m := sshGitPattern.FindStringSubmatch(base); m != nil && !looksLikeWindowsPath(base) {
			return remote(raw, base, ref, m[1], m[2])
		}
		return local(raw, raw, relativeTo)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Spec{}, apperr.Wrap(apperr.KindSourceResolution, "parse source", raw, err)
	}
	ref := u.Fragment
	u.Fragment = ""
	u.RawFragment = ""

	switch u.Scheme {
	case "file":
		if u.Host != "" && u.Host != "localhost" {
			return Spec{}, apperr.Errorf(apperr.KindSourceResolution, "parse source", raw, "unsupported file URL host %q", u.Host)
		}
		if strings.HasSuffix(strings.TrimSuffix(u.Path, "/"), ".git") {
			return remote(raw, u.String(), ref, "", u.Path)
		}
		if ref != "" {
			return Spec{}, apperr.New(apperr.KindSourceResolution, "parse source", raw, "a ref is only valid on a repository source")
		}
		return local(raw, u.Path, relativeTo)
	case "http", "https", "ssh", "git":
		if u.Host == "" {
			return Spec{}, apperr.New(apperr.KindSourceResolution, "parse source", raw, "remote source has no host")
		}
		return remote(raw, u.String(), ref, u.Hostname(), u.Path)
	default:
		return Spec{}, apperr.Errorf(apperr.KindSourceResolution, "parse source", raw, "unsupported scheme %q", u.Scheme)
	}
}

func remote(raw, cloneURL, ref, host, repo string) (Spec, error) {
	repo = strings.Trim(repo, "/")
	repo = strings.TrimSuffix(repo, ".git")
	if repo == "" {
		return Spec{}, apperr.New(apperr.KindSourceResolution, "parse source", raw, "remote source has no repository path")
	}
	return Spec{
		Raw:  raw,
		Kind: Remote,
		URL:  cloneURL,
		Ref:  ref,
		Host: strings.ToLower(host),
		Repo: repo,
	}, nil
}

func local(raw, path, relativeTo string) (Spec, error) {
	expanded, err := expand(path)
	if err != nil {
		return Spec{}, apperr.Wrap(apperr.KindSourceResolution, "parse source", raw, err)
	}
	if !filepath.IsAbs(expanded) {
		if relativeTo != "" {
			expanded = filepath.Join(relativeTo, expanded)
		}
		expanded, err = filepath.Abs(expanded)
		if err != nil {
			return Spec{}, apperr.Wrap(apperr.KindSourceResolution, "parse source", raw, err)
		}
	}
	return Spec{Raw: raw, Kind: Local, Path: filepath.Clean(expanded)}, nil
}

// expand resolves a leading "~" and $VAR references.
func expand(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expanding ~: %w", err)
		}
		path = filepath.Join(home, path[1:])
	}
	return os.ExpandEnv(path), nil
}

func looksLikeWindowsPath(s string) bool {
	return len(s) >= 2 && s[1] == ':' && (s[0] >= 'A' && s[0] <= 'Z' || s[0] >= 'a' && s[0] <= 'z')
}

// IsRemote reports whether s must be fetched through the cache.
func (s Spec) IsRemote() bool { return s.Kind == Remote }

// Pinned reports whether s names an exact commit. Pinned specifiers are
// immutable: once cached they are never fetched again.
func (s Spec) Pinned() bool {
	return s.Kind == Remote && objectID.MatchString(strings.ToLower(s.Ref))
}

// Normalized is the identity of s used for cache keys and cycle detection.
// Equivalent spellings of the same repository and ref normalize alike.
func (s Spec) Normalized() string {
	if s.Kind == Local {
		return s.Path
	}
	n := s.Repo
	if s.Host != "" {
		n = s.Host + "/" + s.Repo
	}
	if s.Ref != "" {
		n += "#" + s.Ref
	}
	return n
}

// Key is a filesystem-safe cache slot name for s.
func (s Spec) Key() string {
	sum := sha256.Sum256([]byte(s.Normalized()))
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, strings.TrimPrefix(s.Host+"/"+s.Repo, "/"))
	if len(slug) > 48 {
		slug = slug[len(slug)-48:]
	}
	return slug + "-" + hex.EncodeToString(sum[:6])
}

func (s Spec) String() string {
	if s.Raw != "" {
		return s.Raw
	}
	return s.Normalized()
}

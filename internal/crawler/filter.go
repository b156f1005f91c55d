package crawler

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/nao1215/spiderq/internal/model"
)

// allow decides whether a request discovered from parent goes back on the queue.
func (e *Engine) allow(parent, next *model.Request) bool {
	if e.maxDepth >= 0 && next.Depth > e.maxDepth {
		return false
	}
	if !e.crossHost && !isSameHost(parent.Host(), next) {
		return false
	}
	return e.shouldCrawl(next.URL)
}

// isSameHost reports whether next targets baseHost.
// Relative URLs, which have no host, count as the same host.
func isSameHost(baseHost string, next *model.Request) bool {
	host := next.Host()
	if host == "" {
		return true
	}
	return strings.EqualFold(host, baseHost)
}

// shouldCrawl checks a URL against the ignore and follow patterns.
//
// Logic:
//  1. If the path matches any ignore pattern, skip it
//  2. If follow patterns are set and the path matches none, skip it
//  3. Otherwise, crawl it
func (e *Engine) shouldCrawl(targetURL string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range e.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(e.followPatterns) > 0 {
		for _, pattern := range e.followPatterns {
			if matchPattern(pattern, path) {
				return true
			}
		}
		return false
	}

	return true
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//   - a trailing /* to match the prefix and everything below it
//   - a leading *. to match a file extension at any depth
//
// Examples:
//   - "/admin/*" matches "/admin", "/admin/users/edit"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func matchPattern(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if ext, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(ext, ".") {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	matched, err := filepath.Match(pattern, path)
	if err != nil {
		return false
	}
	if matched {
		return true
	}

	// bare filename globs such as "report-*" match the last segment
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		matched, err := filepath.Match(pattern, filepath.Base(path))
		if err == nil && matched {
			return true
		}
	}

	return false
}

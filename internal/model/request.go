package model

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/text/unicode/norm"
)

// ErrInvalidURL is returned when a request URL cannot be parsed.
var ErrInvalidURL = errors.New("invalid request URL")

// Request is one unit of crawl work flowing through the queue.
// Only URL is required; the remaining fields travel with the request so
// the consumer that eventually fetches it sees exactly what the producer
// scheduled.
type Request struct {
	// URL is the target of the request. It may be absolute or a bare path.
	URL string `json:"url"`

	// Method is the HTTP method. Empty means GET.
	Method string `json:"method,omitempty"`

	// Header holds request headers in canonical form.
	Header map[string][]string `json:"header"`

	// Body is the request body, if any.
	Body []byte `json:"body"`

	// Depth is the number of link hops from the seed request.
	Depth int `json:"depth,omitempty"`

	// Meta carries arbitrary producer data to the consumer.
	Meta map[string]string `json:"meta"`
}

// NewRequest creates a GET request for rawURL at depth 0.
func NewRequest(rawURL string) (*Request, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, fmt.Errorf("%w: empty URL", ErrInvalidURL)
	}
	if _, err := url.Parse(rawURL); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	return &Request{URL: rawURL, Method: http.MethodGet}, nil
}

// Key returns the logical deduplication key of the request.
// Unparsable URLs fall back to the raw string so that every request has a key.
func (r *Request) Key() string {
	key, err := NormalizeKey(r.URL)
	if err != nil {
		return r.URL
	}
	return key
}

// GetHeader returns the first value of the named header, or "".
func (r *Request) GetHeader(name string) string {
	if values, ok := r.Header[http.CanonicalHeaderKey(name)]; ok && len(values) > 0 {
		return values[0]
	}
	return ""
}

// SetHeader replaces the named header with a single value.
func (r *Request) SetHeader(name, value string) {
	if r.Header == nil {
		r.Header = make(map[string][]string)
	}
	r.Header[http.CanonicalHeaderKey(name)] = []string{value}
}

// Child derives a request for a link discovered while handling r.
// Relative links resolve against r.URL. The child inherits headers and
// sits one level deeper.
func (r *Request) Child(rawURL string) (*Request, error) {
	target := strings.TrimSpace(rawURL)
	if base, err := url.Parse(r.URL); err == nil {
		if ref, err := url.Parse(target); err == nil {
			target = base.ResolveReference(ref).String()
		}
	}

	child, err := NewRequest(target)
	if err != nil {
		return nil, err
	}
	child.Depth = r.Depth + 1
	if len(r.Header) > 0 {
		child.Header = make(map[string][]string, len(r.Header))
		for k, v := range r.Header {
			child.Header[k] = append([]string(nil), v...)
		}
	}
	return child, nil
}

// Host returns the lower-cased host of the request URL, or "" for bare paths.
func (r *Request) Host() string {
	u, err := url.Parse(r.URL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// NormalizeKey normalizes a URL into a deduplication key.
//
// The same page can be reached through different spellings, so:
//   - the fragment is dropped
//   - scheme and host are lower-cased, and the host is converted to its
//     IDNA ASCII form
//   - the path is NFC-normalized and an empty path becomes "/"
//
// The query string is kept verbatim.
func NormalizeKey(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = normalizeHost(u)

	u.Path = norm.NFC.String(u.Path)
	u.RawPath = ""
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String(), nil
}

// normalizeHost lower-cases the host and converts it to ASCII, keeping the port.
func normalizeHost(u *url.URL) string {
	if u.Host == "" {
		return ""
	}

	hostname := strings.ToLower(u.Hostname())
	if ascii, err := idna.Lookup.ToASCII(hostname); err == nil {
		hostname = ascii
	}
	if strings.Contains(hostname, ":") {
		hostname = "[" + hostname + "]"
	}
	if port := u.Port(); port != "" {
		return hostname + ":" + port
	}
	return hostname
}

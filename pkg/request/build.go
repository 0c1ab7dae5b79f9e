package request

import (
	"strings"

	"github.com/matzehuels/bulkstat/pkg/errors"
)

// Protocol is a URL scheme accepted by [Build].
type Protocol string

// Recognised protocols.
const (
	HTTP  Protocol = "http"
	HTTPS Protocol = "https"
	FTP   Protocol = "ftp"

	DefaultProtocol = HTTPS
)

// Protocols lists every accepted protocol.
var Protocols = []Protocol{HTTP, HTTPS, FTP}

// Valid reports whether p is in the allow-list.
func (p Protocol) Valid() bool {
	for _, known := range Protocols {
		if p == known {
			return true
		}
	}
	return false
}

// ParseProtocol validates s against the allow-list.
func ParseProtocol(s string) (Protocol, error) {
	p := Protocol(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", errors.New(errors.ErrCodeConfig, "protocol %q not recognised (want http, https or ftp)", s)
	}
	return p, nil
}

// Spec describes one request against the service.
type Spec struct {
	Base     string   // Host and optional path, with or without scheme
	Path     []string // Path segments appended to Base
	Query    *Query   // Query parameters; nil means none
	Protocol Protocol // Scheme to prepend; empty means DefaultProtocol
}

// URL builds the canonical URL for s.
func (s Spec) URL() (string, error) {
	return Build(s.Base, s.Path, s.Query, s.Protocol)
}

// With returns a copy of s with extra path segments appended and query
// parameters merged on top of a clone of s.Query. s is not modified.
func (s Spec) With(path []string, query *Query) Spec {
	out := Spec{
		Base:     s.Base,
		Path:     append(append([]string(nil), s.Path...), path...),
		Query:    s.Query.Clone(),
		Protocol: s.Protocol,
	}
	for _, k := range query.Keys() {
		out.Query.Set(k, query.Get(k))
	}
	return out
}

// Build turns a base address plus structured parameters into the canonical
// request URL.
//
// Leading and trailing slashes are stripped from base, the protocol is
// prepended unless base already carries a recognised scheme, non-empty path
// segments are joined with "/" and the query is appended with "sort" first.
// A query without values, including keys set to nothing or to an empty
// slice, adds nothing, not even a trailing "?".
func Build(base string, path []string, query *Query, protocol Protocol) (string, error) {
	if protocol == "" {
		protocol = DefaultProtocol
	}
	if !protocol.Valid() {
		return "", errors.New(errors.ErrCodeConfig, "protocol %q not recognised (want http, https or ftp)", protocol)
	}

	var b strings.Builder
	if base, ok := stripScheme(base); ok {
		b.WriteString(strings.Trim(base, "/"))
	} else {
		b.WriteString(string(protocol))
		b.WriteString("://")
		b.WriteString(strings.Trim(base, "/"))
	}

	for _, seg := range path {
		seg = strings.Trim(seg, "/")
		if seg == "" {
			continue
		}
		b.WriteByte('/')
		b.WriteString(seg)
	}

	var pairs []string
	for _, k := range query.ordered() {
		for _, v := range query.values[k] {
			pairs = append(pairs, escape(k)+"="+escape(v))
		}
	}
	url := b.String()
	if len(pairs) == 0 {
		return url, nil
	}

	switch {
	case strings.HasSuffix(url, "?"), strings.HasSuffix(url, "&"):
	case strings.Contains(url, "?"):
		url += "&"
	default:
		url += "?"
	}
	return url + strings.Join(pairs, "&"), nil
}

// stripScheme reports whether base already starts with an accepted scheme.
// The returned string still contains the scheme.
func stripScheme(base string) (string, bool) {
	base = strings.TrimLeft(base, "/")
	for _, p := range Protocols {
		if strings.HasPrefix(strings.ToLower(base), string(p)+"://") {
			return base, true
		}
	}
	return base, false
}

const hexDigits = "0123456789ABCDEF"

// escape percent-encodes everything but unreserved characters and the few
// delimiters the service expects verbatim inside values ("/", ":", ",", "*").
func escape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if shouldKeep(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&15])
	}
	return b.String()
}

func shouldKeep(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '~', '/', ':', ',', '*':
		return true
	}
	return false
}

package cache

import "time"

// Policy decides whether a stored entry may be used without refetching.
//
// The zero value trusts any stored entry forever.
type Policy struct {
	// ForceRefresh ignores stored entries and always refetches.
	ForceRefresh bool

	// MaxAge bounds the age of a usable entry. Nil means entries never
	// expire; zero means entries are always stale.
	MaxAge *time.Duration

	// NoStore skips writing fetched payloads back to the store.
	NoStore bool
}

// Forever returns a policy that trusts stored entries regardless of age.
func Forever() Policy { return Policy{} }

// WithMaxAge returns a policy that trusts entries younger than d.
func WithMaxAge(d time.Duration) Policy { return Policy{MaxAge: &d} }

// Refresh returns a policy that always refetches and overwrites the entry.
func Refresh() Policy { return Policy{ForceRefresh: true} }

// Fresh reports whether an entry written at storedAt is usable at now.
func (p Policy) Fresh(storedAt, now time.Time) bool {
	switch {
	case p.ForceRefresh:
		return false
	case p.MaxAge == nil:
		return true
	case *p.MaxAge <= 0:
		return false
	}
	return now.Sub(storedAt) < *p.MaxAge
}

// String renders the policy for log output.
func (p Policy) String() string {
	switch {
	case p.ForceRefresh:
		return "refresh"
	case p.MaxAge == nil:
		return "forever"
	}
	return "max-age=" + p.MaxAge.String()
}

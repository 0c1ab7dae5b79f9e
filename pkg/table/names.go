package table

import "strings"

// StripSuffix removes suffix from name. ok is false when name does not end
// with suffix or nothing would be left. A leading dot is implied, so "dic"
// and ".dic" behave the same.
func StripSuffix(name, suffix string) (string, bool) {
	if suffix == "" {
		return name, name != ""
	}
	if !strings.HasPrefix(suffix, ".") {
		suffix = "." + suffix
	}
	base, ok := strings.CutSuffix(name, suffix)
	if !ok || base == "" {
		return "", false
	}
	return base, true
}

// Names extracts the "name" column of listing rows and strips suffix.
// Entries without the suffix are excluded. Order follows the rows.
func Names(rows []Row, suffix string) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if base, ok := StripSuffix(r.Get(ColName), suffix); ok {
			out = append(out, base)
		}
	}
	return out
}

package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidateName validates a dataset, dimension or file identifier before it is
// spliced into a request URL or a cache path.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters
//   - No path traversal sequences (.., //, etc.)
//   - Maximum length of 128 characters
func ValidateName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidName, "name cannot be empty")
	}

	if len(name) > 128 {
		return New(ErrCodeInvalidName, "name too long (max 128 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidName, "name contains invalid control characters")
		}
	}

	dangerousPatterns := []string{
		"..",   // Parent directory
		"/",    // Path separator
		"\x00", // Null byte
		"\\",   // Backslash (Windows path)
		"?",    // Query delimiter
		"&",    // Query separator
	}

	for _, pattern := range dangerousPatterns {
		if strings.Contains(name, pattern) {
			return New(ErrCodeInvalidName, "name contains invalid characters: %q", pattern)
		}
	}

	return nil
}

// codeRegex matches identifiers published by the statistical service:
// lowercase or uppercase alphanumerics joined by underscores or dashes.
var codeRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_$-]*$`)

// ValidateCode validates a dataset or dimension code (e.g. "nama_10_gdp",
// "geo"). It applies [ValidateName] first.
func ValidateCode(code string) error {
	if err := ValidateName(code); err != nil {
		return err
	}
	if !codeRegex.MatchString(code) {
		return New(ErrCodeInvalidName, "invalid code: %q", code)
	}
	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a scheme the transport understands.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeConfig, "URL cannot be empty")
	}

	for _, scheme := range []string{"http://", "https://", "ftp://"} {
		if strings.HasPrefix(rawURL, scheme) {
			return nil
		}
	}
	return New(ErrCodeConfig, "URL must use http, https or ftp scheme")
}

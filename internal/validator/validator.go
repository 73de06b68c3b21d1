// Package validator performs the syntactic URL check that gates every scan.
// It never touches the network; resolvability is the analyzer's problem.
package validator

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidURL is returned for any candidate that fails the syntactic check.
// Callers surface it as a validation error, never as a system fault.
var ErrInvalidURL = errors.New("validator: invalid url")

var urlRegexp = regexp.MustCompile(`^(https?://)?` + // optional scheme
	`(([a-z0-9]([a-z0-9-]*[a-z0-9])?\.)+[a-z]{2,}` + // domain labels, TLD >= 2 letters
	`|(\d{1,3}\.){3}\d{1,3})` + // or dotted IPv4
	`(:\d{1,5})?` + // optional port
	`(/[^\s?#]*)?` + // optional path
	`(\?[^\s#]*)?` + // optional query
	`(#\S*)?$`) // optional fragment

// Validate checks that candidate looks like an http(s) URL, a bare domain,
// or a dotted IPv4 host, case-insensitively. Empty or malformed strings are
// rejected with ErrInvalidURL.
func Validate(candidate string) error {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return ErrInvalidURL
	}
	if !urlRegexp.MatchString(strings.ToLower(candidate)) {
		return ErrInvalidURL
	}
	return nil
}

// IsValid is a convenience boolean wrapper around Validate.
func IsValid(candidate string) bool {
	return Validate(candidate) == nil
}

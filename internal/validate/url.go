// Package validate rejects bad input before any state is created.
package validate

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidMeetingURL is returned for URLs outside the known-platform
// allow-list.
var ErrInvalidMeetingURL = errors.New("invalid meeting url")

// allowedDomains are the meeting platforms a bot can join. Subdomains are
// accepted (e.g. us02web.zoom.us).
var allowedDomains = []string{
	"zoom.us",
	"meet.google.com",
	"teams.microsoft.com",
	"teams.live.com",
	"webex.com",
}

// MeetingURL checks that a source URL is an https link to a known meeting
// platform. It must be called before a meeting record is created.
func MeetingURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMeetingURL, err)
	}
	if u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be https", ErrInvalidMeetingURL)
	}
	host := strings.ToLower(u.Hostname())
	for _, domain := range allowedDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s is not a supported meeting platform", ErrInvalidMeetingURL, host)
}

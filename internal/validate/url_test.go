package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMeetingURL_Accepted(t *testing.T) {
	for _, u := range []string{
		"https://zoom.us/j/123456789",
		"https://us02web.zoom.us/j/987654321?pwd=abc",
		"https://meet.google.com/abc-defg-hij",
		"https://teams.microsoft.com/l/meetup-join/xyz",
		"https://teams.live.com/meet/123",
		"https://company.webex.com/meet/alice",
	} {
		assert.NoError(t, MeetingURL(u), u)
	}
}

func TestMeetingURL_Rejected(t *testing.T) {
	for _, u := range []string{
		"https://evil.example/zoom.us/j/1",
		"https://zoom.us.evil.example/j/1",
		"http://zoom.us/j/123",
		"https://notzoom.us/j/123",
		"ftp://meet.google.com/abc",
		"",
		"://bad",
	} {
		err := MeetingURL(u)
		assert.ErrorIs(t, err, ErrInvalidMeetingURL, u)
	}
}

package referrers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFriendlyName(t *testing.T) {
	tests := []struct {
		hostname string
		expected string
	}{
		{"google.com", "Google"},
		{"news.ycombinator.com", "Hacker News"},
		{"t.co", "X/Twitter"},
		{"reddit.com", "Reddit"},

		{"www.google.com", "Google"},
		{"www.reddit.com", "Reddit"},

		{"m.facebook.com", "Facebook"},
		{"old.reddit.com", "Reddit"},
		{"someone.substack.com", "Substack"},

		{"example.com", "Example.com"},
		{"www.example.com", "Example.com"},
		{"myblog.io", "Myblog.io"},
		{"localhost", "Localhost"},

		{"GOOGLE.COM", "Google"},
		{"News.Ycombinator.Com.", "Hacker News"},
		{"", DirectLabel},
	}

	for _, tt := range tests {
		t.Run(tt.hostname, func(t *testing.T) {
			assert.Equal(t, tt.expected, FriendlyName(tt.hostname))
		})
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"", DirectLabel},
		{"   ", DirectLabel},
		{"https://www.google.com/search?q=go", "Google"},
		{"http://news.ycombinator.com/item?id=1", "Hacker News"},
		{"android-app://com.reddit.frontpage/", "Com.reddit.frontpage"},
		{"lobste.rs/s/abc", "Lobsters"},
		{"https://friend.example.org:8443/links", "Friend.example.org"},
		{"https://", DirectLabel},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.expected, Label(tt.raw))
		})
	}
}

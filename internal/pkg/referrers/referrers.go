// Package referrers turns raw Referer headers into short source labels for the dashboard.
package referrers

import (
	"net/url"
	"strings"
)

// DirectLabel is used when a view carried no usable referer.
const DirectLabel = "Direct"

var knownReferrers = map[string]string{
	// Search
	"google.com":     "Google",
	"google.co.uk":   "Google",
	"google.de":      "Google",
	"google.fr":      "Google",
	"google.es":      "Google",
	"google.ca":      "Google",
	"google.com.au":  "Google",
	"google.co.jp":   "Google",
	"google.com.br":  "Google",
	"bing.com":       "Bing",
	"duckduckgo.com": "DuckDuckGo",
	"yahoo.com":      "Yahoo",
	"baidu.com":      "Baidu",
	"yandex.ru":      "Yandex",
	"ecosia.org":     "Ecosia",
	"kagi.com":       "Kagi",
	"perplexity.ai":  "Perplexity",
	"chatgpt.com":    "ChatGPT",

	// Social
	"x.com":           "X/Twitter",
	"twitter.com":     "X/Twitter",
	"t.co":            "X/Twitter",
	"facebook.com":    "Facebook",
	"fb.com":          "Facebook",
	"instagram.com":   "Instagram",
	"linkedin.com":    "LinkedIn",
	"lnkd.in":         "LinkedIn",
	"reddit.com":      "Reddit",
	"threads.net":     "Threads",
	"bsky.app":        "Bluesky",
	"mastodon.social": "Mastodon",
	"youtube.com":     "YouTube",
	"youtu.be":        "YouTube",
	"pinterest.com":   "Pinterest",
	"t.me":            "Telegram",
	"discord.com":     "Discord",

	// Communities and blogging platforms
	"news.ycombinator.com": "Hacker News",
	"hn.algolia.com":       "Hacker News",
	"lobste.rs":            "Lobsters",
	"dev.to":               "DEV Community",
	"hashnode.com":         "Hashnode",
	"medium.com":           "Medium",
	"substack.com":         "Substack",
	"github.com":           "GitHub",
	"stackoverflow.com":    "Stack Overflow",
	"feedly.com":           "Feedly",
	"inoreader.com":        "Inoreader",

	// Newsletter clicks
	"mail.google.com":    "Gmail",
	"outlook.live.com":   "Outlook",
	"outlook.office.com": "Outlook",
	"mail.proton.me":     "Proton Mail",
}

// FriendlyName returns a display name for a referrer hostname. Subdomains of a
// known host resolve to that host's name; unknown hosts are returned without
// "www." and with the first letter capitalized.
func FriendlyName(hostname string) string {
	hostname = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(hostname)), ".")
	hostname = strings.TrimPrefix(hostname, "www.")
	if hostname == "" {
		return DirectLabel
	}

	// walk parents: m.facebook.com -> facebook.com -> com
	for candidate := hostname; candidate != ""; {
		if name, ok := knownReferrers[candidate]; ok {
			return name
		}
		dot := strings.IndexByte(candidate, '.')
		if dot < 0 {
			break
		}
		candidate = candidate[dot+1:]
	}

	return capitalizeFirst(hostname)
}

// Label maps a raw Referer header to a source label. Empty or unparsable values are Direct.
func Label(rawReferer string) string {
	rawReferer = strings.TrimSpace(rawReferer)
	if rawReferer == "" {
		return DirectLabel
	}
	if !strings.Contains(rawReferer, "://") {
		rawReferer = "https://" + rawReferer
	}

	u, err := url.Parse(rawReferer)
	if err != nil || u.Hostname() == "" {
		return DirectLabel
	}
	return FriendlyName(u.Hostname())
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

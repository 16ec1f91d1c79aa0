package user_agent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linblog/internal/pkg/user_agent"
)

const (
	chromeWindows   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	safariMac       = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15"
	safariIPhone    = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1"
	safariIPad      = "Mozilla/5.0 (iPad; CPU OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1"
	chromeAndroid   = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36"
	androidTablet   = "Mozilla/5.0 (Linux; Android 13; SM-X700) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	firefoxLinux    = "Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"
	edgeWindows     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.2210.61"
	chromeOS        = "Mozilla/5.0 (X11; CrOS x86_64 14541.0.0) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	samsungAndroid  = "Mozilla/5.0 (Linux; Android 13; SM-S911B) AppleWebKit/537.36 (KHTML, like Gecko) SamsungBrowser/23.0 Chrome/115.0.0.0 Mobile Safari/537.36"
	ie11            = "Mozilla/5.0 (Windows NT 6.1; WOW64; Trident/7.0; rv:11.0) like Gecko"
	googlebot       = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
	bingbot         = "Mozilla/5.0 (compatible; bingbot/2.0; +http://www.bing.com/bingbot.htm)"
	mobileGooglebot = "Mozilla/5.0 (Linux; Android 6.0.1; Nexus 5X Build/MMB29P) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
)

func TestClassifyDevice(t *testing.T) {
	testCases := []struct {
		name      string
		userAgent string
		expected  user_agent.DeviceType
	}{
		{name: "Chrome on Windows", userAgent: chromeWindows, expected: user_agent.DeviceDesktop},
		{name: "Safari on Mac", userAgent: safariMac, expected: user_agent.DeviceDesktop},
		{name: "Firefox on Linux", userAgent: firefoxLinux, expected: user_agent.DeviceDesktop},
		{name: "Chrome OS", userAgent: chromeOS, expected: user_agent.DeviceDesktop},
		{name: "Safari on iPhone", userAgent: safariIPhone, expected: user_agent.DeviceMobile},
		{name: "Chrome on Android phone", userAgent: chromeAndroid, expected: user_agent.DeviceMobile},
		{name: "Safari on iPad", userAgent: safariIPad, expected: user_agent.DeviceTablet},
		{name: "Android tablet without mobile token", userAgent: androidTablet, expected: user_agent.DeviceTablet},
		{name: "Googlebot", userAgent: googlebot, expected: user_agent.DeviceBot},
		{name: "bot wins over mobile shape", userAgent: mobileGooglebot, expected: user_agent.DeviceBot},
		{name: "curl", userAgent: "curl/8.4.0", expected: user_agent.DeviceBot},
		{name: "empty", userAgent: "", expected: user_agent.DeviceOther},
		{name: "unknown app", userAgent: "MyFeedApp/1.0", expected: user_agent.DeviceOther},
		{name: "case insensitive", userAgent: "SOMETHING (IPHONE) MOBILE", expected: user_agent.DeviceMobile},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, user_agent.ClassifyDevice(tc.userAgent))
		})
	}
}

func TestIsBot(t *testing.T) {
	bots := []string{
		googlebot,
		bingbot,
		mobileGooglebot,
		"Mozilla/5.0 (compatible; AhrefsBot/7.0; +http://ahrefs.com/robot/)",
		"facebookexternalhit/1.1 (+http://www.facebook.com/externalhit_uatext.php)",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) HeadlessChrome/120.0.0.0 Safari/537.36",
		"python-requests/2.31.0",
		"Go-http-client/1.1",
		"Wget/1.21.4",
		"some-random-crawler/0.1",
		"MySpider 2.0",
		"Yahoo! Slurp",
		"ia_archiver",
	}
	for _, ua := range bots {
		t.Run(ua, func(t *testing.T) {
			assert.True(t, user_agent.IsBot(ua))
			assert.NotEmpty(t, user_agent.BotName(ua))
		})
	}

	humans := []string{"", chromeWindows, safariIPhone, safariIPad, firefoxLinux, edgeWindows, chromeAndroid}
	for _, ua := range humans {
		t.Run("human "+ua, func(t *testing.T) {
			assert.False(t, user_agent.IsBot(ua))
			assert.Empty(t, user_agent.BotName(ua))
		})
	}
}

func TestParseBrowserAndOS(t *testing.T) {
	testCases := []struct {
		name            string
		userAgent       string
		expectedBrowser string
		expectedOS      string
	}{
		{name: "Chrome on Windows", userAgent: chromeWindows, expectedBrowser: "Chrome", expectedOS: "Windows"},
		{name: "Edge on Windows", userAgent: edgeWindows, expectedBrowser: "Edge", expectedOS: "Windows"},
		{name: "Safari on Mac", userAgent: safariMac, expectedBrowser: "Safari", expectedOS: "macOS"},
		{name: "Safari on iPhone", userAgent: safariIPhone, expectedBrowser: "Safari", expectedOS: "iOS"},
		{name: "Safari on iPad", userAgent: safariIPad, expectedBrowser: "Safari", expectedOS: "iOS"},
		{name: "Chrome on Android", userAgent: chromeAndroid, expectedBrowser: "Chrome", expectedOS: "Android"},
		{name: "Samsung Internet", userAgent: samsungAndroid, expectedBrowser: "Samsung Internet", expectedOS: "Android"},
		{name: "Firefox on Linux", userAgent: firefoxLinux, expectedBrowser: "Firefox", expectedOS: "Linux"},
		{name: "Chrome OS", userAgent: chromeOS, expectedBrowser: "Chrome", expectedOS: "Chrome OS"},
		{name: "Internet Explorer", userAgent: ie11, expectedBrowser: "Internet Explorer", expectedOS: "Windows"},
		{name: "empty falls back to Other", userAgent: "", expectedBrowser: "Other", expectedOS: "Other"},
		{name: "unknown falls back to Other", userAgent: "MyFeedApp/1.0", expectedBrowser: "Other", expectedOS: "Other"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			browser, os := user_agent.ParseBrowserAndOS(tc.userAgent)
			assert.Equal(t, tc.expectedBrowser, browser)
			assert.Equal(t, tc.expectedOS, os)
		})
	}
}

func TestParseUserAgent(t *testing.T) {
	ua := user_agent.ParseUserAgent(safariIPhone)
	assert.Equal(t, safariIPhone, ua.UserAgent)
	assert.Equal(t, "Safari", ua.Browser)
	assert.Equal(t, "iOS", ua.OS)
	assert.Equal(t, user_agent.DeviceMobile, ua.Device)
	assert.False(t, ua.Bot)

	bot := user_agent.ParseUserAgent(googlebot)
	assert.True(t, bot.Bot)
	assert.Equal(t, user_agent.DeviceBot, bot.Device)
}

func TestClassifierIsDeterministic(t *testing.T) {
	for i := 0; i < 50; i++ {
		require.Equal(t, user_agent.DeviceMobile, user_agent.ClassifyDevice(chromeAndroid))
	}
}

func TestDeviceTypeScan(t *testing.T) {
	t.Run("string and bytes", func(t *testing.T) {
		var d user_agent.DeviceType
		require.NoError(t, d.Scan("TABLET"))
		assert.Equal(t, user_agent.DeviceTablet, d)
		require.NoError(t, d.Scan([]byte("BOT")))
		assert.Equal(t, user_agent.DeviceBot, d)
	})

	t.Run("unknown code is a hard failure", func(t *testing.T) {
		var d user_agent.DeviceType
		err := d.Scan("PHABLET")
		require.Error(t, err)
		assert.ErrorIs(t, err, user_agent.ErrUnknownDeviceType)
	})

	t.Run("null is rejected", func(t *testing.T) {
		var d user_agent.DeviceType
		assert.ErrorIs(t, d.Scan(nil), user_agent.ErrUnknownDeviceType)
	})

	t.Run("value rejects invalid", func(t *testing.T) {
		_, err := user_agent.DeviceType("watch").Value()
		assert.ErrorIs(t, err, user_agent.ErrUnknownDeviceType)
		v, err := user_agent.DeviceDesktop.Value()
		require.NoError(t, err)
		assert.Equal(t, "DESKTOP", v)
	})
}

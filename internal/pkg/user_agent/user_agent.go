// Package user_agent classifies raw user-agent strings into device categories,
// bot verdicts and browser/OS labels.
//
// The rules live in an embedded YAML file and are compiled once. Every exported
// function is pure: the same input always yields the same answer.
package user_agent

import (
	_ "embed"
	"fmt"
	"sync"

	"go.elara.ws/pcre"
	"gopkg.in/yaml.v3"
)

// OtherLabel is returned when no browser or OS rule matches.
const OtherLabel = "Other"

//go:embed database/agents.yml
var agentsYAML []byte

// UserAgent is the full classification of one user-agent string.
type UserAgent struct {
	UserAgent string
	Browser   string
	OS        string
	Device    DeviceType
	Bot       bool
}

// BotEntry is a named crawler signature.
type BotEntry struct {
	Name  string `yaml:"name"`
	Regex string `yaml:"regex"`
}

// DeviceEntry maps a device-shape pattern to a category.
type DeviceEntry struct {
	Type  DeviceType `yaml:"type"`
	Regex string     `yaml:"regex"`
}

// LabelEntry maps a pattern to a display label (browser or OS).
type LabelEntry struct {
	Name  string `yaml:"name"`
	Regex string `yaml:"regex"`
}

type ruleFile struct {
	Bots     []BotEntry    `yaml:"bots"`
	Devices  []DeviceEntry `yaml:"devices"`
	Browsers []LabelEntry  `yaml:"browsers"`
	OSs      []LabelEntry  `yaml:"oss"`
}

type compiledRule struct {
	label  string
	device DeviceType
	regex  *pcre.Regexp
}

type rules struct {
	bots     []compiledRule
	devices  []compiledRule
	browsers []compiledRule
	oss      []compiledRule
}

var (
	parser *rules
	once   sync.Once
)

func getRules() *rules {
	once.Do(func() {
		r, err := loadRules(agentsYAML)
		if err != nil {
			// The rule file is embedded, so a failure here is a build defect.
			panic(fmt.Sprintf("user_agent: %v", err))
		}
		parser = r
	})
	return parser
}

func loadRules(data []byte) (*rules, error) {
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}

	r := &rules{}
	for _, b := range file.Bots {
		c, err := compile(b.Regex)
		if err != nil {
			return nil, fmt.Errorf("bot %q: %w", b.Name, err)
		}
		r.bots = append(r.bots, compiledRule{label: b.Name, regex: c})
	}
	for _, d := range file.Devices {
		if !d.Type.Valid() {
			return nil, fmt.Errorf("device rule: %w: %q", ErrUnknownDeviceType, d.Type)
		}
		c, err := compile(d.Regex)
		if err != nil {
			return nil, fmt.Errorf("device %s: %w", d.Type, err)
		}
		r.devices = append(r.devices, compiledRule{device: d.Type, regex: c})
	}
	for _, b := range file.Browsers {
		c, err := compile(b.Regex)
		if err != nil {
			return nil, fmt.Errorf("browser %q: %w", b.Name, err)
		}
		r.browsers = append(r.browsers, compiledRule{label: b.Name, regex: c})
	}
	for _, o := range file.OSs {
		c, err := compile(o.Regex)
		if err != nil {
			return nil, fmt.Errorf("os %q: %w", o.Name, err)
		}
		r.oss = append(r.oss, compiledRule{label: o.Name, regex: c})
	}
	return r, nil
}

func compile(pattern string) (*pcre.Regexp, error) {
	return pcre.Compile("(?i)" + pattern)
}

func firstMatch(list []compiledRule, userAgent string) *compiledRule {
	for i := range list {
		if list[i].regex.MatchString(userAgent) {
			return &list[i]
		}
	}
	return nil
}

// IsBot reports whether userAgent matches a known crawler, bot or automation signature.
func IsBot(userAgent string) bool {
	if userAgent == "" {
		return false
	}
	return firstMatch(getRules().bots, userAgent) != nil
}

// BotName returns the matched bot family, or "" when userAgent is not a bot.
func BotName(userAgent string) string {
	if userAgent == "" {
		return ""
	}
	if m := firstMatch(getRules().bots, userAgent); m != nil {
		return m.label
	}
	return ""
}

// ClassifyDevice returns the device category: bot signatures win over device
// shape (tablet, then mobile, then desktop), which wins over OTHER.
func ClassifyDevice(userAgent string) DeviceType {
	if userAgent == "" {
		return DeviceOther
	}
	r := getRules()
	if firstMatch(r.bots, userAgent) != nil {
		return DeviceBot
	}
	if m := firstMatch(r.devices, userAgent); m != nil {
		return m.device
	}
	return DeviceOther
}

// ParseBrowserAndOS returns best-effort browser and OS labels, falling back to OtherLabel.
func ParseBrowserAndOS(userAgent string) (browser, os string) {
	browser, os = OtherLabel, OtherLabel
	if userAgent == "" {
		return browser, os
	}
	r := getRules()
	if m := firstMatch(r.browsers, userAgent); m != nil {
		browser = m.label
	}
	if m := firstMatch(r.oss, userAgent); m != nil {
		os = m.label
	}
	return browser, os
}

// ParseUserAgent runs every classifier over userAgent.
func ParseUserAgent(userAgent string) UserAgent {
	browser, os := ParseBrowserAndOS(userAgent)
	device := ClassifyDevice(userAgent)
	return UserAgent{
		UserAgent: userAgent,
		Browser:   browser,
		OS:        os,
		Device:    device,
		Bot:       device == DeviceBot,
	}
}

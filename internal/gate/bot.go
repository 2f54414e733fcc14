package gate

import (
	"regexp"
	"strings"
)

// Category classifies the client behind a request.
type Category string

const (
	// CategoryHuman is not a bot category; it marks a regular browser.
	CategoryHuman        Category = ""
	CategoryUnknown      Category = "UNKNOWN"
	CategoryAutomated    Category = "AUTOMATED"
	CategorySearchEngine Category = "SEARCH_ENGINE"
)

var searchEngineMarkers = []string{
	"googlebot",
	"bingbot",
	"duckduckbot",
	"baiduspider",
	"yandexbot",
	"slurp",
	"applebot",
}

var automatedMarkers = []string{
	"curl/",
	"wget/",
	"python-requests",
	"python-urllib",
	"go-http-client",
	"httpclient",
	"okhttp",
	"headlesschrome",
	"phantomjs",
	"selenium",
	"puppeteer",
	"playwright",
	"scrapy",
	"crawler",
	"spider",
}

// botToken matches "bot" as a product token, e.g. "AhrefsBot/7.0" or
// "SemrushBot;", but not inside device names such as "CUBOT".
var botToken = regexp.MustCompile(`\bbot\b|bot[/;)_-]`)

// ParseCategory maps a configured name to a Category. Unknown names are returned as is.
func ParseCategory(s string) Category {
	return Category(strings.ToUpper(strings.TrimSpace(s)))
}

// ClassifyBot inspects the User-Agent and Accept headers of a request.
func ClassifyBot(userAgent, accept string) Category {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	if ua == "" {
		return CategoryUnknown
	}

	for _, m := range searchEngineMarkers {
		if strings.Contains(ua, m) {
			return CategorySearchEngine
		}
	}
	for _, m := range automatedMarkers {
		if strings.Contains(ua, m) {
			return CategoryAutomated
		}
	}
	if botToken.MatchString(ua) {
		return CategoryAutomated
	}

	// browsers always send Accept
	if strings.HasPrefix(ua, "mozilla/") && strings.TrimSpace(accept) == "" {
		return CategoryAutomated
	}

	return CategoryHuman
}

type botRule struct {
	allow map[Category]struct{}
}

func newBotRule(allow []Category) botRule {
	set := make(map[Category]struct{}, len(allow))
	for _, c := range allow {
		set[c] = struct{}{}
	}
	return botRule{allow: set}
}

// denies reports whether a request of category c must be rejected.
func (b botRule) denies(c Category) bool {
	if c == CategoryHuman {
		return false
	}
	_, ok := b.allow[c]
	return !ok
}

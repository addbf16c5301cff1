// Package browser classifies the host environment: browser and OS names,
// locale, timezone, and the automation/headless heuristics consumed by risk
// scoring.
package browser

import (
	"strings"

	"github.com/mileusna/useragent"

	"github.com/trlogic/tracker-web/internal/host"
)

var botPatterns = []string{
	"bot", "crawler", "spider", "crawling", "facebook", "google",
	"baidu", "bing", "msn", "duckduckbot", "teoma", "slurp", "yandex",
}

// Detector answers environment questions from a parsed user agent plus the
// host navigator surface.
type Detector struct {
	nav host.Navigator
	ua  useragent.UserAgent
}

// NewDetector parses the navigator's user agent once and keeps it.
func NewDetector(nav host.Navigator) *Detector {
	return &Detector{
		nav: nav,
		ua:  useragent.Parse(nav.UserAgent()),
	}
}

// Browser returns the browser name, or "" when unclassifiable.
func (d *Detector) Browser() string { return d.ua.Name }

// OS returns the operating system name, or "".
func (d *Detector) OS() string { return d.ua.OS }

// Language returns the navigator's primary language tag.
func (d *Detector) Language() string { return d.nav.Language() }

// Timezone returns the environment's IANA timezone name.
func (d *Detector) Timezone() string { return d.nav.Timezone() }

// IsBot reports whether the user agent matches a known crawler pattern.
func (d *Detector) IsBot() bool {
	if d.ua.Bot {
		return true
	}
	ua := strings.ToLower(d.nav.UserAgent())
	for _, p := range botPatterns {
		if strings.Contains(ua, p) {
			return true
		}
	}
	return false
}

// IsSuspicious applies the broad automation checks backing the
// SUSPICIOUS_BROWSER variable: webdriver flags, stripped-down navigators,
// missing graphics support, single-core hardware, and crawler agents.
func (d *Detector) IsSuspicious() bool {
	if d.nav.Automation() {
		return true
	}
	if len(d.nav.Languages()) == 0 {
		return true
	}
	if d.nav.PluginCount() == 0 {
		return true
	}
	if !d.nav.HasGraphics() {
		return true
	}
	if c := d.nav.HardwareConcurrency(); c > 0 && c <= 1 {
		return true
	}
	return d.IsBot()
}

// HeadlessIndicatorCount counts the five headless signals, one point each:
// automation flag, empty language list, empty plugin list, missing graphics
// context, bot-pattern user agent.
func (d *Detector) HeadlessIndicatorCount() int {
	count := 0
	if d.nav.Automation() {
		count++
	}
	if len(d.nav.Languages()) == 0 {
		count++
	}
	if d.nav.PluginCount() == 0 {
		count++
	}
	if !d.nav.HasGraphics() {
		count++
	}
	if d.IsBot() {
		count++
	}
	return count
}

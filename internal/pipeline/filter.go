package pipeline

import (
	"net/url"
	"strings"
)

// FilterRule excludes a source class that rarely makes useful
// competitor material (UGC hubs, video platforms, commerce listings).
type FilterRule struct {
	Name  string
	Match func(u *url.URL) bool
}

// BuildFilterRules compiles the configured host and path blocklists
// into an ordered rule set. Host rules match the domain and any
// subdomain; path rules match a case-insensitive substring.
func BuildFilterRules(blockedDomains, blockedPathHints []string) []FilterRule {
	rules := make([]FilterRule, 0, len(blockedDomains)+len(blockedPathHints))
	for _, domain := range blockedDomains {
		domain := strings.ToLower(strings.TrimSpace(domain))
		if domain == "" {
			continue
		}
		rules = append(rules, FilterRule{
			Name: domain,
			Match: func(u *url.URL) bool {
				host := strings.ToLower(u.Hostname())
				return host == domain || strings.HasSuffix(host, "."+domain)
			},
		})
	}
	for _, hint := range blockedPathHints {
		hint := strings.ToLower(strings.TrimSpace(hint))
		if hint == "" {
			continue
		}
		rules = append(rules, FilterRule{
			Name: hint,
			Match: func(u *url.URL) bool {
				return strings.Contains(strings.ToLower(u.Path), hint)
			},
		})
	}
	return rules
}

// MatchFilterRule returns the reason string ("blocklist:<rule>") of
// the first rule the URL trips, or ok=false when it survives. An
// unparsable URL survives filtering; extraction will reject it.
func MatchFilterRule(rules []FilterRule, rawURL string) (reason string, matched bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	for _, r := range rules {
		if r.Match(u) {
			return "blocklist:" + r.Name, true
		}
	}
	return "", false
}

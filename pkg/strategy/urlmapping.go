package strategy

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/strataflow/extractengine/pkg/apierr"
)

// URLRule binds one URL pattern to a Strategy. Domain matches include
// subdomains (e.g. a rule for "example.com" also matches
// "blog.example.com"); Pattern, when set, is matched as a regular
// expression against the full URL instead.
type URLRule struct {
	Domain   string
	Pattern  string
	Strategy Strategy
	Priority int

	compiled *regexp.Regexp
}

// URLMappingStrategy dispatches to the first rule whose domain or pattern
// matches the URL, highest priority first, falling back to a default
// strategy when no rule matches (component F.c).
type URLMappingStrategy struct {
	name    string
	rules   []URLRule
	fallback Strategy
}

// NewURLMappingStrategy compiles rules' regex patterns and sorts them by
// descending priority. A rule with an invalid Pattern is rejected.
func NewURLMappingStrategy(name string, rules []URLRule, fallback Strategy) (*URLMappingStrategy, error) {
	compiled := make([]URLRule, len(rules))
	for i, rule := range rules {
		if rule.Pattern != "" {
			re, err := regexp.Compile(rule.Pattern)
			if err != nil {
				return nil, apierr.Wrap(apierr.Configuration, "compile url mapping pattern", err)
			}
			rule.compiled = re
		}
		compiled[i] = rule
	}

	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].Priority > compiled[j].Priority
	})

	return &URLMappingStrategy{name: name, rules: compiled, fallback: fallback}, nil
}

func (s *URLMappingStrategy) Name() string     { return s.name }
func (s *URLMappingStrategy) Category() string { return "workflow" }

// Extract implements Strategy: it picks the matching rule's strategy and
// delegates.
func (s *URLMappingStrategy) Extract(ctx context.Context, url, content string, opts Options) (Record, error) {
	matched := s.match(url)
	if matched == nil {
		if s.fallback == nil {
			return nil, apierr.New(apierr.NotFound, "no url mapping rule matches and no fallback strategy is configured")
		}
		return s.fallback.Extract(ctx, url, content, opts)
	}
	return matched.Extract(ctx, url, content, opts)
}

func (s *URLMappingStrategy) match(url string) Strategy {
	for _, rule := range s.rules {
		if rule.compiled != nil {
			if rule.compiled.MatchString(url) {
				return rule.Strategy
			}
			continue
		}
		if rule.Domain != "" && matchesDomain(url, rule.Domain) {
			return rule.Strategy
		}
	}
	return nil
}

// matchesDomain reports whether url's host is domain or a subdomain of it.
func matchesDomain(url, domain string) bool {
	host := extractHost(url)
	domain = strings.ToLower(domain)
	host = strings.ToLower(host)
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// extractHost strips scheme, path, and port from a URL without pulling in
// net/url's stricter parsing, which would reject the loosely-formed host
// patterns url mappings are allowed to store (SPEC_FULL.md §4.5).
func extractHost(url string) string {
	u := url
	if idx := strings.Index(u, "://"); idx != -1 {
		u = u[idx+3:]
	}
	if idx := strings.IndexAny(u, "/?#"); idx != -1 {
		u = u[:idx]
	}
	if idx := strings.LastIndex(u, "@"); idx != -1 {
		u = u[idx+1:]
	}
	if idx := strings.LastIndex(u, ":"); idx != -1 {
		// Only strip a port, not an IPv6 literal's internal colons.
		if !strings.Contains(u[idx:], "]") {
			u = u[:idx]
		}
	}
	return u
}

var _ Strategy = (*URLMappingStrategy)(nil)

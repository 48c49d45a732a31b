// Package policy decides whether a URL may be fetched at all.
package policy

import (
	"net/url"
	"strings"

	"github.com/law-makers/pagefetch/pkg/models"
	"github.com/rs/zerolog/log"
)

// DomainPolicy matches request hosts against allow and deny suffix lists.
//
// A host matches an entry when it equals the entry or is a subdomain of it
// ("news.example.com" matches "example.com"). Deny always wins over allow.
type DomainPolicy struct {
	allow []string
	deny  []string
}

// New builds a DomainPolicy from configured rules. Entries are lowercased and
// blank entries are dropped.
func New(rules models.DomainRules) *DomainPolicy {
	return &DomainPolicy{
		allow: normalize(rules.Allow),
		deny:  normalize(rules.Deny),
	}
}

func normalize(entries []string) []string {
	out := make([]string, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}

// IsAllowed reports whether rawURL may be fetched. Deny entries win over
// allow entries. A URL that cannot be parsed is allowed.
func (p *DomainPolicy) IsAllowed(rawURL string) bool {
	if p == nil {
		return true
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		log.Debug().Err(err).Str("url", rawURL).Msg("Policy could not parse URL, allowing")
		return true
	}
	host := strings.ToLower(u.Host)

	if len(p.deny) > 0 && matchesAny(host, p.deny) {
		return false
	}
	if len(p.allow) > 0 {
		return matchesAny(host, p.allow)
	}
	return true
}

// Empty reports whether no rules are configured
func (p *DomainPolicy) Empty() bool {
	return p == nil || (len(p.allow) == 0 && len(p.deny) == 0)
}

func matchesAny(host string, entries []string) bool {
	for _, d := range entries {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

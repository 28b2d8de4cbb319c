package auth

import (
	"strings"

	"kavosh.dev/internal/directory"
)

// Policy decides whether an authenticated directory user may use the
// system, based on job title and group membership allow-lists. It is a
// pure function of the profile and the configuration.
type Policy struct {
	titles map[string]struct{}
	groups map[string]struct{}
}

// NewPolicy builds a policy from the configured allow-lists. Matching is
// case-insensitive; entries are folded at construction.
func NewPolicy(titles, groupDNs []string) *Policy {
	p := &Policy{
		titles: make(map[string]struct{}, len(titles)),
		groups: make(map[string]struct{}, len(groupDNs)),
	}
	for _, t := range titles {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			p.titles[t] = struct{}{}
		}
	}
	for _, g := range groupDNs {
		g = strings.ToLower(strings.TrimSpace(g))
		if g != "" {
			p.groups[g] = struct{}{}
		}
	}
	return p
}

// Authorized reports whether the profile's title is allow-listed OR the
// profile belongs to an allow-listed group. The two checks are independent
// and either grants access. An empty group allow-list means group
// membership never contributes and title is the sole criterion.
func (p *Policy) Authorized(profile *directory.Profile) bool {
	if profile == nil {
		return false
	}
	if title := strings.ToLower(strings.TrimSpace(profile.Title)); title != "" {
		if _, ok := p.titles[title]; ok {
			return true
		}
	}
	if len(p.groups) == 0 {
		return false
	}
	for _, g := range profile.MemberOf {
		if _, ok := p.groups[strings.ToLower(strings.TrimSpace(g))]; ok {
			return true
		}
	}
	return false
}

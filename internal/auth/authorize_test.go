package auth

import (
	"testing"

	"kavosh.dev/internal/directory"
)

func TestPolicyTitleMatchIsCaseInsensitive(t *testing.T) {
	policy := NewPolicy([]string{"Manager"}, nil)

	if !policy.Authorized(&directory.Profile{Title: "manager"}) {
		t.Fatal("expected lower-cased title to match")
	}
	if !policy.Authorized(&directory.Profile{Title: "MANAGER"}) {
		t.Fatal("expected upper-cased title to match")
	}
	if policy.Authorized(&directory.Profile{Title: "Engineer"}) {
		t.Fatal("unexpected match for unlisted title")
	}
}

func TestPolicyGroupMatch(t *testing.T) {
	policy := NewPolicy([]string{"Manager"}, []string{"CN=VPN,DC=corp,DC=local"})

	profile := &directory.Profile{
		Title:    "Engineer",
		MemberOf: []string{"CN=Staff,DC=corp,DC=local", "cn=vpn,dc=corp,dc=local"},
	}
	if !policy.Authorized(profile) {
		t.Fatal("expected group membership to grant access")
	}
}

func TestPolicyEmptyGroupListIgnoresMembership(t *testing.T) {
	policy := NewPolicy([]string{"Manager"}, nil)

	profile := &directory.Profile{
		Title:    "Engineer",
		MemberOf: []string{"CN=VPN,DC=corp,DC=local"},
	}
	if policy.Authorized(profile) {
		t.Fatal("groups must not contribute when the group allow-list is empty")
	}
}

func TestPolicyEitherCriterionSuffices(t *testing.T) {
	policy := NewPolicy([]string{"Manager"}, []string{"CN=VPN,DC=corp,DC=local"})

	// Title only.
	if !policy.Authorized(&directory.Profile{Title: "Manager"}) {
		t.Fatal("title alone should grant access")
	}
	// Group only.
	if !policy.Authorized(&directory.Profile{Title: "Intern", MemberOf: []string{"CN=VPN,DC=corp,DC=local"}}) {
		t.Fatal("group alone should grant access")
	}
	// Neither.
	if policy.Authorized(&directory.Profile{Title: "Intern"}) {
		t.Fatal("neither criterion matched, access must be denied")
	}
}

func TestPolicyNilAndEmptyProfile(t *testing.T) {
	policy := NewPolicy([]string{"Manager"}, []string{"CN=VPN,DC=corp,DC=local"})

	if policy.Authorized(nil) {
		t.Fatal("nil profile must be denied")
	}
	if policy.Authorized(&directory.Profile{}) {
		t.Fatal("empty profile must be denied")
	}
}

// Package directory authenticates users against an LDAP directory service
// (typically Active Directory). Every attempt binds as a fixed service
// account, resolves the user-supplied identifier to a distinguished name,
// proves the password with a second bind as that user and fetches profile
// attributes used by the authorization policy.
package directory

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
)

var (
	// ErrUnreachable indicates the directory server could not be reached
	// or a network operation timed out. Operational, not a user error.
	ErrUnreachable = errors.New("directory: server unreachable")
	// ErrServiceBind indicates the service account credential was rejected.
	ErrServiceBind = errors.New("directory: service bind rejected")
	// ErrUserNotFound indicates the identifier resolved to no entry.
	ErrUserNotFound = errors.New("directory: user not found")
	// ErrInvalidCredential indicates the user bind was rejected.
	ErrInvalidCredential = errors.New("directory: invalid credential")
)

// Unavailable reports whether err is an operational failure of the
// directory service rather than a credential failure. Callers map these
// to "service degraded", never to "bad user credential".
func Unavailable(err error) bool {
	return errors.Is(err, ErrUnreachable) || errors.Is(err, ErrServiceBind)
}

// Profile carries the attributes fetched after a successful user bind.
// Missing directory attributes are left as zero values.
type Profile struct {
	DN                string
	Mail              string
	UserPrincipalName string
	DisplayName       string
	AccountName       string
	Title             string
	MemberOf          []string
}

// Config holds the externally provided directory settings.
type Config struct {
	// Addr is an LDAP URL, e.g. "ldap://dc01.corp.local:389".
	Addr         string
	BaseDN       string
	BindUser     string
	BindPassword string
	// Timeout bounds each network phase (dial, bind, search).
	Timeout time.Duration
}

// Directory is implemented by Authenticator and by test fakes.
type Directory interface {
	Authenticate(ctx context.Context, identifier, password string) (*Profile, error)
}

// conn is the subset of *ldap.Conn the authenticator uses.
type conn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Close() error
}

// Authenticator performs bind-as-user authentication against one server.
type Authenticator struct {
	cfg  Config
	dial func(ctx context.Context) (conn, error)
}

var _ Directory = (*Authenticator)(nil)

// New constructs an Authenticator for the configured server.
func New(cfg Config) *Authenticator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	a := &Authenticator{cfg: cfg}
	a.dial = func(ctx context.Context) (conn, error) {
		timeout := cfg.Timeout
		if deadline, ok := ctx.Deadline(); ok {
			if remaining := time.Until(deadline); remaining < timeout {
				timeout = remaining
			}
		}
		c, err := ldap.DialURL(cfg.Addr, ldap.DialWithDialer(&net.Dialer{Timeout: timeout}))
		if err != nil {
			return nil, err
		}
		c.SetTimeout(cfg.Timeout)
		return c, nil
	}
	return a
}

var profileAttributes = []string{"mail", "userPrincipalName", "displayName", "sAMAccountName", "memberOf", "title"}

// Authenticate runs one full attempt: service bind, identifier resolution,
// user bind and profile fetch. Connections are never reused across attempts
// and are released on every exit path. No retries are performed; retrying a
// password bind risks tripping directory lockout policies.
func (a *Authenticator) Authenticate(ctx context.Context, identifier, password string) (*Profile, error) {
	identifier = strings.TrimSpace(identifier)
	// An empty password would turn the user bind into an unauthenticated
	// bind, which many servers accept. Reject before touching the network.
	if identifier == "" || password == "" {
		return nil, ErrInvalidCredential
	}

	svc, err := a.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer svc.Close()

	if err := svc.Bind(a.cfg.BindUser, a.cfg.BindPassword); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			return nil, fmt.Errorf("%w: %v", ErrServiceBind, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	dn, err := a.resolveDN(svc, identifier)
	if err != nil {
		return nil, err
	}

	user, err := a.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer user.Close()

	// The directory server validates the secret, not this code.
	if err := user.Bind(dn, password); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			return nil, ErrInvalidCredential
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	return a.fetchProfile(user, dn)
}

// resolveDN searches the subtree under the base DN for an entry whose UPN,
// mail or short account name matches the identifier. The search is limited
// to one result, so multiple matches manifest as the server picking an
// arbitrary entry; zero matches are a not-found.
func (a *Authenticator) resolveDN(c conn, identifier string) (string, error) {
	req := ldap.NewSearchRequest(
		a.cfg.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		1, // size limit
		int(a.cfg.Timeout/time.Second),
		false,
		searchFilter(identifier),
		[]string{"dn"},
		nil,
	)
	res, err := c.Search(req)
	if err != nil {
		// A size-limit overrun still delivers the entries collected so far.
		if !ldap.IsErrorWithCode(err, ldap.LDAPResultSizeLimitExceeded) || res == nil || len(res.Entries) == 0 {
			if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
				return "", ErrUserNotFound
			}
			return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
		}
	}
	if len(res.Entries) == 0 {
		// Zero hits from replication lag and genuine absence are not
		// distinguishable here; both are a not-found.
		return "", ErrUserNotFound
	}
	return res.Entries[0].DN, nil
}

// fetchProfile re-reads the bound entry for the attributes the
// authorization policy needs.
func (a *Authenticator) fetchProfile(c conn, dn string) (*Profile, error) {
	req := ldap.NewSearchRequest(
		dn,
		ldap.ScopeBaseObject,
		ldap.NeverDerefAliases,
		0,
		int(a.cfg.Timeout/time.Second),
		false,
		"(objectClass=person)",
		profileAttributes,
		nil,
	)
	res, err := c.Search(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	profile := &Profile{DN: dn}
	if len(res.Entries) == 0 {
		return profile, nil
	}
	entry := res.Entries[0]
	profile.Mail = entry.GetAttributeValue("mail")
	profile.UserPrincipalName = entry.GetAttributeValue("userPrincipalName")
	profile.DisplayName = entry.GetAttributeValue("displayName")
	profile.AccountName = entry.GetAttributeValue("sAMAccountName")
	profile.Title = entry.GetAttributeValue("title")
	profile.MemberOf = entry.GetAttributeValues("memberOf")
	return profile, nil
}

// searchFilter builds the OR-filter matching the identifier as a principal
// name, mail address or short account name (identifier with any "@domain"
// suffix stripped). Values are escaped against filter injection.
func searchFilter(identifier string) string {
	short := identifier
	if at := strings.IndexByte(identifier, '@'); at >= 0 {
		short = identifier[:at]
	}
	return fmt.Sprintf("(|(userPrincipalName=%s)(mail=%s)(sAMAccountName=%s))",
		ldap.EscapeFilter(identifier), ldap.EscapeFilter(identifier), ldap.EscapeFilter(short))
}

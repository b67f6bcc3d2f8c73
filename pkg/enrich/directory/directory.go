// Package directory looks up computer objects in an LDAP directory such as
// Active Directory.
package directory

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/projectdiscovery/gcache"
	"github.com/projectdiscovery/netinventory/pkg/types"
)

// DefaultTimeout bounds connecting and each request
const DefaultTimeout = 10 * time.Second

var (
	// ErrNoBaseDN is returned when the RootDSE exposes no naming context
	ErrNoBaseDN = errors.New("no naming context found")
	// ErrNotFound is returned when no computer object matches
	ErrNotFound = errors.New("computer object not found")
)

var computerAttributes = []string{"operatingSystem", "operatingSystemVersion", "dNSHostName"}

// Config holds the directory server and bind credentials
type Config struct {
	Server   string
	Username string
	Password string
	UseTLS   bool
	Timeout  time.Duration
}

// Configured reports whether enough is set to attempt a lookup
func (c Config) Configured() bool {
	return c.Server != "" && c.Username != "" && c.Password != ""
}

// URL returns the ldap:// or ldaps:// address of the server
func (c Config) URL() string {
	if strings.Contains(c.Server, "://") {
		return c.Server
	}
	scheme, port := "ldap", "389"
	if c.UseTLS {
		scheme, port = "ldaps", "636"
	}
	host := c.Server
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, port)
	}
	return scheme + "://" + host
}

type searcher interface {
	Bind(username, password string) error
	Search(request *ldap.SearchRequest) (*ldap.SearchResult, error)
}

type dialFunc func(cfg Config) (searcher, func(), error)

// Lookup searches the directory for the computer object of a host
type Lookup struct {
	cfg     Config
	dial    dialFunc
	baseDNs gcache.Cache[string, string]
}

// New returns a lookup for cfg
func New(cfg Config) *Lookup {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Lookup{
		cfg:  cfg,
		dial: dial,
		baseDNs: gcache.New[string, string](16).
			LRU().
			Expiration(time.Hour).
			Build(),
	}
}

func (l *Lookup) Name() string {
	return "directory"
}

func (l *Lookup) Source() types.Source {
	return types.SourceDirectory
}

// Enrich finds the computer object named after the target's host name and
// reports its domain and operating system
func (l *Lookup) Enrich(ctx context.Context, target types.Target) (*types.Findings, error) {
	if target.Hostname == "" {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conn, closeConn, err := l.dial(l.cfg)
	if err != nil {
		return nil, fmt.Errorf("could not connect to %s: %w", l.cfg.Server, err)
	}
	defer closeConn()

	if err := conn.Bind(l.cfg.Username, l.cfg.Password); err != nil {
		return nil, fmt.Errorf("bind failed: %w", err)
	}

	baseDN, err := l.baseDN(conn)
	if err != nil {
		return nil, err
	}

	filter := fmt.Sprintf("(&(objectClass=computer)(name=%s))", ldap.EscapeFilter(shortName(target.Hostname)))
	request := ldap.NewSearchRequest(
		baseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0,
		int(l.cfg.Timeout.Seconds()),
		false,
		filter,
		computerAttributes,
		nil,
	)
	result, err := conn.Search(request)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	if len(result.Entries) == 0 {
		return nil, ErrNotFound
	}

	entry := result.Entries[0]
	findings := types.NewFindings()
	findings.Set(types.FieldOS, entry.GetAttributeValue("operatingSystem"))
	findings.Set(types.FieldOSVersion, entry.GetAttributeValue("operatingSystemVersion"))

	domain := DomainFromDN(entry.DN)
	if domain == "" {
		domain = DomainFromDN(baseDN)
	}
	findings.Set(types.FieldDomain, domain)
	return findings, nil
}

// baseDN returns the naming context to search, cached per server
func (l *Lookup) baseDN(conn searcher) (string, error) {
	if cached, err := l.baseDNs.Get(l.cfg.Server); err == nil {
		return cached, nil
	}

	request := ldap.NewSearchRequest(
		"",
		ldap.ScopeBaseObject,
		ldap.NeverDerefAliases,
		0,
		int(l.cfg.Timeout.Seconds()),
		false,
		"(objectClass=*)",
		[]string{"rootDomainNamingContext", "defaultNamingContext"},
		nil,
	)
	result, err := conn.Search(request)
	if err != nil {
		return "", fmt.Errorf("could not read RootDSE: %w", err)
	}
	if len(result.Entries) == 0 {
		return "", ErrNoBaseDN
	}

	entry := result.Entries[0]
	baseDN := entry.GetAttributeValue("rootDomainNamingContext")
	if baseDN == "" {
		baseDN = entry.GetAttributeValue("defaultNamingContext")
	}
	if baseDN == "" {
		return "", ErrNoBaseDN
	}
	_ = l.baseDNs.Set(l.cfg.Server, baseDN)
	return baseDN, nil
}

// DomainFromDN joins the DC components of a distinguished name into a DNS
// domain, e.g. CN=WS01,OU=Workstations,DC=corp,DC=example,DC=com becomes
// corp.example.com
func DomainFromDN(dn string) string {
	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		return ""
	}
	var labels []string
	for _, rdn := range parsed.RDNs {
		for _, attr := range rdn.Attributes {
			if strings.EqualFold(attr.Type, "DC") && attr.Value != "" {
				labels = append(labels, strings.ToLower(attr.Value))
			}
		}
	}
	return strings.Join(labels, ".")
}

// shortName returns the first label of a host name
func shortName(hostname string) string {
	name, _, _ := strings.Cut(hostname, ".")
	return name
}

func dial(cfg Config) (searcher, func(), error) {
	opts := []ldap.DialOpt{ldap.DialWithDialer(&net.Dialer{Timeout: cfg.Timeout})}
	if cfg.UseTLS {
		var serverName string
		if u, err := url.Parse(cfg.URL()); err == nil {
			serverName = u.Hostname()
		}
		opts = append(opts, ldap.DialWithTLSConfig(&tls.Config{ServerName: serverName, MinVersion: tls.VersionTLS12}))
	}

	conn, err := ldap.DialURL(cfg.URL(), opts...)
	if err != nil {
		return nil, nil, err
	}
	conn.SetTimeout(cfg.Timeout)
	return conn, func() { conn.Close() }, nil
}

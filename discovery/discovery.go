// Package discovery resolves the oracle base URL. Plain http(s) URLs are used
// as they are. srv:// URLs name a DNS SRV record whose best target becomes
// the base URL:
//
//	srv://_oracle._tcp.example.org            -> https://host:port
//	srv://_oracle._tcp.example.org?scheme=http -> http://host:port
//
// The record with the lowest priority wins, ties go to the highest weight.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// DefaultNameserver is used when resolv.conf cannot be read.
const DefaultNameserver = "127.0.0.53:53"

var ErrNoRecords = errors.New("no SRV records")

// Resolver turns configured base URLs into concrete ones.
type Resolver struct {
	nameserver string
	client     *dns.Client
	log        *slog.Logger
}

// NewResolver creates a resolver querying nameserver (host:port). An empty
// nameserver selects the first server of /etc/resolv.conf.
func NewResolver(nameserver string, log *slog.Logger) *Resolver {
	if nameserver == "" {
		nameserver = systemNameserver()
	}
	return &Resolver{
		nameserver: nameserver,
		client:     &dns.Client{Timeout: 5 * time.Second},
		log:        log,
	}
}

func systemNameserver() string {
	cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(cfg.Servers) == 0 {
		return DefaultNameserver
	}
	return net.JoinHostPort(cfg.Servers[0], cfg.Port)
}

// ResolveBaseURL returns baseURL unchanged unless it uses the srv scheme.
func (r *Resolver) ResolveBaseURL(ctx context.Context, baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid oracle base URL: %w", err)
	}
	if u.Scheme != "srv" {
		return baseURL, nil
	}

	scheme := u.Query().Get("scheme")
	if scheme == "" {
		scheme = "https"
	}

	records, err := r.LookupSRV(ctx, u.Host)
	if err != nil {
		return "", err
	}

	best := records[0]
	resolved := fmt.Sprintf("%s://%s%s", scheme,
		net.JoinHostPort(strings.TrimSuffix(best.Target, "."), strconv.Itoa(int(best.Port))),
		strings.TrimSuffix(u.Path, "/"))

	r.log.Info("Resolved oracle base URL", "srv", u.Host, "url", resolved, "candidates", len(records))
	return resolved, nil
}

// LookupSRV returns the SRV records of name ordered by preference.
func (r *Resolver) LookupSRV(ctx context.Context, name string) ([]*dns.SRV, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), dns.TypeSRV)
	msg.RecursionDesired = true

	in, _, err := r.client.ExchangeContext(ctx, msg, r.nameserver)
	if err != nil {
		return nil, fmt.Errorf("could not query SRV %s: %w", name, err)
	}
	if in.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("%w for %s: %s", ErrNoRecords, name, dns.RcodeToString[in.Rcode])
	}

	var records []*dns.SRV
	for _, answer := range in.Answer {
		if srv, ok := answer.(*dns.SRV); ok {
			records = append(records, srv)
		}
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoRecords, name)
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Priority != records[j].Priority {
			return records[i].Priority < records[j].Priority
		}
		return records[i].Weight > records[j].Weight
	})
	return records, nil
}

package browser

import (
	"fmt"
	"strings"
)

// Proxy is one residential proxy endpoint in user:pass@host:port
// form.
type Proxy struct {
	Host     string
	Port     string
	Username string
	Password string
}

// Server is the scheme-qualified address Chrome is pointed at.
// Credentials are supplied separately through the auth challenge.
func (p Proxy) Server() string {
	return fmt.Sprintf("http://%s:%s", p.Host, p.Port)
}

// ParseProxy parses a user:pass@host:port entry. The credentials part
// is optional.
func ParseProxy(entry string) (Proxy, error) {
	var p Proxy

	hostport := entry
	if creds, rest, ok := strings.Cut(entry, "@"); ok {
		hostport = rest
		var hasColon bool
		p.Username, p.Password, hasColon = strings.Cut(creds, ":")
		if !hasColon || p.Username == "" {
			return Proxy{}, fmt.Errorf("invalid proxy %q: expected user:pass credentials", entry)
		}
	}

	var ok bool
	p.Host, p.Port, ok = strings.Cut(hostport, ":")
	if !ok || p.Host == "" || p.Port == "" {
		return Proxy{}, fmt.Errorf("invalid proxy %q: expected host:port", entry)
	}
	return p, nil
}

// ParseProxies parses a pool of proxy entries, rejecting the whole
// pool on the first malformed one.
func ParseProxies(entries []string) ([]Proxy, error) {
	var out []Proxy
	for _, entry := range entries {
		p, err := ParseProxy(entry)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

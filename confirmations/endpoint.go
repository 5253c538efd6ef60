// Package confirmations resolves where redemption requests are sent and the
// headers the confirmations server expects on them.
package confirmations

import (
	"errors"
	"fmt"
	"strings"
)

type Environment string

const (
	Production  Environment = "production"
	Staging     Environment = "staging"
	Development Environment = "development"
)

var ErrUnknownEnvironment = errors.New("unknown environment")

var hosts = map[Environment]string{
	Production:  "https://ads-serve.brave.com",
	Staging:     "https://ads-serve.bravesoftware.com",
	Development: "https://ads-serve.brave.software",
}

// ParseEnvironment accepts the environment names case insensitively. An empty
// name means production.
func ParseEnvironment(name string) (Environment, error) {
	if name == "" {
		return Production, nil
	}
	env := Environment(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := hosts[env]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEnvironment, name)
	}
	return env, nil
}

// Endpoint describes the confirmations server for one environment.
type Endpoint struct {
	Environment Environment `json:"environment,omitempty"`
	// HostOverride replaces the environment's host when set, e.g. for a
	// local verification server.
	HostOverride string `json:"host,omitempty"`
	// UncertainFuture is reported to the server in the via header.
	UncertainFuture bool `json:"uncertain_future,omitempty"`
}

// Host returns the scheme and host without a trailing slash.
func (e Endpoint) Host() string {
	if e.HostOverride != "" {
		return strings.TrimSuffix(e.HostOverride, "/")
	}
	if host, ok := hosts[e.Environment]; ok {
		return host
	}
	return hosts[Production]
}

func (e Endpoint) ViaHeader() string {
	uncertainFuture := 0
	if e.UncertainFuture {
		uncertainFuture = 1
	}
	return fmt.Sprintf("Via: 1.%d brave, 1.1 ads-serve.brave.com (Apache/1.1)", uncertainFuture)
}

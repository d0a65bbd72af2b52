package transport

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var defaultPorts = map[Kind]int{
	KindFTP:   21,
	KindSFTP:  22,
	KindHTTPS: 443,
}

// Endpoint is a parsed remote location.
type Endpoint struct {
	Kind Kind
	Host string
	// Port is 0 when the kind has no port (S3).
	Port int
	// Path is the initial remote directory, possibly empty.
	Path string
	// Raw is the location as configured.
	Raw string
}

// Addr returns host:port.
func (e *Endpoint) Addr() string {
	if e.Port == 0 {
		return e.Host
	}
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

func (e *Endpoint) String() string {
	return fmt.Sprintf("%s://%s%s", e.Kind, e.Addr(), e.Path)
}

func endpointPattern(kind Kind) *regexp.Regexp {
	return regexp.MustCompile(`^(?i:` + regexp.QuoteMeta(string(kind)) + `://)?([^/:]+)(:(\d+))?(/.*)?$`)
}

// ParseEndpoint parses scheme://host[:port][/path]. The scheme must match kind
// when present and the port falls back to the protocol default.
func ParseEndpoint(kind Kind, raw string) (*Endpoint, error) {
	loc := strings.TrimSpace(raw)
	if loc == "" {
		return nil, fmt.Errorf("%s location empty: %w", kind, ErrInvalidEndpoint)
	}

	m := endpointPattern(kind).FindStringSubmatch(loc)
	if m == nil {
		return nil, fmt.Errorf("not a valid %s location %q: %w", strings.ToUpper(string(kind)), raw, ErrInvalidEndpoint)
	}

	ep := &Endpoint{
		Kind: kind,
		Host: m[1],
		Port: defaultPorts[kind],
		Path: m[4],
		Raw:  raw,
	}
	if m[3] != "" {
		if kind == KindS3 {
			return nil, fmt.Errorf("s3 location %q cannot have a port: %w", raw, ErrInvalidEndpoint)
		}
		port, err := strconv.Atoi(m[3])
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("invalid port in %q: %w", raw, ErrInvalidEndpoint)
		}
		ep.Port = port
	}
	return ep, nil
}

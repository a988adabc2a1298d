// File: lixenwraith/registry/convert.go
package registry

import (
	"errors"
	"fmt"
	"math"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ParseFunc converts a raw source string into an option's typed value.
// Implementations return a *ConversionError for malformed input.
type ParseFunc[T any] func(raw string) (T, error)

const maskedValue = "****"

// Upper bounds taken from the longest valid textual form of each type
const (
	maxIPLength   = 45 // IPv6 with zone
	maxCIDRLength = 49
	maxURLLength  = 2048
)

func convErr(raw, target string, err error) *ConversionError {
	return &ConversionError{Value: raw, Target: target, Err: err}
}

// ParseBool accepts only "true" and "false", case-insensitively.
func ParseBool(raw string) (bool, error) {
	s := strings.TrimSpace(raw)
	switch {
	case strings.EqualFold(s, "true"):
		return true, nil
	case strings.EqualFold(s, "false"):
		return false, nil
	}
	return false, convErr(raw, "Boolean", nil)
}

// ParseInt parses a base-10 int.
func ParseInt(raw string) (int, error) {
	i, err := strconv.ParseInt(strings.TrimSpace(raw), 10, strconv.IntSize)
	if err != nil {
		return 0, convErr(raw, "Integer", err)
	}
	return int(i), nil
}

// ParseInt64 parses a base-10 int64.
func ParseInt64(raw string) (int64, error) {
	i, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, convErr(raw, "Long", err)
	}
	return i, nil
}

// ParseFloat parses a float64. NaN and infinities are rejected.
func ParseFloat(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, convErr(raw, "Double", err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, convErr(raw, "Double", errors.New("not a finite number"))
	}
	return f, nil
}

// ParseDuration parses Go duration syntax ("30s", "1m30s").
func ParseDuration(raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, convErr(raw, "Duration", err)
	}
	return d, nil
}

// ParseString returns the input unchanged.
func ParseString(raw string) (string, error) {
	return raw, nil
}

// ParseStringList splits on commas, trims elements and drops empty ones.
func ParseStringList(raw string) ([]string, error) {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// ParseURL requires an absolute URL with scheme and host.
func ParseURL(raw string) (*url.URL, error) {
	s := strings.TrimSpace(raw)
	if len(s) > maxURLLength {
		return nil, convErr(truncate(raw), "URL", fmt.Errorf("URL too long: %d bytes", len(s)))
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, convErr(raw, "URL", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, convErr(raw, "URL", errors.New("missing scheme or host"))
	}
	return u, nil
}

// ParseURLList parses a comma separated list of URLs.
func ParseURLList(raw string) ([]*url.URL, error) {
	parts, _ := ParseStringList(raw)
	out := make([]*url.URL, 0, len(parts))
	for _, p := range parts {
		u, err := ParseURL(p)
		if err != nil {
			return nil, convErr(raw, "URL list", err)
		}
		out = append(out, u)
	}
	return out, nil
}

// ParseIP parses an IPv4 or IPv6 address.
func ParseIP(raw string) (net.IP, error) {
	s := strings.TrimSpace(raw)
	if len(s) > maxIPLength {
		return nil, convErr(truncate(raw), "IP address", fmt.Errorf("invalid IP length: %d", len(s)))
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return nil, convErr(raw, "IP address", nil)
	}
	return ip, nil
}

// ParseCIDR parses a network in CIDR notation.
func ParseCIDR(raw string) (*net.IPNet, error) {
	s := strings.TrimSpace(raw)
	if len(s) > maxCIDRLength {
		return nil, convErr(truncate(raw), "CIDR", fmt.Errorf("invalid CIDR length: %d", len(s)))
	}
	_, ipnet, err := net.ParseCIDR(s)
	if err != nil {
		return nil, convErr(raw, "CIDR", err)
	}
	return ipnet, nil
}

// EnumParser returns a parser accepting exactly one of allowed (case-sensitive).
func EnumParser(allowed ...string) ParseFunc[string] {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	target := "one of [" + strings.Join(allowed, ", ") + "]"
	return func(raw string) (string, error) {
		s := strings.TrimSpace(raw)
		if _, ok := set[s]; !ok {
			return "", convErr(raw, target, nil)
		}
		return s, nil
	}
}

// truncate keeps oversized inputs out of error messages
func truncate(s string) string {
	const keep = 32
	if len(s) <= keep {
		return s
	}
	return s[:keep] + "..."
}

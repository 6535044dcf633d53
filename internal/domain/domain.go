// Package domain defines the symbolic category tags attached to image slots.
package domain

import (
	"fmt"
	"strings"
)

// Domain is a facing direction, or one of the wildcards Any and Many.
type Domain string

const (
	Front Domain = "front"
	Left  Domain = "left"
	Back  Domain = "back"
	Right Domain = "right"

	// Any matches a single concrete domain.
	Any Domain = "any"
	// Many marks a request bundling several source domains at once.
	Many Domain = "many"
)

// Ordered lists the concrete domains in the order the networks were trained
// with. Encoders index into this slice.
var Ordered = []Domain{Back, Left, Front, Right}

// Parse validates and normalizes a domain name.
func Parse(value string) (Domain, error) {
	d := Domain(strings.ToLower(strings.TrimSpace(value)))
	switch d {
	case Front, Left, Back, Right, Any, Many:
		return d, nil
	default:
		return "", fmt.Errorf("invalid domain %q (valid: back, left, front, right, any, many)", value)
	}
}

// ParseConcrete is like Parse but rejects the wildcards.
func ParseConcrete(value string) (Domain, error) {
	d, err := Parse(value)
	if err != nil {
		return "", err
	}
	if d.IsWildcard() {
		return "", fmt.Errorf("domain %q is a wildcard, expected one of back, left, front, right", value)
	}
	return d, nil
}

// IsWildcard reports whether d is Any or Many.
func (d Domain) IsWildcard() bool {
	return d == Any || d == Many
}

// Index returns the position of d in Ordered, or -1 for wildcards and
// unknown values.
func (d Domain) Index() int {
	for i, o := range Ordered {
		if o == d {
			return i
		}
	}
	return -1
}

func (d Domain) String() string {
	return string(d)
}

// UnmarshalText implements encoding.TextUnmarshaler so domains can be read
// from YAML and flags.
func (d *Domain) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Domain) MarshalText() ([]byte, error) {
	return []byte(d), nil
}

// Pair is an ordered (source, target) combination.
type Pair struct {
	Source Domain
	Target Domain
}

// DistinctPairs yields every ordered pair of distinct domains drawn from
// sources and targets. If targets is empty, sources is used for both.
func DistinctPairs(sources []Domain, targets ...Domain) []Pair {
	if len(targets) == 0 {
		targets = sources
	}
	var pairs []Pair
	for _, s := range sources {
		for _, t := range targets {
			if s == t {
				continue
			}
			pairs = append(pairs, Pair{Source: s, Target: t})
		}
	}
	return pairs
}

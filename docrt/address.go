package docrt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBadAddress reports a string that is not a canonical structural address.
// Callers typically fall back to treating the string as a CSS selector.
var ErrBadAddress = errors.New("docrt: malformed address")

// Step is one hop of a structural address: the element's tag and its 1-based
// position among all of its parent's element children.
type Step struct {
	Tag     string `json:"tag"`
	Ordinal int    `json:"ordinal"`
}

// Address locates one node in a document. Either ID is set (the node carries
// a stable id attribute, the shortest path with O(1) resolution) or Steps
// holds the full path from the document root.
//
// The canonical string form doubles as a CSS selector: "#the-id" for the id
// form, "html > body > div:nth-child(2)" for the path form. The singleton
// tags html, head and body are rendered bare; every other step carries an
// :nth-child() ordinal. Path addresses are deterministic against an
// unchanged document and are not guaranteed stable across mutations that
// reorder siblings or remove ancestors.
type Address struct {
	ID    string `json:"id,omitempty"`
	Steps []Step `json:"steps,omitempty"`
}

// AddressFromID builds an id-form address.
func AddressFromID(id string) Address {
	return Address{ID: id}
}

// AddressFromSteps builds a path-form address rooted at the document root.
func AddressFromSteps(steps ...Step) Address {
	return Address{Steps: steps}
}

// IsZero reports whether the address locates nothing.
func (a Address) IsZero() bool {
	return a.ID == "" && len(a.Steps) == 0
}

// Selector renders the canonical string form, directly usable as a CSS
// selector.
func (a Address) Selector() string {
	if a.ID != "" {
		return "#" + a.ID
	}
	parts := make([]string, len(a.Steps))
	for i, s := range a.Steps {
		if singletonTag(s.Tag) {
			parts[i] = s.Tag
			continue
		}
		parts[i] = s.Tag + ":nth-child(" + strconv.Itoa(s.Ordinal) + ")"
	}
	return strings.Join(parts, " > ")
}

func (a Address) String() string { return a.Selector() }

// ParseAddress parses a canonical address string. Anything else, including
// general CSS selectors, fails with ErrBadAddress.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, fmt.Errorf("docrt: parse address: empty: %w", ErrBadAddress)
	}
	if strings.HasPrefix(s, "#") {
		id := s[1:]
		if !ValidID(id) {
			return Address{}, fmt.Errorf("docrt: parse address %q: bad identifier: %w", s, ErrBadAddress)
		}
		return Address{ID: id}, nil
	}

	parts := strings.Split(s, ">")
	steps := make([]Step, 0, len(parts))
	for i, part := range parts {
		step, err := parseStep(strings.TrimSpace(part), i)
		if err != nil {
			return Address{}, fmt.Errorf("docrt: parse address %q: %w", s, err)
		}
		steps = append(steps, step)
	}
	if steps[0].Tag != "html" {
		return Address{}, fmt.Errorf("docrt: parse address %q: path must start at html: %w", s, ErrBadAddress)
	}
	return Address{Steps: steps}, nil
}

func parseStep(part string, idx int) (Step, error) {
	if part == "" {
		return Step{}, fmt.Errorf("empty step: %w", ErrBadAddress)
	}
	tag, rest, found := strings.Cut(part, ":")
	if !validTag(tag) {
		return Step{}, fmt.Errorf("step %q: bad tag: %w", part, ErrBadAddress)
	}
	if !found {
		// Bare steps are only allowed for the singleton tags, and head/body
		// only directly under html.
		if tag == "html" && idx == 0 {
			return Step{Tag: tag, Ordinal: 1}, nil
		}
		if (tag == "head" || tag == "body") && idx == 1 {
			return Step{Tag: tag}, nil
		}
		return Step{}, fmt.Errorf("step %q: missing ordinal: %w", part, ErrBadAddress)
	}
	if !strings.HasPrefix(rest, "nth-child(") || !strings.HasSuffix(rest, ")") {
		return Step{}, fmt.Errorf("step %q: bad ordinal form: %w", part, ErrBadAddress)
	}
	n, err := strconv.Atoi(rest[len("nth-child(") : len(rest)-1])
	if err != nil || n < 1 {
		return Step{}, fmt.Errorf("step %q: ordinal must be a positive integer: %w", part, ErrBadAddress)
	}
	return Step{Tag: tag, Ordinal: n}, nil
}

// ValidID reports whether id is safe to use in the "#id" canonical form: a
// CSS identifier with no escaping needed. Runtimes fall back to path
// addressing for nodes whose id attribute fails this.
func ValidID(id string) bool {
	if id == "" {
		return false
	}
	for i, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r == '-', r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func validTag(tag string) bool {
	if tag == "" {
		return false
	}
	for i, r := range tag {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func singletonTag(tag string) bool {
	return tag == "html" || tag == "head" || tag == "body"
}

package store

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// RuleKind discriminates transformation rules.
type RuleKind string

const (
	RuleHide      RuleKind = "hide"      // non-destructive invisibility
	RuleRemove    RuleKind = "remove"    // detach nodes from the document
	RuleHighlight RuleKind = "highlight" // outline + translucent background
	RuleStyle     RuleKind = "style"     // merge a style map onto matches
	RuleReplace   RuleKind = "replace"   // overwrite content with a fragment
	RuleMove      RuleKind = "move"      // relocate matches relative to dest
)

// Rule is one transformation: a kind, a target, and the fields that kind
// needs. Target is a CSS selector or a canonical structural address (both
// forms are selector-compatible). Ordering within a log or template is
// significant.
type Rule struct {
	ID        string            `json:"id"`
	Kind      RuleKind          `json:"kind"`
	Target    string            `json:"target"`
	Styles    map[string]string `json:"styles,omitempty"`
	Fragment  string            `json:"fragment,omitempty"`
	Dest      string            `json:"dest,omitempty"`
	Position  string            `json:"position,omitempty"` // before|after|replace|append|prepend
	CreatedAt int64             `json:"created_at,omitempty"`
}

// Validate checks the rule's shape: kind-specific required fields, closed
// kind and position sets. Style values themselves are not validated; the
// caller is trusted, garbage in is accepted.
func (r Rule) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ID, validation.Required),
		validation.Field(&r.Kind, validation.Required,
			validation.In(RuleHide, RuleRemove, RuleHighlight, RuleStyle, RuleReplace, RuleMove)),
		validation.Field(&r.Target, validation.Required),
		validation.Field(&r.Styles, validation.Required.When(r.Kind == RuleStyle)),
		validation.Field(&r.Fragment, validation.Required.When(r.Kind == RuleReplace)),
		validation.Field(&r.Dest, validation.Required.When(r.Kind == RuleMove)),
		validation.Field(&r.Position,
			validation.Required.When(r.Kind == RuleMove),
			validation.In("before", "after", "replace", "append", "prepend")),
	)
}

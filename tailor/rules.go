package tailor

import (
	"fmt"
	"time"

	"github.com/hazyhaar/domtailor/docrt"
	"github.com/hazyhaar/domtailor/idgen"
)

// Rule constructors assign a fresh id, stamp creation time and validate
// shape. Rules arriving from outside (templates, imports, API payloads)
// re-validate through the same Validate method.

// NewHideRule hides matching nodes without detaching them.
func NewHideRule(target string) (Rule, error) {
	return finishRule(Rule{Kind: RuleHide, Target: target})
}

// NewRemoveRule detaches matching nodes from the document.
func NewRemoveRule(target string) (Rule, error) {
	return finishRule(Rule{Kind: RuleRemove, Target: target})
}

// NewHighlightRule outlines matching nodes with a translucent background.
func NewHighlightRule(target string) (Rule, error) {
	return finishRule(Rule{Kind: RuleHighlight, Target: target})
}

// NewStyleRule merges styles onto each matching node's inline style.
func NewStyleRule(target string, styles map[string]string) (Rule, error) {
	return finishRule(Rule{Kind: RuleStyle, Target: target, Styles: styles})
}

// NewReplaceRule overwrites matching nodes' content with the fragment,
// verbatim. Untrusted fragments are sanitized at the import boundary, not
// here.
func NewReplaceRule(target, fragment string) (Rule, error) {
	return finishRule(Rule{Kind: RuleReplace, Target: target, Fragment: fragment})
}

// NewMoveRule relocates matching nodes relative to the first node matching
// dest. Position is one of before, after, replace, append, prepend.
func NewMoveRule(target, dest, position string) (Rule, error) {
	return finishRule(Rule{Kind: RuleMove, Target: target, Dest: dest, Position: position})
}

// NewRule dispatches to the constructor for kind. Fields irrelevant to the
// kind are ignored; API and MCP handlers funnel through here.
func NewRule(kind RuleKind, target string, styles map[string]string, fragment, dest, position string) (Rule, error) {
	switch kind {
	case RuleHide:
		return NewHideRule(target)
	case RuleRemove:
		return NewRemoveRule(target)
	case RuleHighlight:
		return NewHighlightRule(target)
	case RuleStyle:
		return NewStyleRule(target, styles)
	case RuleReplace:
		return NewReplaceRule(target, fragment)
	case RuleMove:
		return NewMoveRule(target, dest, position)
	}
	return Rule{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidRule, kind)
}

func finishRule(r Rule) (Rule, error) {
	r.ID = idgen.Prefixed("rul_", idgen.Default)()
	r.CreatedAt = time.Now().UnixMilli()
	if err := r.Validate(); err != nil {
		return Rule{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return r, nil
}

// ruleTarget converts a rule's stored target string into a docrt target:
// canonical addresses resolve structurally, everything else is treated as a
// CSS selector.
func ruleTarget(target string) docrt.Target {
	if a, err := docrt.ParseAddress(target); err == nil {
		return docrt.TargetAddress(a)
	}
	return docrt.TargetSelector(target)
}

package tailor

import "github.com/hazyhaar/domtailor/tailor/internal/store"

// Re-exported types from internal/store for use by cmd/ and external callers.
type (
	Rule     = store.Rule
	RuleKind = store.RuleKind
	Template = store.Template
)

// Rule kinds.
const (
	RuleHide      = store.RuleHide
	RuleRemove    = store.RuleRemove
	RuleHighlight = store.RuleHighlight
	RuleStyle     = store.RuleStyle
	RuleReplace   = store.RuleReplace
	RuleMove      = store.RuleMove
)

package docrt

// MutationKind discriminates write requests.
type MutationKind string

const (
	// MutSetStyles merges Styles into each matched node's inline style. An
	// empty value clears that property.
	MutSetStyles MutationKind = "set_styles"

	// MutSetAttrs sets Attrs on each matched node.
	MutSetAttrs MutationKind = "set_attrs"

	// MutRemoveAttrs removes AttrKeys from each matched node.
	MutRemoveAttrs MutationKind = "remove_attrs"

	// MutRemoveNodes detaches matched nodes from the document. Their
	// addresses stop resolving afterwards.
	MutRemoveNodes MutationKind = "remove_nodes"

	// MutReplaceContent replaces each matched node's inner HTML with
	// Fragment, verbatim.
	MutReplaceContent MutationKind = "replace_content"

	// MutMoveNodes relocates matched nodes relative to the first node
	// matching Dest, per Position. A missing destination is a no-op.
	MutMoveNodes MutationKind = "move_nodes"

	// MutSetListeners installs the interaction listeners for Mode and
	// removes every listener and visual artifact of the previously
	// installed mode. At most one mode's listeners are active at a time.
	MutSetListeners MutationKind = "set_listeners"

	// MutReset restores the document to its pristine state (reload or
	// re-parse). Targets, styles and markers applied so far are discarded.
	MutReset MutationKind = "reset"
)

// InsertPosition says where moved nodes land relative to the destination.
type InsertPosition string

const (
	PosBefore  InsertPosition = "before"
	PosAfter   InsertPosition = "after"
	PosReplace InsertPosition = "replace"
	PosAppend  InsertPosition = "append"
	PosPrepend InsertPosition = "prepend"
)

// ValidPosition reports whether p is one of the five insert positions.
func ValidPosition(p InsertPosition) bool {
	switch p {
	case PosBefore, PosAfter, PosReplace, PosAppend, PosPrepend:
		return true
	}
	return false
}

// Mutation is one write request. Kind selects which payload fields apply.
type Mutation struct {
	Kind     MutationKind      `json:"kind"`
	Target   Target            `json:"target,omitzero"`
	Styles   map[string]string `json:"styles,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	AttrKeys []string          `json:"attr_keys,omitempty"`
	Fragment string            `json:"fragment,omitempty"`
	Dest     string            `json:"dest,omitempty"`
	Position InsertPosition    `json:"position,omitempty"`
	Mode     string            `json:"mode,omitempty"`
}

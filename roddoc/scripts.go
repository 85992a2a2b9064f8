package roddoc

import _ "embed"

// libJS is the fixed page-side helper library. All variable data reaches it
// as JSON arguments, never by string interpolation.
//
//go:embed scripts/lib.js
var libJS string

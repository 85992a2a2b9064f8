package tailor

import "errors"

var (
	// ErrNoSession is returned by any operation addressing a session id that
	// was never attached or has been detached. Unknown sessions fail loudly,
	// never as a silent no-op.
	ErrNoSession = errors.New("tailor: no such session")

	// ErrTemplateNotFound is returned when a template id does not exist,
	// including ids of deleted templates.
	ErrTemplateNotFound = errors.New("tailor: template not found")

	// ErrInvalidMode is returned by SetMode for a mode outside the closed
	// mode set.
	ErrInvalidMode = errors.New("tailor: invalid mode")

	// ErrInvalidRule wraps rule validation failures on deserialized rules.
	ErrInvalidRule = errors.New("tailor: invalid rule")
)

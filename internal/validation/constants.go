package validation

// String length limits for free-text request fields.
const (
	MaxNoteLength      = 500
	MaxReferenceLength = 100
)

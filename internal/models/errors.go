package models

// ValidationError marks a request that can never succeed as phrased:
// unknown kind, unparseable identifier, unknown relationship, and so on.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NotFoundError marks a well-formed identifier with no matching node.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

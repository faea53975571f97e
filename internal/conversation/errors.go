package conversation

import "fmt"

// InvalidRoleError is returned by Append before the store is touched.
type InvalidRoleError struct {
	Role   Role
	Reason string
}

func (e *InvalidRoleError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid role %q: %s", e.Role, e.Reason)
	}
	return fmt.Sprintf("invalid role %q", e.Role)
}

// InvalidFormatError is returned when an imported conversation is not an
// ordered list of well-formed message records.
type InvalidFormatError struct {
	Reason string
}

func (e *InvalidFormatError) Error() string {
	return "invalid conversation format: " + e.Reason
}

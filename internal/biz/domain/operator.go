package domain

// Operator is the single privileged identity.
// Every operator-only action is checked through Authorize.
type Operator struct {
	id string
}

// NewOperator creates the operator identity from its configured user id
func NewOperator(id string) Operator {
	return Operator{id: id}
}

// ID returns the operator's user id
func (o Operator) ID() string {
	return o.id
}

// Is reports whether userID is the operator
func (o Operator) Is(userID string) bool {
	return o.id != "" && userID == o.id
}

// Authorize returns ErrPermissionDenied unless userID is the operator
func (o Operator) Authorize(userID string) error {
	if !o.Is(userID) {
		return ErrPermissionDenied
	}
	return nil
}

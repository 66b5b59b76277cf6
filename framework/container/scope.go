package container

// Scope is the lifetime policy of a provider.
type Scope int

const (
	// Operation scope: one instance per resolution operation, released when
	// the operation closes.
	Operation Scope = iota

	// Process scope: one instance for the registry's whole life, released
	// when the registry is closed.
	Process
)

// String returns the human-readable name of the scope.
func (s Scope) String() string {
	switch s {
	case Operation:
		return "operation"
	case Process:
		return "process"
	default:
		return "unknown"
	}
}

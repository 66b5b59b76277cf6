package container

// ResetActive clears the process-wide injector between tests.
func ResetActive() { active.Store(nil) }

// WrapperCount returns the number of cached wrappers bound to r.
func WrapperCount(r *Registry) int { return wrappers.count(r) }

package store

// SetEmployeeDeleteHook installs a hook that runs after each cascade step of
// DeleteEmployee and returns a func restoring the previous one.
func SetEmployeeDeleteHook(h func(step string) error) func() {
	prev := employeeDeleteHook
	employeeDeleteHook = h

	return func() { employeeDeleteHook = prev }
}

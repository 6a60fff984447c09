package tty

// Windows consoles have no SIGWINCH; geometry stays at its initial value.
func watchResize(func()) func() {
	return func() {}
}

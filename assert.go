//go:build !dieseldebug

package diesel

// debugAsserts turns contract violations into panics. Build with the
// dieseldebug tag to enable it.
const debugAsserts = false

//go:build dieseldebug

package diesel

const debugAsserts = true

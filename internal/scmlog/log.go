// Package scmlog is a thin wrapper around the standard logger, matching
// the plain log.Printf idiom the rest of this module's ancestry uses —
// no structured logging framework is pulled in.
package scmlog

import "log"

// Printf logs a formatted message, prefixed like every other call site
// in this module for easy grepping.
func Printf(format string, args ...any) {
	log.Printf("scm: "+format, args...)
}

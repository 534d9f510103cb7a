package scmfile

import (
	"os"
	"path/filepath"
)

// Context carries the ambient configuration a File lookup needs: the
// SCMPATH-style search list. Kept as an explicit struct rather than a
// package global so tests and concurrent callers never race over it (see
// SPEC_FULL.md §2, "global mutable state as a context struct").
type Context struct {
	// SearchPath lists directories to search for a pyramid by name when
	// it is not given as an absolute or relative path that already
	// exists. Mirrors the SCMPATH environment variable's list syntax.
	SearchPath []string
}

// NewContext builds a Context from the SCMPATH environment variable,
// split on the platform's path-list separator.
func NewContext() Context {
	val := os.Getenv("SCMPATH")
	if val == "" {
		return Context{}
	}
	return Context{SearchPath: filepath.SplitList(val)}
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// resolve finds the on-disk path for a pyramid named by the caller: used
// directly if it already names an existing regular file, else searched
// for across ctx.SearchPath.
func (ctx Context) resolve(name string) (string, bool) {
	if exists(name) {
		return name, true
	}
	for _, dir := range ctx.SearchPath {
		candidate := filepath.Join(dir, name)
		if exists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

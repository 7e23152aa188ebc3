// Package lca finds the deepest directory shared by a set of repository paths.
package lca

import (
	"path"
	"strings"
)

// CommonDir returns the deepest directory containing every file. Paths are
// slash separated as in the GitHub API. It returns "." when the files share
// no directory or there are none.
func CommonDir(files []string) string {
	if len(files) == 0 {
		return "."
	}

	common := path.Dir(path.Clean(files[0]))
	for _, f := range files[1:] {
		dir := path.Dir(path.Clean(f))
		for common != "." && !within(dir, common) {
			common = path.Dir(common)
		}
		if common == "." {
			break
		}
	}
	if common == "/" {
		return "."
	}
	return common
}

// within reports whether dir is ancestor or dir itself.
func within(dir, ancestor string) bool {
	return dir == ancestor || strings.HasPrefix(dir, ancestor+"/")
}

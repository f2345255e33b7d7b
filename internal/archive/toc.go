package archive

import (
	"path"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/klauspost/compress/zip"
)

// toc is the closed set of addressable entries of an archive. Requested
// paths are matched against it by key only and never touch the filesystem.
type toc struct {
	files map[string]*zip.File
	// dirs holds explicit folder entries and folders implied by deeper paths.
	dirs map[string]time.Time
}

func newTOC(r *zip.Reader) *toc {
	t := &toc{files: make(map[string]*zip.File), dirs: make(map[string]time.Time)}

	for _, f := range r.File {
		isDir := strings.HasSuffix(f.Name, "/")
		name, ok := normalizePath(f.Name)
		if !ok || name == "" {
			continue
		}
		if isDir {
			t.dirs[name] = f.Modified
		} else {
			t.files[name] = f
		}
	}

	// Folders that exist only as a prefix take the newest time of their contents.
	implicit := make(map[string]time.Time)
	mark := func(name string, modified time.Time) {
		for dir := parentOf(name); dir != ""; dir = parentOf(dir) {
			if _, explicit := t.dirs[dir]; explicit {
				continue
			}
			if cur, ok := implicit[dir]; !ok || modified.After(cur) {
				implicit[dir] = modified
			}
		}
	}
	for name, f := range t.files {
		mark(name, f.Modified)
	}
	for name, modified := range t.dirs {
		mark(name, modified)
	}
	for dir, modified := range implicit {
		t.dirs[dir] = modified
	}

	return t
}

func (t *toc) isDir(name string) bool {
	_, ok := t.dirs[name]
	return ok
}

// normalizePath converts a requested path to a TOC key. The root maps to "".
// Paths with backslashes or ".." segments are rejected.
func normalizePath(p string) (string, bool) {
	if strings.Contains(p, `\`) {
		return "", false
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", false
		}
	}
	clean := strings.Trim(path.Clean("/"+p), "/")
	return clean, true
}

// parentOf returns the TOC key of the folder containing name.
func parentOf(name string) string {
	dir := path.Dir(name)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}

// languageFor names the chroma lexer matching the file name, if any.
func languageFor(name string) string {
	lexer := lexers.Match(path.Base(name))
	if lexer == nil {
		return ""
	}
	return lexer.Config().Name
}

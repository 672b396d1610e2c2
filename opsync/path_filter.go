package opsync

import (
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// PathFilter restricts publishing to a set of dot-delimited property paths.
//
// A node at path P is built when a filter path is P or starts with P.
// Each level publishes only the names one segment below it, so a node
// whose path is itself a filter path publishes its own assignment and nothing beneath it.
// A nil filter publishes everything.
type PathFilter struct {
	paths map[string]bool
}

func NewPathFilter(paths ...string) *PathFilter {
	filterPaths := map[string]bool{}
	for _, path := range paths {
		path = strings.Trim(strings.TrimSpace(path), ".")
		if path != "" {
			filterPaths[path] = true
		}
	}
	return &PathFilter{
		paths: filterPaths,
	}
}

func (self *PathFilter) Paths() []string {
	if self == nil {
		return nil
	}
	paths := maps.Keys(self.paths)
	slices.Sort(paths)
	return paths
}

func JoinPath(basePath string, name string) string {
	if basePath == "" {
		return name
	}
	if name == "" {
		return basePath
	}
	return basePath + "." + name
}

func hasPathPrefix(path string, prefix string) bool {
	if prefix == "" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+".")
}

func firstSegment(path string) string {
	if i := strings.IndexByte(path, '.'); 0 <= i {
		return path[:i]
	}
	return path
}

// true when `path` is a filter path or an ancestor of one
func (self *PathFilter) Allows(path string) bool {
	if self == nil {
		return true
	}
	for filterPath := range self.paths {
		if hasPathPrefix(filterPath, path) {
			return true
		}
	}
	return false
}

// Names prunes the filter one segment below `basePath`.
// `all` is true only for a nil filter. A filter path equal to `basePath` contributes no names.
func (self *PathFilter) Names(basePath string) (names map[string]bool, all bool) {
	if self == nil {
		return nil, true
	}
	names = map[string]bool{}
	for filterPath := range self.paths {
		var rest string
		if basePath == "" {
			rest = filterPath
		} else if strings.HasPrefix(filterPath, basePath+".") {
			rest = filterPath[len(basePath)+1:]
		} else {
			continue
		}
		if name := firstSegment(rest); name != "" {
			names[name] = true
		}
	}
	return names, false
}

// Rebase moves the filter paths at or under `from` to be at or under `to`.
// Paths outside of `from` are dropped.
func (self *PathFilter) Rebase(from string, to string) *PathFilter {
	if self == nil {
		return nil
	}
	rebasedPaths := map[string]bool{}
	for filterPath := range self.paths {
		if filterPath == from {
			if to != "" {
				rebasedPaths[to] = true
			}
		} else if strings.HasPrefix(filterPath, from+".") {
			rebasedPaths[JoinPath(to, filterPath[len(from)+1:])] = true
		}
	}
	return &PathFilter{
		paths: rebasedPaths,
	}
}

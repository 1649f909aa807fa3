package patch

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/roach88/docsync/internal/editlog"
	"github.com/roach88/docsync/internal/ir"
)

func (r *run) deleteRoot(patch ir.IRValue) {
	if !recursable(patch) {
		r.skip(editlog.OpDelete, ir.RootPath, ErrCodeRoot, "the document root cannot be deleted")
		return
	}
	r.deleteChildren(ir.RootPath, patch)
}

// recursable reports whether a delete patch node names children rather
// than the node itself.
func recursable(v ir.IRValue) bool {
	switch n := v.(type) {
	case ir.IRObject:
		return len(n) > 0
	case ir.IRArray:
		return len(n) > 0
	}
	return false
}

// deleteChildren deletes or descends into each child the patch node names.
// An array node is shorthand for a map whose keys are its elements.
func (r *run) deleteChildren(prefix ir.Path, node ir.IRValue) {
	children := map[string]ir.IRValue{}
	switch n := node.(type) {
	case ir.IRObject:
		for k, v := range n {
			children[k] = v
		}
	case ir.IRArray:
		for _, elem := range n {
			name, ok := childName(elem)
			if !ok {
				r.skip(editlog.OpDelete, prefix, ErrCodeInvalidPatch,
					fmt.Sprintf("cannot use %s as a child name", ir.CanonicalString(elem)))
				continue
			}
			children[name] = nil
		}
	}

	target, _ := r.node(prefix)
	for _, key := range deleteOrder(target, children) {
		path := prefix.Child(key)
		if recursable(children[key]) {
			if _, ok := ir.Get(r.doc, path); !ok {
				r.skip(editlog.OpDelete, path, ErrCodeMissingPath, "path does not exist")
				continue
			}
			r.deleteChildren(path, children[key])
			continue
		}
		r.deletePath(path)
	}
}

// deleteOrder sorts child keys canonically, except that indexes into an
// array go highest first so earlier removals do not shift later ones.
func deleteOrder(target ir.IRValue, children map[string]ir.IRValue) []string {
	keys := make([]string, 0, len(children))
	for k := range children {
		keys = append(keys, k)
	}
	if _, isArray := target.(ir.IRArray); isArray {
		sort.SliceStable(keys, func(i, j int) bool {
			a, errA := strconv.Atoi(keys[i])
			b, errB := strconv.Atoi(keys[j])
			if errA != nil || errB != nil {
				return keys[i] < keys[j]
			}
			return a > b
		})
		return keys
	}
	return ir.IRObject(children).SortedKeys()
}

func childName(v ir.IRValue) (string, bool) {
	switch s := v.(type) {
	case ir.IRString:
		return string(s), true
	case ir.IRInt:
		return strconv.FormatInt(int64(s), 10), true
	}
	return "", false
}

// deletePath removes the node at path, capturing the whole removed subtree
// as value_old.
func (r *run) deletePath(path ir.Path) {
	current, ok := ir.Get(r.doc, path)
	if !ok {
		r.skip(editlog.OpDelete, path, ErrCodeMissingPath, "path does not exist")
		return
	}
	if reason, blocked := r.deleteBlocked(path, current); blocked {
		r.skip(editlog.OpDelete, path, ErrCodeProtected, reason)
		return
	}
	if _, err := ir.Unset(r.doc, path); err != nil {
		r.skip(editlog.OpDelete, path, ErrCodeWrite, err.Error())
		return
	}
	r.record(editlog.Entry{Op: editlog.OpDelete, Path: path, Old: ir.Clone(current)})
}

// deleteBlocked applies the necessary flags. The node itself is protected
// by "self" or "all"; every strict ancestor marked "all" protects it too,
// except when the target is that ancestor's $meta or $meta.necessary.
func (r *run) deleteBlocked(path ir.Path, current ir.IRValue) (string, bool) {
	switch ir.Necessary(current) {
	case ir.NecessarySelf, ir.NecessaryAll:
		return "node is marked necessary", true
	}
	for depth := 0; depth < len(path); depth++ {
		ancestor, _ := r.node(path[:depth])
		if ir.Necessary(ancestor) != ir.NecessaryAll {
			continue
		}
		if metaTarget(path[depth:]) {
			continue
		}
		return fmt.Sprintf("ancestor %s is marked necessary:all", path[:depth]), true
	}
	return "", false
}

// metaTarget reports whether rel (relative to a protected node) addresses
// the node's $meta or $meta.necessary.
func metaTarget(rel ir.Path) bool {
	switch len(rel) {
	case 1:
		return rel[0] == ir.MetaKey
	case 2:
		return rel[0] == ir.MetaKey && rel[1] == ir.MetaNecessary
	}
	return false
}

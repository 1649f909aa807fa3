package patch

import (
	"github.com/roach88/docsync/internal/editlog"
	"github.com/roach88/docsync/internal/ir"
)

func (r *run) updateRoot(patch ir.IRValue) {
	obj, ok := patch.(ir.IRObject)
	if !ok {
		r.skip(editlog.OpUpdate, ir.RootPath, ErrCodeInvalidPatch, "update patch must be a map")
		return
	}
	r.updateChildren(ir.RootPath, obj)
}

// locked reports whether the document node carries $meta.updatable:false.
func locked(node ir.IRValue) bool {
	updatable, set := ir.Updatable(node)
	return set && !updatable
}

// unlocks reports whether the patch node explicitly sets
// $meta.updatable:true, the only way past a lock.
func unlocks(patchNode ir.IRObject) bool {
	updatable, set := ir.Updatable(patchNode)
	return set && updatable
}

// updateChildren walks a composite patch node against the existing node at
// prefix. The patch's $meta is read for the unlock flag and never written.
func (r *run) updateChildren(prefix ir.Path, node ir.IRObject) {
	target, ok := r.node(prefix)
	if !ok {
		r.skip(editlog.OpUpdate, prefix, ErrCodeMissingPath, "path does not exist")
		return
	}
	if locked(target) && !unlocks(node) {
		r.skip(editlog.OpUpdate, prefix, ErrCodeProtected, "subtree is not updatable")
		return
	}

	for _, key := range node.SortedKeys() {
		if key == ir.MetaKey {
			continue
		}
		path := prefix.Child(key)
		if child, ok := node[key].(ir.IRObject); ok {
			r.updateChildren(path, child)
			continue
		}
		r.updateLeaf(path, node[key])
	}
}

// updateLeaf replaces the existing value at path.
//
// CRITICAL: an entry is logged even when the value does not change; the
// log records what the commit asked for.
func (r *run) updateLeaf(path ir.Path, value ir.IRValue) {
	current, ok := ir.Get(r.doc, path)
	if !ok {
		r.skip(editlog.OpUpdate, path, ErrCodeMissingPath, "path does not exist")
		return
	}
	if locked(current) {
		r.skip(editlog.OpUpdate, path, ErrCodeProtected, "subtree is not updatable")
		return
	}

	old := r.lookupOld(path, current)
	value = ir.SanitizeArrays(value)
	if err := ir.Set(r.doc, path, value, false); err != nil {
		r.skip(editlog.OpUpdate, path, ErrCodeWrite, err.Error())
		return
	}
	r.record(editlog.Entry{Op: editlog.OpUpdate, Path: path, Old: old, New: ir.Clone(value)})
}

package patch

import (
	"strconv"

	"github.com/roach88/docsync/internal/editlog"
	"github.com/roach88/docsync/internal/ir"
)

func (r *run) insertRoot(patch ir.IRValue) {
	obj, ok := patch.(ir.IRObject)
	if !ok {
		r.skip(editlog.OpInsert, ir.RootPath, ErrCodeInvalidPatch, "insert patch must be a map")
		return
	}
	r.insertChildren(ir.RootPath, obj, nil)
}

// insertChildren merges the keys of node into the existing container at
// prefix. inherited is the nearest template carried by a patch ancestor.
//
// Template precedence for a new key: the existing container's own
// $meta.template, then the template carried by node, then inherited.
func (r *run) insertChildren(prefix ir.Path, node ir.IRObject, inherited ir.IRValue) {
	container, _ := r.node(prefix)
	carried := inherited
	if t, ok := ir.Template(node); ok {
		carried = t
	}
	tmpl := carried
	if t, ok := ir.Template(container); ok {
		tmpl = t
	}

	for _, key := range node.SortedKeys() {
		path := prefix.Child(key)
		value := node[key]
		existing, present := ir.Get(r.doc, path)

		if !present {
			if key == ir.MetaKey {
				r.insertValue(path, value, nil)
			} else {
				r.insertValue(path, value, tmpl)
			}
			continue
		}

		switch cur := existing.(type) {
		case ir.IRObject:
			if child, ok := value.(ir.IRObject); ok {
				r.insertChildren(path, child, carried)
				continue
			}
		case ir.IRArray:
			if elems, ok := value.(ir.IRArray); ok {
				r.appendElements(path, len(cur), elems)
				continue
			}
		}
		r.skip(editlog.OpInsert, path, ErrCodeNotRecursable, "path exists and cannot be merged into")
	}
}

// insertValue writes value at the absent path as one atomic subtree.
func (r *run) insertValue(path ir.Path, value, tmpl ir.IRValue) {
	if tmpl != nil {
		if _, ok := value.(ir.IRObject); ok {
			value = ir.MergeTemplate(tmpl, value)
		}
	}
	value = ir.SanitizeArrays(value)
	if err := ir.Set(r.doc, path, value, false); err != nil {
		r.skip(editlog.OpInsert, path, ErrCodeWrite, err.Error())
		return
	}
	r.record(editlog.Entry{Op: editlog.OpInsert, Path: path, New: ir.Clone(value)})
}

// appendElements appends elems to the existing array at path, one entry
// per element so each reverses independently.
func (r *run) appendElements(path ir.Path, length int, elems ir.IRArray) {
	for i, elem := range elems {
		if ir.IsComposite(elem) {
			elem = ir.IRString(ir.CanonicalString(elem))
		}
		elemPath := path.Child(strconv.Itoa(length + i))
		if err := ir.Set(r.doc, elemPath, elem, false); err != nil {
			r.skip(editlog.OpInsert, elemPath, ErrCodeWrite, err.Error())
			return
		}
		r.record(editlog.Entry{Op: editlog.OpInsert, Path: elemPath, New: ir.Clone(elem)})
	}
}

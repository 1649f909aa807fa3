package ir

import (
	"fmt"
	"strconv"
)

// Clone returns a deep copy of v. Scalars are values already; only maps and
// arrays are copied.
func Clone(v IRValue) IRValue {
	switch val := v.(type) {
	case IRObject:
		return CloneObject(val)
	case IRArray:
		out := make(IRArray, len(val))
		for i, elem := range val {
			out[i] = Clone(elem)
		}
		return out
	default:
		return v
	}
}

// CloneObject is Clone specialised for objects. A nil object clones to an
// empty one so callers can always write into the result.
func CloneObject(obj IRObject) IRObject {
	out := make(IRObject, len(obj))
	for k, elem := range obj {
		out[k] = Clone(elem)
	}
	return out
}

// Equal reports deep equality. A nil IRValue only equals nil; IRInt and
// IRFloat compare numerically.
func Equal(a, b IRValue) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case IRNull:
		_, ok := b.(IRNull)
		return ok
	case IRString:
		bv, ok := b.(IRString)
		return ok && av == bv
	case IRBool:
		bv, ok := b.(IRBool)
		return ok && av == bv
	case IRInt:
		switch bv := b.(type) {
		case IRInt:
			return av == bv
		case IRFloat:
			return float64(av) == float64(bv)
		}
		return false
	case IRFloat:
		switch bv := b.(type) {
		case IRFloat:
			return av == bv
		case IRInt:
			return float64(av) == float64(bv)
		}
		return false
	case IRArray:
		bv, ok := b.(IRArray)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case IRObject:
		bv, ok := b.(IRObject)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, elem := range av {
			other, exists := bv[k]
			if !exists || !Equal(elem, other) {
				return false
			}
		}
		return true
	}
	return false
}

// Get returns the value at path and whether it exists.
// Array segments are decimal indexes.
func Get(root IRValue, path Path) (IRValue, bool) {
	cur := root
	for _, seg := range path {
		next, ok := child(cur, seg)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, cur != nil
}

func child(node IRValue, seg string) (IRValue, bool) {
	switch n := node.(type) {
	case IRObject:
		v, ok := n[seg]
		return v, ok
	case IRArray:
		idx, ok := arrayIndex(seg, len(n))
		if !ok {
			return nil, false
		}
		return n[idx], true
	}
	return nil, false
}

// arrayIndex parses seg as an index in [0, length).
func arrayIndex(seg string, length int) (int, bool) {
	idx, err := strconv.Atoi(seg)
	if err != nil || idx < 0 || idx >= length {
		return 0, false
	}
	return idx, true
}

// Set writes v at path inside root, which must be an IRObject.
// Parents must exist unless createParents is set, in which case missing
// intermediate nodes are created as objects. On arrays, an index equal to
// the length appends.
func Set(root IRObject, path Path, v IRValue, createParents bool) error {
	return write(root, path, v, createParents, false)
}

// Restore is Set, except that on arrays it inserts at the index instead of
// replacing, undoing an Unset of that element.
func Restore(root IRObject, path Path, v IRValue) error {
	return write(root, path, v, true, true)
}

func write(root IRObject, path Path, v IRValue, createParents, insert bool) error {
	if len(path) == 0 {
		return fmt.Errorf("cannot write the document root")
	}
	parent, err := resolveParent(root, path.Parent(), createParents)
	if err != nil {
		return err
	}
	last := path.Last()

	switch p := parent.(type) {
	case IRObject:
		p[last] = v
		return nil
	case IRArray:
		idx, convErr := strconv.Atoi(last)
		if convErr != nil || idx < 0 || idx > len(p) {
			return fmt.Errorf("path %s: index %q out of range", path, last)
		}
		var updated IRArray
		switch {
		case idx == len(p):
			updated = append(p, v)
		case insert:
			updated = append(p[:idx:idx], append(IRArray{v}, p[idx:]...)...)
		default:
			p[idx] = v
			return nil
		}
		// Arrays may grow; the containing node must see the new header.
		return replaceNode(root, path.Parent(), updated)
	default:
		return fmt.Errorf("path %s: parent is not a container", path)
	}
}

// Unset removes the value at path. Removing a missing path is a no-op and
// reports false.
func Unset(root IRObject, path Path) (bool, error) {
	if len(path) == 0 {
		return false, fmt.Errorf("cannot unset the document root")
	}
	parentVal, ok := Get(root, path.Parent())
	if path.Parent().IsRoot() {
		parentVal, ok = root, true
	}
	if !ok {
		return false, nil
	}
	last := path.Last()

	switch p := parentVal.(type) {
	case IRObject:
		if _, exists := p[last]; !exists {
			return false, nil
		}
		delete(p, last)
		return true, nil
	case IRArray:
		idx, valid := arrayIndex(last, len(p))
		if !valid {
			return false, nil
		}
		updated := append(p[:idx:idx], p[idx+1:]...)
		return true, replaceNode(root, path.Parent(), updated)
	}
	return false, nil
}

// resolveParent walks to the container at path, optionally creating
// missing objects along the way.
func resolveParent(root IRObject, path Path, create bool) (IRValue, error) {
	var cur IRValue = root
	for i, seg := range path {
		next, ok := child(cur, seg)
		if !ok || next == nil {
			if !create {
				return nil, fmt.Errorf("path %s: parent %s does not exist", path, path[:i+1])
			}
			obj, isObj := cur.(IRObject)
			if !isObj {
				return nil, fmt.Errorf("path %s: cannot create %q inside a non-object", path, seg)
			}
			next = IRObject{}
			obj[seg] = next
		}
		cur = next
	}
	return cur, nil
}

// replaceNode swaps the node at path (which must already exist) for v.
func replaceNode(root IRObject, path Path, v IRValue) error {
	if len(path) == 0 {
		return fmt.Errorf("cannot replace the document root")
	}
	return write(root, path, v, false, false)
}

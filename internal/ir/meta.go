package ir

// Reserved metadata keys. A map node may carry a "$meta" object that governs
// protection and default values for that node; it is stripped before the
// document is handed to external consumers.
const (
	MetaKey       = "$meta"
	MetaNecessary = "necessary"
	MetaUpdatable = "updatable"
	MetaTemplate  = "template"
)

// Values of $meta.necessary.
const (
	NecessarySelf = "self" // the node itself may not be deleted
	NecessaryAll  = "all"  // neither the node nor any descendant may be deleted
)

// Meta returns the $meta object of v, if v is an object carrying one.
func Meta(v IRValue) (IRObject, bool) {
	obj, ok := v.(IRObject)
	if !ok {
		return nil, false
	}
	meta, ok := obj[MetaKey].(IRObject)
	return meta, ok
}

// Necessary returns the $meta.necessary level of v ("" when unset).
func Necessary(v IRValue) string {
	meta, ok := Meta(v)
	if !ok {
		return ""
	}
	s, _ := meta[MetaNecessary].(IRString)
	return string(s)
}

// Updatable reports the explicit $meta.updatable flag of v. The second
// result is false when the flag is absent.
func Updatable(v IRValue) (bool, bool) {
	meta, ok := Meta(v)
	if !ok {
		return false, false
	}
	b, ok := meta[MetaUpdatable].(IRBool)
	return bool(b), ok
}

// Template returns the $meta.template default of v, if any.
func Template(v IRValue) (IRValue, bool) {
	meta, ok := Meta(v)
	if !ok {
		return nil, false
	}
	tmpl, ok := meta[MetaTemplate]
	return tmpl, ok && tmpl != nil
}

// StripMeta returns a deep copy of v with every $meta key removed.
func StripMeta(v IRValue) IRValue {
	switch val := v.(type) {
	case IRObject:
		out := make(IRObject, len(val))
		for k, elem := range val {
			if k == MetaKey {
				continue
			}
			out[k] = StripMeta(elem)
		}
		return out
	case IRArray:
		out := make(IRArray, len(val))
		for i, elem := range val {
			out[i] = StripMeta(elem)
		}
		return out
	default:
		return v
	}
}

// SanitizeArrays returns a deep copy of v in which every map or array found
// inside an array element is replaced by its canonical JSON string. Nested
// structure inside arrays is ambiguous to later merges, so it is stored
// opaque.
func SanitizeArrays(v IRValue) IRValue {
	switch val := v.(type) {
	case IRObject:
		out := make(IRObject, len(val))
		for k, elem := range val {
			out[k] = SanitizeArrays(elem)
		}
		return out
	case IRArray:
		out := make(IRArray, len(val))
		for i, elem := range val {
			if IsComposite(elem) {
				out[i] = IRString(CanonicalString(elem))
				continue
			}
			out[i] = elem
		}
		return out
	default:
		return v
	}
}

// MergeTemplate deep-merges value over tmpl: keys present in value win,
// objects present on both sides merge recursively. Non-object values are
// returned as a copy of value unchanged.
func MergeTemplate(tmpl, value IRValue) IRValue {
	tObj, tOK := tmpl.(IRObject)
	vObj, vOK := value.(IRObject)
	if !tOK || !vOK {
		return Clone(value)
	}
	out := CloneObject(tObj)
	for k, elem := range vObj {
		if existing, ok := out[k]; ok {
			out[k] = MergeTemplate(existing, elem)
			continue
		}
		out[k] = Clone(elem)
	}
	return out
}

package api

// Object is one decoded API object, e.g. an article.
type Object = map[string]any

// Response maps object types to their objects, e.g. {"articles": [...]}.
type Response map[string][]Object

// Clone returns a deep copy of r.
func (r Response) Clone() Response {
	if r == nil {
		return nil
	}
	out := make(Response, len(r))
	for typ, objs := range r {
		cp := make([]Object, len(objs))
		for i, o := range objs {
			cp[i] = cloneValue(o).(Object)
		}
		out[typ] = cp
	}
	return out
}

// Merge copies every type of other into r, replacing existing arrays.
func (r Response) Merge(other Response) Response {
	for typ, objs := range other {
		r[typ] = objs
	}
	return r
}

// Find returns the object of type typ whose id equals id.
func (r Response) Find(typ string, id float64) (Object, bool) {
	for _, o := range r[typ] {
		if v, ok := o["id"].(float64); ok && v == id {
			return o, true
		}
	}
	return nil, false
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

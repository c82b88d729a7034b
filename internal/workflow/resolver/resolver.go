// Package resolver substitutes ${dotted.path} placeholders in generic
// documents (nested maps, slices and scalars).
//
// A string value found at the path is spliced into the surrounding text. Any
// other value replaces the whole field, so a field can change type. Paths that
// do not resolve are left untouched. Each call is a single pass.
package resolver

import (
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

var placeholder = regexp.MustCompile(`\$\{([^{}]+)\}`)

type options struct {
	prefix   string
	required bool
}

// Option configures a resolution pass.
type Option func(*options)

// WithPrefix strips prefix (e.g. "extracted.") from placeholder paths before
// lookup. Placeholders without the prefix are looked up as written.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
		o.required = false
	}
}

// WithRequiredPrefix is WithPrefix, but placeholders that do not carry the
// prefix are ignored.
func WithRequiredPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
		o.required = true
	}
}

// Resolve substitutes placeholders in doc against root. Maps and slices are
// modified in place; the returned value must be used when doc itself is a
// string.
func Resolve(doc interface{}, root interface{}, opts ...Option) interface{} {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	r := &resolver{root: root, opts: o}
	return r.walk(doc)
}

type resolver struct {
	root interface{}
	opts *options
}

func (r *resolver) walk(v interface{}) interface{} {
	switch node := v.(type) {
	case map[string]interface{}:
		for k, child := range node {
			node[k] = r.walk(child)
		}
		return node
	case map[interface{}]interface{}:
		for k, child := range node {
			node[k] = r.walk(child)
		}
		return node
	case []interface{}:
		for i, child := range node {
			node[i] = r.walk(child)
		}
		return node
	case []map[string]interface{}:
		for _, child := range node {
			r.walk(child)
		}
		return node
	case string:
		return r.resolveString(node)
	}
	return v
}

func (r *resolver) resolveString(s string) interface{} {
	matches := placeholder.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		path, ok := r.path(s[m[2]:m[3]])
		if !ok {
			continue
		}
		val, found := Lookup(r.root, path)
		if !found || val == nil {
			continue
		}
		str, isString := val.(string)
		if !isString {
			return val
		}
		b.WriteString(s[last:m[0]])
		b.WriteString(str)
		last = m[1]
	}
	if last == 0 {
		return s
	}
	b.WriteString(s[last:])
	return b.String()
}

func (r *resolver) path(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if r.opts.prefix == "" {
		return raw, true
	}
	if strings.HasPrefix(raw, r.opts.prefix) {
		return strings.TrimPrefix(raw, r.opts.prefix), true
	}
	return raw, !r.opts.required
}

// Lookup resolves a dotted path ("a.b.0.c" or "a.b[0].c") against root. A key
// that itself contains dots is matched before the path is split.
func Lookup(root interface{}, path string) (interface{}, bool) {
	if path == "" {
		return nil, false
	}
	if v, ok := child(root, path); ok {
		return v, true
	}

	cur := root
	for _, seg := range splitPath(path) {
		next, ok := child(cur, seg)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func splitPath(path string) []string {
	path = strings.ReplaceAll(path, "[", ".")
	path = strings.ReplaceAll(path, "]", "")
	parts := strings.Split(path, ".")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, strings.Trim(p, `"'`))
		}
	}
	return out
}

func child(v interface{}, key string) (interface{}, bool) {
	switch node := v.(type) {
	case nil:
		return nil, false
	case map[string]interface{}:
		c, ok := node[key]
		return c, ok
	case map[interface{}]interface{}:
		if c, ok := node[key]; ok {
			return c, true
		}
		if i, err := strconv.Atoi(key); err == nil {
			c, ok := node[i]
			return c, ok
		}
		return nil, false
	case []interface{}:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(node) {
			return nil, false
		}
		return node[i], true
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		c := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if !c.IsValid() {
			return nil, false
		}
		return c.Interface(), true
	case reflect.Slice, reflect.Array:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= rv.Len() {
			return nil, false
		}
		return rv.Index(i).Interface(), true
	}
	return nil, false
}

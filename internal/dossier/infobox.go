package dossier

import (
	"iter"
	"strings"
)

// Infobox is an ordered key/value mapping scraped from an encyclopedia
// infobox. Keys are distinct and keep the position of their first
// occurrence; a repeated key replaces the stored value. The zero value is
// ready to use.
type Infobox struct {
	fields []Field
	index  map[string]int
}

// Set records key=value unless key or value is empty. A key already
// present keeps its position and takes the new value. It reports whether
// the pair was stored.
func (b *Infobox) Set(key, value string) bool {
	if key == "" || value == "" {
		return false
	}
	if b.index == nil {
		b.index = make(map[string]int)
	}
	if i, ok := b.index[key]; ok {
		b.fields[i].Value = value
		return true
	}
	b.index[key] = len(b.fields)
	b.fields = append(b.fields, Field{Label: key, Value: value})
	return true
}

// Get returns the value stored under the exact key.
func (b Infobox) Get(key string) (string, bool) {
	i, ok := b.index[key]
	if !ok {
		return "", false
	}
	return b.fields[i].Value, true
}

// Lookup returns the first non-empty value among keys, trying exact
// matches first. Failing that, the first stored key (in insertion order)
// that contains any of keys, compared case-insensitively, wins.
func (b Infobox) Lookup(keys ...string) string {
	for _, k := range keys {
		if v, ok := b.Get(k); ok && v != "" {
			return v
		}
	}
	for _, f := range b.fields {
		if f.Value == "" {
			continue
		}
		label := strings.ToLower(f.Label)
		for _, k := range keys {
			if strings.Contains(label, strings.ToLower(k)) {
				return f.Value
			}
		}
	}
	return ""
}

// Len returns the number of stored keys.
func (b Infobox) Len() int {
	return len(b.fields)
}

// All iterates over key/value pairs in insertion order.
func (b Infobox) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, f := range b.fields {
			if !yield(f.Label, f.Value) {
				return
			}
		}
	}
}

// Filter returns the pairs whose key starts with one of the prefixes.
func (b Infobox) Filter(prefixes ...string) []Field {
	var out []Field
	for _, f := range b.fields {
		for _, p := range prefixes {
			if strings.HasPrefix(f.Label, p) {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

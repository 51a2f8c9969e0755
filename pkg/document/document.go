// Package document defines the working form document: an immutable-by-
// convention value passed into and returned from every transformation.
// Functions in this package never mutate their input; they return copies.
package document

import (
	"errors"
	"fmt"
	"reflect"
)

// Fields is one section's flat mapping of field key to value.
type Fields map[string]any

// Document maps section keys to section values. A section value is either
// Fields or, for repeatable sections, a list of Fields. Lists may also
// appear as []any holding maps when the document was decoded from JSON.
type Document map[string]any

var ErrNotAList = errors.New("section is not a list")

// Clone returns a deep copy of the document.
func Clone(doc Document) Document {
	if doc == nil {
		return Document{}
	}
	return Document(cloneMap(map[string]any(doc)))
}

// Equal reports whether two documents are equal by value.
func Equal(a, b Document) bool {
	return reflect.DeepEqual(normalize(map[string]any(a)), normalize(map[string]any(b)))
}

// Section returns the named section as Fields, or nil if the section is
// absent or not a flat mapping.
func Section(doc Document, key string) Fields {
	switch section := doc[key].(type) {
	case Fields:
		return section
	case map[string]any:
		return Fields(section)
	default:
		return nil
	}
}

// List returns the named section as a list of Fields. An absent section
// yields an empty list; a section that is neither a list nor absent is an
// error. Both []Fields and decoded-JSON []any representations are accepted.
func List(doc Document, key string) ([]Fields, error) {
	raw, ok := doc[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch list := raw.(type) {
	case []Fields:
		return list, nil
	case []any:
		items := make([]Fields, 0, len(list))
		for i, element := range list {
			fields, err := asFields(element)
			if err != nil {
				return nil, fmt.Errorf("%w: %q[%d]", ErrNotAList, key, i)
			}
			items = append(items, fields)
		}
		return items, nil
	case []map[string]any:
		items := make([]Fields, 0, len(list))
		for _, element := range list {
			items = append(items, Fields(element))
		}
		return items, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrNotAList, key)
	}
}

// Set returns a copy of doc with the field at [sectionKey][fieldKey]
// replaced. The section is created when absent.
func Set(doc Document, sectionKey, fieldKey string, value any) Document {
	next := Clone(doc)
	section := Section(next, sectionKey)
	if section == nil {
		section = Fields{}
	}
	section[fieldKey] = value
	next[sectionKey] = section
	return next
}

// SetSection returns a copy of doc with the whole section replaced.
func SetSection(doc Document, sectionKey string, value any) Document {
	next := Clone(doc)
	next[sectionKey] = deepCopyValue(value)
	return next
}

// Remove returns a copy of doc without the named section.
func Remove(doc Document, sectionKey string) Document {
	next := Clone(doc)
	delete(next, sectionKey)
	return next
}

// Get returns the field at [sectionKey][fieldKey], or nil.
func Get(doc Document, sectionKey, fieldKey string) any {
	section := Section(doc, sectionKey)
	if section == nil {
		return nil
	}
	return section[fieldKey]
}

// SetListField returns a copy of doc with the field at list position index
// of the named list section replaced. The list must already be long enough.
func SetListField(doc Document, sectionKey string, index int, fieldKey string, value any) (Document, error) {
	next := Clone(doc)
	items, err := List(next, sectionKey)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(items) {
		return nil, fmt.Errorf("list index %d out of range for section %q", index, sectionKey)
	}
	items[index][fieldKey] = value
	next[sectionKey] = items
	return next, nil
}

func asFields(v any) (Fields, error) {
	switch fields := v.(type) {
	case Fields:
		return fields, nil
	case map[string]any:
		return Fields(fields), nil
	default:
		return nil, fmt.Errorf("not a field mapping: %T", v)
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch value := v.(type) {
	case Document:
		return Document(cloneMap(map[string]any(value)))
	case Fields:
		return Fields(cloneMap(map[string]any(value)))
	case map[string]any:
		return cloneMap(value)
	case []Fields:
		out := make([]Fields, len(value))
		for i, element := range value {
			out[i] = Fields(cloneMap(map[string]any(element)))
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(value))
		for i, element := range value {
			out[i] = cloneMap(element)
		}
		return out
	case []any:
		out := make([]any, len(value))
		for i, element := range value {
			out[i] = deepCopyValue(element)
		}
		return out
	default:
		return v
	}
}

// normalize rewrites the typed wrappers (Fields, []Fields, Document) into
// plain maps and slices so Equal does not distinguish representations.
func normalize(v any) any {
	switch value := v.(type) {
	case Document:
		return normalize(map[string]any(value))
	case Fields:
		return normalize(map[string]any(value))
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, element := range value {
			out[k] = normalize(element)
		}
		return out
	case []Fields:
		out := make([]any, len(value))
		for i, element := range value {
			out[i] = normalize(element)
		}
		return out
	case []map[string]any:
		out := make([]any, len(value))
		for i, element := range value {
			out[i] = normalize(element)
		}
		return out
	case []any:
		out := make([]any, len(value))
		for i, element := range value {
			out[i] = normalize(element)
		}
		return out
	default:
		return v
	}
}

package graph

import (
	"strings"

	"github.com/richardhadden/pangloss/domain/schema"
)

// FlattenSeparator joins a multi-key field name to its sub-key in the stored
// property map, e.g. "name____certainty". Field names containing the
// separator are rejected at validation so flattening stays a bijection.
const FlattenSeparator = "____"

// FlattenFields turns request field values into the stored property map:
// scalars and lists pass through under their own name, multi-key values
// spread into one property per sub-key.
func FlattenFields(m *schema.Model, fields map[string]any) map[string]any {
	props := make(map[string]any, len(fields))
	for name, value := range fields {
		fd, ok := m.Field(name)
		if !ok {
			continue
		}
		if fd.Kind == schema.FieldMultiKey {
			sub, ok := value.(map[string]any)
			if !ok {
				continue
			}
			for _, sk := range fd.SubKeys {
				if v, ok := sub[sk.Name]; ok {
					props[name+FlattenSeparator+sk.Name] = v
				}
			}
		} else {
			props[name] = value
		}
	}
	return props
}

// UnflattenProperties is the inverse of FlattenFields: stored properties are
// regrouped into field values, multi-key sub-properties folded back into one
// map per field.
func UnflattenProperties(m *schema.Model, props map[string]any) map[string]any {
	fields := make(map[string]any, len(props))
	for key, value := range props {
		name, subKey, isSub := strings.Cut(key, FlattenSeparator)
		fd, ok := m.Field(name)
		if !ok {
			continue
		}
		if isSub && fd.Kind == schema.FieldMultiKey {
			sub, ok := fields[name].(map[string]any)
			if !ok {
				sub = make(map[string]any)
				fields[name] = sub
			}
			sub[subKey] = value
		} else if !isSub {
			fields[name] = value
		}
	}
	return fields
}

// multiKeyPropertyKeys lists every stored property key a multi-key field
// occupies, used to unset stale sub-keys on replacement.
func multiKeyPropertyKeys(fd *schema.FieldDescriptor) []string {
	keys := make([]string, 0, len(fd.SubKeys))
	for _, sk := range fd.SubKeys {
		keys = append(keys, fd.Name+FlattenSeparator+sk.Name)
	}
	return keys
}

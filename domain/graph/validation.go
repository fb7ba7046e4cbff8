package graph

import (
	"fmt"
	"strings"

	"github.com/richardhadden/pangloss/domain/schema"
	"github.com/richardhadden/pangloss/pkg/apperror"
)

// fieldErrors accumulates per-field validation failures; the whole request
// is rejected when any field fails, no partial write.
type fieldErrors map[string]any

func (fe fieldErrors) add(field, msg string) {
	fe[field] = msg
}

func (fe fieldErrors) toError() error {
	if len(fe) == 0 {
		return nil
	}
	return apperror.NewValidation(fe)
}

// validateFields checks request field values against the model's effective
// field descriptors. requireAll enforces required fields (create path);
// updates validate only the fields present.
func validateFields(m *schema.Model, fields map[string]any, requireAll bool) error {
	fe := make(fieldErrors)

	for name := range fields {
		if strings.Contains(name, FlattenSeparator) {
			fe.add(name, "field name must not contain "+FlattenSeparator)
			continue
		}
		fd, ok := m.Field(name)
		if !ok {
			fe.add(name, fmt.Sprintf("no field %q on %s", name, m.Label))
			continue
		}
		validateFieldValue(fe, fd, fields[name])
	}

	if requireAll {
		for i := range m.Fields {
			fd := &m.Fields[i]
			if fd.Required {
				if _, ok := fields[fd.Name]; !ok {
					fe.add(fd.Name, "required")
				}
			}
		}
	}

	return fe.toError()
}

func validateFieldValue(fe fieldErrors, fd *schema.FieldDescriptor, value any) {
	switch fd.Kind {
	case schema.FieldMultiKey:
		sub, ok := value.(map[string]any)
		if !ok {
			fe.add(fd.Name, "expected an object of sub-key values")
			return
		}
		for key := range sub {
			if subKeyFor(fd, key) == nil {
				fe.add(fd.Name+"."+key, fmt.Sprintf("no sub-key %q", key))
			}
		}
	case schema.FieldList:
		if _, ok := value.([]any); !ok {
			fe.add(fd.Name, "expected a list")
			return
		}
	default:
		if s, ok := value.(string); ok {
			if fd.MinLength > 0 && len(s) < fd.MinLength {
				fe.add(fd.Name, fmt.Sprintf("shorter than %d characters", fd.MinLength))
			}
			if fd.MaxLength > 0 && len(s) > fd.MaxLength {
				fe.add(fd.Name, fmt.Sprintf("longer than %d characters", fd.MaxLength))
			}
		}
	}
}

func subKeyFor(fd *schema.FieldDescriptor, name string) *schema.SubKey {
	for i := range fd.SubKeys {
		if fd.SubKeys[i].Name == name {
			return &fd.SubKeys[i]
		}
	}
	return nil
}

// validateEdgeProperties checks edge properties against the relation's edge
// model fields.
func validateEdgeProperties(rel *schema.Relation, props map[string]any) error {
	if len(props) == 0 {
		return nil
	}
	fe := make(fieldErrors)
	if rel.EdgeModel == "" {
		fe.add(rel.Name, "relation carries no edge properties")
		return fe.toError()
	}
	for name := range props {
		found := false
		for i := range rel.EdgeFields {
			if rel.EdgeFields[i].Name == name {
				found = true
				break
			}
		}
		if !found {
			fe.add(rel.Name+"."+name, fmt.Sprintf("no edge field %q", name))
		}
	}
	return fe.toError()
}

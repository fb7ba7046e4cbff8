package graph

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/richardhadden/pangloss/domain/schema"
	"github.com/richardhadden/pangloss/pkg/apperror"
)

// ModelSummary is the read-only introspection projection of one resolved
// model.
type ModelSummary struct {
	Label                string                           `json:"label"`
	Abstract             bool                             `json:"abstract"`
	Supertypes           []string                         `json:"supertypes,omitempty"`
	Traits               []string                         `json:"traits,omitempty"`
	Fields               []schema.FieldDescriptor         `json:"fields,omitempty"`
	Relations            []RelationSummary                `json:"relations,omitempty"`
	Embedded             []schema.EmbeddedFieldDescriptor `json:"embedded,omitempty"`
	AllowReferenceCreate bool                             `json:"allow_reference_create,omitempty"`
}

// RelationSummary is one resolved relation: declared shape plus the
// concrete target set.
type RelationSummary struct {
	Name         string   `json:"name"`
	ReverseName  string   `json:"reverse_name"`
	TargetLabels []string `json:"target_labels"`
	Reified      string   `json:"reified,omitempty"`
	CreateInline bool     `json:"create_inline,omitempty"`
	EditInline   bool     `json:"edit_inline,omitempty"`
}

// SchemaHandler serves read-only schema introspection
type SchemaHandler struct {
	registry *schema.Registry
}

// NewSchemaHandler creates a new schema introspection handler
func NewSchemaHandler(registry *schema.Registry) *SchemaHandler {
	return &SchemaHandler{registry: registry}
}

// Index handles GET /api/schema
func (h *SchemaHandler) Index(c echo.Context) error {
	models := h.registry.Models()
	out := make([]ModelSummary, 0, len(models))
	for _, m := range models {
		out = append(out, summarize(m, h.registry))
	}
	return c.JSON(http.StatusOK, out)
}

// Show handles GET /api/schema/:label
func (h *SchemaHandler) Show(c echo.Context) error {
	label := c.Param("label")
	m, ok := h.registry.Model(label)
	if !ok {
		return apperror.NewNotFound("model", label)
	}
	return c.JSON(http.StatusOK, summarize(m, h.registry))
}

func summarize(m *schema.Model, reg *schema.Registry) ModelSummary {
	s := ModelSummary{
		Label:                m.Label,
		Abstract:             reg.IsAbstract(m.Label),
		Supertypes:           m.AllSupertypes,
		Traits:               m.AllTraits,
		Fields:               m.Fields,
		Embedded:             m.Embedded,
		AllowReferenceCreate: m.AllowReferenceCreate,
	}
	for _, rel := range m.Relations {
		rs := RelationSummary{
			Name:         rel.Name,
			ReverseName:  rel.ReverseName,
			TargetLabels: rel.TargetLabels,
			CreateInline: rel.CreateInline,
			EditInline:   rel.EditInline,
		}
		if rel.ReifiedModel != nil {
			rs.Reified = rel.ReifiedModel.Label
		}
		s.Relations = append(s.Relations, rs)
	}
	return s
}

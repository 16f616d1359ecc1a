package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/c4designer/pkg/c4"

	"github.com/labstack/echo/v4"
)

// UpdateDiagramHandler re-renders an edited hierarchy.
func UpdateDiagramHandler(c echo.Context) error {
	type updateDiagramBody struct {
		Hierarchy *c4.Hierarchy `json:"hierarchy" validate:"required"`
	}

	type updateDiagramResponse struct {
		Success      bool      `json:"success"`
		PlantUMLCode string    `json:"plantuml_code"`
		Nodes        []c4.Node `json:"nodes"`
		Edges        []c4.Edge `json:"edges"`
		Notes        []c4.Note `json:"notes,omitempty"`
	}

	data := new(updateDiagramBody)
	if !bindAndValidate(c, data) {
		return badRequest(c)
	}

	nodes, edges := c4.Layout(data.Hierarchy)
	return c.JSON(http.StatusOK, updateDiagramResponse{
		Success:      true,
		PlantUMLCode: c4.Render(data.Hierarchy),
		Nodes:        nodes,
		Edges:        edges,
		Notes:        c4.Validate(nodes, edges),
	})
}

// ParsePlantUMLHandler turns edited markup back into a hierarchy and the
// editor graph.
func ParsePlantUMLHandler(c echo.Context) error {
	type parseBody struct {
		Code             string `json:"code" validate:"required"`
		InferContainment bool   `json:"infer_containment"`
	}

	type parseResponse struct {
		Success   bool          `json:"success"`
		Entities  []c4.Entity   `json:"entities"`
		Relations []c4.Relation `json:"relations"`
		Hierarchy *c4.Hierarchy `json:"hierarchy"`
		Nodes     []c4.Node     `json:"nodes"`
		Edges     []c4.Edge     `json:"edges"`
		Notes     []c4.Note     `json:"notes"`
	}

	data := new(parseBody)
	if !bindAndValidate(c, data) {
		return badRequest(c)
	}

	res := c4.ParseWithOptions(data.Code, c4.ParseOptions{InferContainment: data.InferContainment})
	nodes, edges := c4.Layout(res.Hierarchy)
	notes := res.Notes
	if notes == nil {
		notes = []c4.Note{}
	}
	return c.JSON(http.StatusOK, parseResponse{
		Success:   true,
		Entities:  res.Entities,
		Relations: res.Relations,
		Hierarchy: res.Hierarchy,
		Nodes:     nodes,
		Edges:     edges,
		Notes:     notes,
	})
}

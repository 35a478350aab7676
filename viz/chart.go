// Package viz defines the chart artifact produced by generated chart code.
// The pipeline treats it as an opaque renderable; a UI layer turns the JSON
// form into an actual drawing.
package viz

import "encoding/json"

// Chart kinds.
const (
	TypeBar     = "bar"
	TypeLine    = "line"
	TypePie     = "pie"
	TypeScatter = "scatter"
)

// Series is one named value sequence of a chart.
type Series struct {
	Name string    `json:"name"`
	Data []float64 `json:"data"`
}

// Chart is a renderable chart description. Labels carries the category axis
// (or slice names for pie); XValues is set for scatter charts instead.
type Chart struct {
	Type    string    `json:"type"`
	Title   string    `json:"title"`
	XLabel  string    `json:"xLabel,omitempty"`
	YLabel  string    `json:"yLabel,omitempty"`
	Labels  []string  `json:"labels,omitempty"`
	XValues []float64 `json:"xValues,omitempty"`
	Series  []Series  `json:"series"`
}

// JSON renders the chart document for a UI to consume.
func (c *Chart) JSON() (string, error) {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

package chat

// Reply is either plain text or a chart payload.
type Reply struct {
	Text  string
	Chart *Chart
}

// Chart is the structured payload of chart replies.
type Chart struct {
	Type      string `json:"type"`
	ChartType string `json:"chartType"`
	Data      any    `json:"data"`
}

// Text builds a plain text reply.
func Text(s string) Reply {
	return Reply{Text: s}
}

// BarChart wraps a data series in a bar chart payload.
func BarChart(data any) Reply {
	return Reply{Chart: &Chart{Type: "chart", ChartType: "bar", Data: data}}
}

// Payload returns the value placed under "response" on the wire.
func (r Reply) Payload() any {
	if r.Chart != nil {
		return r.Chart
	}
	return r.Text
}

// IsChart reports whether the reply carries a chart.
func (r Reply) IsChart() bool {
	return r.Chart != nil
}

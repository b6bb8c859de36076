package annotate

import "image"

// Metrics are the caption dimensions derived from the image width
type Metrics struct {
	Padding  int `json:"padding"`
	TextSize int `json:"text_size"`
	LineGap  int `json:"line_gap"`
}

// MetricsFor derives caption metrics from an image width using integer division
func MetricsFor(width int) Metrics {
	textSize := width / 28
	return Metrics{
		Padding:  width / 60,
		TextSize: textSize,
		LineGap:  textSize + textSize/4,
	}
}

// PanelHeight is the height of a panel holding n lines
func (m Metrics) PanelHeight(n int) int {
	return n*m.LineGap + 2*m.Padding
}

// PanelRect returns the panel area for n lines, flush with the bottom edge
// and spanning the full width. The top is not clamped to the image.
func (m Metrics) PanelRect(width, height, n int) image.Rectangle {
	return image.Rect(0, height-m.PanelHeight(n), width, height)
}

// InsetRect returns the square map area of side size anchored bottom-right
func (m Metrics) InsetRect(width, height, size int) image.Rectangle {
	left := width - size - m.Padding
	top := height - size - m.Padding
	return image.Rect(left, top, left+size, top+size)
}

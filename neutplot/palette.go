// Package neutplot renders fitted neutralization curves to images: single
// curves, replicate overlays, and grids of serum-virus panels.
package neutplot

import "github.com/wcharczuk/go-chart/v2/drawing"

// CBPalette is the colorblind-safe palette of Okabe and Ito. Curves drawn
// together cycle through it in order.
var CBPalette = []drawing.Color{
	drawing.ColorFromHex("999999"),
	drawing.ColorFromHex("E69F00"),
	drawing.ColorFromHex("56B4E9"),
	drawing.ColorFromHex("009E73"),
	drawing.ColorFromHex("F0E442"),
	drawing.ColorFromHex("0072B2"),
	drawing.ColorFromHex("D55E00"),
	drawing.ColorFromHex("CC79A7"),
}

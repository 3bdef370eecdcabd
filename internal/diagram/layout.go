package diagram

// Layout constants, in SVG user units.
const (
	nodeHeight   = 40.0
	minNodeWidth = 80.0
	charWidth    = 8.0
	labelPadding = 24.0
	layerGap     = 60.0
	siblingGap   = 30.0
	canvasMargin = 20.0
)

// Box is a positioned node. X and Y are the center.
type Box struct {
	Node *Node
	X, Y float64
	W, H float64
}

// Layout is a flowchart with node positions and canvas size.
type Layout struct {
	Chart  *Flowchart
	Boxes  map[string]*Box
	Width  float64
	Height float64
}

// Arrange assigns every node a layer by longest path from the roots, then
// spreads each layer across the axis perpendicular to the flow.
// Cycles stop growing after len(Nodes) relaxation rounds.
func Arrange(fc *Flowchart) *Layout {
	rank := make(map[string]int, len(fc.Nodes))
	for round := 0; round < len(fc.Nodes); round++ {
		changed := false
		for _, e := range fc.Edges {
			if e.From == e.To {
				continue
			}
			if rank[e.To] < rank[e.From]+1 {
				rank[e.To] = rank[e.From] + 1
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	var layers [][]*Node
	for _, n := range fc.Nodes {
		r := rank[n.ID]
		for len(layers) <= r {
			layers = append(layers, nil)
		}
		layers[r] = append(layers[r], n)
	}

	horizontal := fc.Direction == LeftRight || fc.Direction == RightLeft
	l := &Layout{Chart: fc, Boxes: make(map[string]*Box, len(fc.Nodes))}

	// along = position in the flow direction, across = within a layer
	along := canvasMargin
	maxAcross := 0.0
	for _, layer := range layers {
		across := canvasMargin
		depth := 0.0
		for _, n := range layer {
			w := nodeWidth(n.Label)
			b := &Box{Node: n, W: w, H: nodeHeight}
			alongSize, acrossSize := b.H, b.W
			if horizontal {
				alongSize, acrossSize = b.W, b.H
			}
			if horizontal {
				b.X, b.Y = along+alongSize/2, across+acrossSize/2
			} else {
				b.X, b.Y = across+acrossSize/2, along+alongSize/2
			}
			across += acrossSize + siblingGap
			depth = max(depth, alongSize)
			l.Boxes[n.ID] = b
		}
		maxAcross = max(maxAcross, across-siblingGap)
		along += depth + layerGap
	}
	totalAlong := max(along-layerGap, canvasMargin) + canvasMargin
	totalAcross := max(maxAcross, canvasMargin) + canvasMargin

	if horizontal {
		l.Width, l.Height = totalAlong, totalAcross
	} else {
		l.Width, l.Height = totalAcross, totalAlong
	}

	// Reverse the flow for bottom-up and right-to-left charts.
	for _, b := range l.Boxes {
		switch fc.Direction {
		case BottomUp:
			b.Y = l.Height - b.Y
		case RightLeft:
			b.X = l.Width - b.X
		}
	}
	return l
}

func nodeWidth(label string) float64 {
	return max(minNodeWidth, float64(len([]rune(label)))*charWidth+labelPadding)
}

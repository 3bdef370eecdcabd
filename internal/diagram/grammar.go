package diagram

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Sentinel errors for diagram parsing.
var (
	ErrEmptyDiagram       = errors.New("empty diagram")
	ErrUnsupportedDiagram = errors.New("unsupported diagram type")
	ErrSyntax             = errors.New("diagram syntax error")
)

// flowchartLexer tokenizes the flowchart subset of the mermaid language.
var flowchartLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `%%[^\n]*`},
	{Name: "Newline", Pattern: `[\n;]`},
	{Name: "Whitespace", Pattern: `[ \t\r]+`},
	// Edges: normal, open, dotted, thick
	{Name: "Arrow", Pattern: `-->|---|-\.->|==>`},
	// Node text in its shape brackets: [rect] {rhombus} (round)
	{Name: "Shape", Pattern: `\[[^\]\n]*\]|\{[^}\n]*\}|\([^)\n]*\)`},
	{Name: "EdgeLabel", Pattern: `\|[^|\n]*\|`},
	{Name: "Ident", Pattern: `[A-Za-z0-9_]+`},
})

type flowchartAST struct {
	Kind       string          `Newline* @("graph" | "flowchart")`
	Direction  string          `@("TD" | "TB" | "BT" | "LR" | "RL")?`
	Statements []*statementAST `( Newline+ @@? )*`
}

type statementAST struct {
	Node  *nodeAST   `@@`
	Links []*linkAST `@@*`
}

type linkAST struct {
	Arrow string   `@Arrow`
	Label string   `@EdgeLabel?`
	To    *nodeAST `@@`
}

type nodeAST struct {
	ID    string `@Ident`
	Shape string `@Shape?`
}

var flowchartParser = participle.MustBuild[flowchartAST](
	participle.Lexer(flowchartLexer),
	participle.Elide("Whitespace", "Comment"),
)

// Direction is the flow of the layered layout.
type Direction string

// Flow directions.
const (
	TopDown   Direction = "TD"
	BottomUp  Direction = "BT"
	LeftRight Direction = "LR"
	RightLeft Direction = "RL"
)

// Shape is the outline drawn around a node label.
type Shape int

// Node shapes.
const (
	Rect Shape = iota
	Round
	Rhombus
)

// EdgeStyle is the stroke of an edge.
type EdgeStyle int

// Edge styles.
const (
	Solid EdgeStyle = iota
	Open            // no arrowhead
	Dotted
	Thick
)

// Node is a flowchart vertex.
type Node struct {
	ID    string
	Label string
	Shape Shape
}

// Edge connects two nodes by ID.
type Edge struct {
	From  string
	To    string
	Label string
	Style EdgeStyle
}

// Flowchart is a parsed diagram. Nodes keep the order of first appearance.
type Flowchart struct {
	Direction Direction
	Nodes     []*Node
	Edges     []Edge
}

// Parse reads a flowchart. Other mermaid diagram types are reported as
// ErrUnsupportedDiagram.
func Parse(source string) (*Flowchart, error) {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return nil, ErrEmptyDiagram
	}
	if kind := strings.Fields(trimmed)[0]; kind != "graph" && kind != "flowchart" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDiagram, kind)
	}

	ast, err := flowchartParser.ParseString("", trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	return build(ast), nil
}

func build(ast *flowchartAST) *Flowchart {
	fc := &Flowchart{Direction: normalizeDirection(ast.Direction)}
	byID := make(map[string]*Node)

	declare := func(n *nodeAST) {
		node, ok := byID[n.ID]
		if !ok {
			node = &Node{ID: n.ID, Label: n.ID}
			byID[n.ID] = node
			fc.Nodes = append(fc.Nodes, node)
		}
		if n.Shape != "" {
			node.Label, node.Shape = parseShape(n.Shape)
		}
	}

	for _, st := range ast.Statements {
		declare(st.Node)
		from := st.Node.ID
		for _, l := range st.Links {
			declare(l.To)
			fc.Edges = append(fc.Edges, Edge{
				From:  from,
				To:    l.To.ID,
				Label: unquote(strings.Trim(l.Label, "|")),
				Style: edgeStyle(l.Arrow),
			})
			from = l.To.ID
		}
	}
	return fc
}

func normalizeDirection(d string) Direction {
	switch d {
	case "BT":
		return BottomUp
	case "LR":
		return LeftRight
	case "RL":
		return RightLeft
	default:
		return TopDown
	}
}

func parseShape(s string) (string, Shape) {
	inner := unquote(s[1 : len(s)-1])
	switch s[0] {
	case '{':
		return inner, Rhombus
	case '(':
		return inner, Round
	default:
		return inner, Rect
	}
}

func edgeStyle(arrow string) EdgeStyle {
	switch arrow {
	case "---":
		return Open
	case "-.->":
		return Dotted
	case "==>":
		return Thick
	default:
		return Solid
	}
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// Package testutil provides deterministic graph fixtures and assertions for
// planner tests.
package testutil

import (
	"fmt"
	"math/rand"

	"github.com/vanderheijden86/beadplan/pkg/model"
)

// GraphFixture is an abstract topology. Edges are [from, to] node indices
// meaning "from depends on to".
type GraphFixture struct {
	Description string
	Nodes       []string
	Edges       [][2]int
	HasCycles   bool
	// ExpectedDepth is the expected number of parallel groups minus one.
	ExpectedDepth int
}

// GeneratorConfig controls how fixtures become issues.
type GeneratorConfig struct {
	Seed      int64 // 0 falls back to 42
	IDPrefix  string
	MaxEffort int // efforts are integers in [1, MaxEffort]; 0 means 8
	StatusMix []model.Status
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:      42,
		MaxEffort: 8,
		StatusMix: []model.Status{model.StatusOpen},
	}
}

// Generator turns topologies into issues and edges.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	if cfg.MaxEffort <= 0 {
		cfg.MaxEffort = 8
	}
	if len(cfg.StatusMix) == 0 {
		cfg.StatusMix = []model.Status{model.StatusOpen}
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// NewDefault creates a Generator with DefaultConfig.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

func names(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return out
}

// Chain: n1 depends on n0, n2 on n1, and so on.
func (g *Generator) Chain(size int) GraphFixture {
	gf := GraphFixture{
		Description:   fmt.Sprintf("chain of %d", size),
		Nodes:         names("n", size),
		ExpectedDepth: max(size-1, 0),
	}
	for i := 1; i < size; i++ {
		gf.Edges = append(gf.Edges, [2]int{i, i - 1})
	}
	return gf
}

// Star: every spoke depends on the hub.
func (g *Generator) Star(spokes int) GraphFixture {
	gf := GraphFixture{
		Description:   fmt.Sprintf("star, %d spokes depend on hub", spokes),
		Nodes:         append([]string{"hub"}, names("spoke", spokes)...),
		ExpectedDepth: min(spokes, 1),
	}
	for i := 1; i <= spokes; i++ {
		gf.Edges = append(gf.Edges, [2]int{i, 0})
	}
	return gf
}

// Diamond: top depends on width middle nodes, each depending on bottom.
func (g *Generator) Diamond(width int) GraphFixture {
	width = max(width, 1)
	nodes := append([]string{"top"}, names("mid", width)...)
	nodes = append(nodes, "bottom")
	gf := GraphFixture{
		Description:   fmt.Sprintf("diamond of width %d", width),
		Nodes:         nodes,
		ExpectedDepth: 2,
	}
	bottom := len(nodes) - 1
	for i := 1; i <= width; i++ {
		gf.Edges = append(gf.Edges, [2]int{0, i}, [2]int{i, bottom})
	}
	return gf
}

// Tree: each parent depends on breadth children, depth levels deep.
func (g *Generator) Tree(depth, breadth int) GraphFixture {
	depth, breadth = max(depth, 1), max(breadth, 1)
	gf := GraphFixture{Nodes: []string{"n0"}, ExpectedDepth: depth}
	level := []int{0}
	for d := 0; d < depth; d++ {
		var next []int
		for _, parent := range level {
			for b := 0; b < breadth; b++ {
				child := len(gf.Nodes)
				gf.Nodes = append(gf.Nodes, fmt.Sprintf("n%d", child))
				gf.Edges = append(gf.Edges, [2]int{parent, child})
				next = append(next, child)
			}
		}
		level = next
	}
	gf.Description = fmt.Sprintf("tree depth=%d breadth=%d (%d nodes)", depth, breadth, len(gf.Nodes))
	return gf
}

// Disconnected: several independent chains.
func (g *Generator) Disconnected(components, size int) GraphFixture {
	gf := GraphFixture{
		Description:   fmt.Sprintf("%d chains of %d", components, size),
		ExpectedDepth: max(size-1, 0),
	}
	for c := 0; c < components; c++ {
		for i := 0; i < size; i++ {
			idx := len(gf.Nodes)
			gf.Nodes = append(gf.Nodes, fmt.Sprintf("c%d_n%d", c, i))
			if i > 0 {
				gf.Edges = append(gf.Edges, [2]int{idx, idx - 1})
			}
		}
	}
	return gf
}

// RandomDAG: each later node depends on each earlier node with the given
// probability. Edges only point backwards, so the result is acyclic.
func (g *Generator) RandomDAG(size int, density float64) GraphFixture {
	gf := GraphFixture{
		Description:   fmt.Sprintf("random DAG of %d, density %.2f", size, density),
		Nodes:         names("n", size),
		ExpectedDepth: -1,
	}
	for i := 0; i < size; i++ {
		for j := 0; j < i; j++ {
			if g.rng.Float64() < density {
				gf.Edges = append(gf.Edges, [2]int{i, j})
			}
		}
	}
	return gf
}

// Cycle: n0 depends on n1, ..., n{size-1} depends on n0.
func (g *Generator) Cycle(size int) GraphFixture {
	gf := GraphFixture{
		Description: fmt.Sprintf("cycle of %d", size),
		Nodes:       names("n", size),
		HasCycles:   true,
	}
	for i := 0; i < size; i++ {
		gf.Edges = append(gf.Edges, [2]int{i, (i + 1) % size})
	}
	return gf
}

// Build converts a fixture into issues and edges. Ids are the fixture node
// names with the configured prefix; efforts, priorities and statuses are
// drawn from the generator's seeded source.
func (g *Generator) Build(gf GraphFixture) ([]model.IssueNode, []model.DependencyEdge) {
	prios := model.AllPriorities()
	nodes := make([]model.IssueNode, len(gf.Nodes))
	for i, name := range gf.Nodes {
		nodes[i] = model.IssueNode{
			ID:       g.cfg.IDPrefix + name,
			Title:    "Issue " + name,
			Priority: prios[g.rng.Intn(len(prios))],
			Effort:   float64(g.rng.Intn(g.cfg.MaxEffort) + 1),
			Status:   g.cfg.StatusMix[g.rng.Intn(len(g.cfg.StatusMix))],
		}
	}
	edges := make([]model.DependencyEdge, len(gf.Edges))
	for i, e := range gf.Edges {
		edges[i] = model.DependencyEdge{From: nodes[e[0]].ID, To: nodes[e[1]].ID}
	}
	return nodes, edges
}

// Node is a shorthand constructor for hand-written fixtures.
func Node(id string, effort float64, p model.Priority) model.IssueNode {
	return model.IssueNode{ID: id, Title: "Issue " + id, Priority: p, Effort: effort, Status: model.StatusOpen}
}

// Edges builds edges from "from", "to" pairs.
func Edges(pairs ...string) []model.DependencyEdge {
	if len(pairs)%2 != 0 {
		panic("testutil.Edges: odd number of ids")
	}
	out := make([]model.DependencyEdge, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, model.DependencyEdge{From: pairs[i], To: pairs[i+1]})
	}
	return out
}

package analysis_test

import (
	"context"
	"testing"

	"github.com/vanderheijden86/beadplan/pkg/analysis"
	"github.com/vanderheijden86/beadplan/pkg/testutil"
)

// ============================================================================
// Full pipeline
// ============================================================================

func BenchmarkAnalyze_Chain1000(b *testing.B) {
	benchAnalyze(b, testutil.NewDefault().Chain(1000))
}

func BenchmarkAnalyze_Star1000(b *testing.B) {
	benchAnalyze(b, testutil.NewDefault().Star(1000))
}

func BenchmarkAnalyze_Tree6x4(b *testing.B) {
	benchAnalyze(b, testutil.NewDefault().Tree(6, 4))
}

func BenchmarkAnalyze_Random1000Sparse(b *testing.B) {
	benchAnalyze(b, testutil.NewDefault().RandomDAG(1000, 0.005))
}

func BenchmarkAnalyze_Random500Dense(b *testing.B) {
	benchAnalyze(b, testutil.NewDefault().RandomDAG(500, 0.1))
}

func BenchmarkAnalyze_Disconnected50x20(b *testing.B) {
	benchAnalyze(b, testutil.NewDefault().Disconnected(50, 20))
}

func benchAnalyze(b *testing.B, gf testutil.GraphFixture) {
	b.Helper()
	nodes, edges := testutil.NewDefault().Build(gf)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := analysis.Analyze(nodes, edges, analysis.Options{IncludeSchedule: true}); err != nil {
			b.Fatal(err)
		}
	}
}

// ============================================================================
// Individual stages
// ============================================================================

func benchDAG(b *testing.B) *analysis.DAG {
	b.Helper()
	nodes, edges := testutil.NewDefault().Build(testutil.NewDefault().RandomDAG(2000, 0.003))
	g, err := analysis.BuildGraph(nodes, edges)
	if err != nil {
		b.Fatal(err)
	}
	d, err := analysis.Validate(g)
	if err != nil {
		b.Fatal(err)
	}
	return d
}

func BenchmarkBuildGraph_Random2000(b *testing.B) {
	nodes, edges := testutil.NewDefault().Build(testutil.NewDefault().RandomDAG(2000, 0.003))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := analysis.BuildGraph(nodes, edges); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkValidate_Random2000(b *testing.B) {
	d := benchDAG(b)
	g := d.Graph
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := analysis.Validate(g); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCriticalPath_Random2000(b *testing.B) {
	d := benchDAG(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = analysis.ComputeCriticalPath(d)
	}
}

func BenchmarkParallelGroups_Random2000(b *testing.B) {
	d := benchDAG(b)
	w := analysis.DefaultPriorityWeights()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = analysis.PlanParallelGroups(d, w)
	}
}

func BenchmarkFindCycles_Cycle1000(b *testing.B) {
	nodes, edges := testutil.NewDefault().Build(testutil.NewDefault().Cycle(1000))
	g, err := analysis.BuildGraph(nodes, edges)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = analysis.FindCycles(g, 0)
	}
}

func BenchmarkAnalyzeBatch_16x500(b *testing.B) {
	gen := testutil.NewDefault()
	reqs := make([]analysis.Request, 16)
	for i := range reqs {
		nodes, edges := gen.Build(gen.RandomDAG(500, 0.01))
		reqs[i] = analysis.Request{Nodes: nodes, Edges: edges}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := analysis.AnalyzeBatch(context.Background(), reqs, 0); err != nil {
			b.Fatal(err)
		}
	}
}

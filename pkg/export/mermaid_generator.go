package export

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"unicode"

	"github.com/vanderheijden86/beadplan/pkg/analysis"
	"github.com/vanderheijden86/beadplan/pkg/model"
)

// MermaidConfig configures the Mermaid graph generation.
type MermaidConfig struct {
	Direction         string // TD (default), BT, LR or RL
	GroupSubgraphs    bool   // wrap each parallel group in a subgraph
	HighlightCritical bool   // bold critical-path edges and outline its nodes
}

// DefaultMermaidConfig enables groups and critical-path highlighting.
func DefaultMermaidConfig() MermaidConfig {
	return MermaidConfig{Direction: "TD", GroupSubgraphs: true, HighlightCritical: true}
}

// GenerateMermaidGraph renders the graph as a Mermaid flowchart. Edges point
// from an issue to the issue it depends on. res may be nil, in which case
// groups and the critical path are not drawn.
func GenerateMermaidGraph(g *analysis.Graph, res *analysis.Result, config MermaidConfig) string {
	var sb strings.Builder

	dir := strings.ToUpper(config.Direction)
	switch dir {
	case "TD", "BT", "LR", "RL":
	default:
		dir = "TD"
	}
	sb.WriteString("graph " + dir + "\n")

	// Class definitions for styling
	sb.WriteString("    classDef open fill:#50FA7B,stroke:#333,color:#000\n")
	sb.WriteString("    classDef inprogress fill:#8BE9FD,stroke:#333,color:#000\n")
	sb.WriteString("    classDef blocked fill:#FF5555,stroke:#333,color:#000\n")
	sb.WriteString("    classDef done fill:#6272A4,stroke:#333,color:#fff\n")
	sb.WriteString("    classDef cancelled fill:#44475A,stroke:#333,color:#aaa\n")
	sb.WriteString("    classDef critical stroke:#FFB86C,stroke-width:4px\n")
	sb.WriteString("\n")

	ids := g.IDs()
	analysis.SortIDs(ids)

	// Build deterministic, collision-free Mermaid IDs
	safeIDMap := make(map[string]string, len(ids))
	usedSafe := make(map[string]bool, len(ids))
	drawGroups := res != nil && config.GroupSubgraphs
	if drawGroups {
		// Subgraph ids share the node namespace.
		for _, grp := range res.Groups {
			usedSafe[groupID(grp.Index)] = true
		}
	}
	for _, id := range ids {
		base := sanitizeMermaidID(id)
		safe := base
		if usedSafe[safe] {
			// Collision: derive stable hash-based suffix
			h := fnv.New32a()
			_, _ = h.Write([]byte(id))
			safe = fmt.Sprintf("%s_%x", base, h.Sum32())
		}
		usedSafe[safe] = true
		safeIDMap[id] = safe
	}

	writeNode := func(indent, id string) {
		n, _ := g.Node(id)
		label := sanitizeMermaidText(id)
		if title := sanitizeMermaidText(n.Title); title != "" {
			label += "<br/>" + title
		}
		fmt.Fprintf(&sb, "%s%s[\"%s\"]\n", indent, safeIDMap[id], label)
	}

	placed := make(map[string]bool, len(ids))
	if drawGroups {
		for _, grp := range res.Groups {
			fmt.Fprintf(&sb, "    subgraph %s[\"Group %d\"]\n", groupID(grp.Index), grp.Index)
			for _, id := range grp.IssueIDs {
				writeNode("        ", id)
				placed[id] = true
			}
			sb.WriteString("    end\n")
		}
	}
	for _, id := range ids {
		if !placed[id] {
			writeNode("    ", id)
		}
	}
	sb.WriteString("\n")

	for _, id := range ids {
		n, _ := g.Node(id)
		if class := statusClass(n.Status); class != "" {
			fmt.Fprintf(&sb, "    class %s %s\n", safeIDMap[id], class)
		}
	}

	critical := make(map[model.DependencyEdge]bool)
	if res != nil && config.HighlightCritical && res.CriticalPath.Len() > 0 {
		path := res.CriticalPath.Path
		safe := make([]string, len(path))
		for i, id := range path {
			safe[i] = safeIDMap[id]
			if i > 0 {
				critical[model.DependencyEdge{From: id, To: path[i-1]}] = true
			}
		}
		fmt.Fprintf(&sb, "    class %s critical\n", strings.Join(safe, ","))
	}
	sb.WriteString("\n")

	edges := g.Edges()
	sort.Slice(edges, func(i, j int) bool {
		if c := analysis.CompareIDs(edges[i].From, edges[j].From); c != 0 {
			return c < 0
		}
		return analysis.CompareIDs(edges[i].To, edges[j].To) < 0
	})
	for _, e := range edges {
		link := "-->"
		if critical[e] {
			link = "==>"
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", safeIDMap[e.From], link, safeIDMap[e.To])
	}

	return sb.String()
}

func statusClass(s model.Status) string {
	switch s {
	case model.StatusOpen:
		return "open"
	case model.StatusInProgress:
		return "inprogress"
	case model.StatusBlocked:
		return "blocked"
	case model.StatusDone:
		return "done"
	case model.StatusCancelled:
		return "cancelled"
	}
	return ""
}

// sanitizeMermaidID ensures an ID is valid for Mermaid diagrams.
// Mermaid node IDs must be alphanumeric with hyphens/underscores.
func groupID(index int) string {
	return fmt.Sprintf("grp_%d", index)
}

func sanitizeMermaidID(id string) string {
	var sb strings.Builder
	for _, r := range id {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			sb.WriteRune(r)
		}
	}
	result := sb.String()
	switch result {
	case "":
		return "node"
	case "end", "graph", "subgraph", "class", "classDef":
		// Reserved words break the parser when used as bare ids.
		return "n_" + result
	}
	return result
}

// sanitizeMermaidText prepares text for use in Mermaid node labels.
func sanitizeMermaidText(text string) string {
	replacer := strings.NewReplacer(
		"\"", "'",
		"[", "(",
		"]", ")",
		"{", "(",
		"}", ")",
		"<", "&lt;",
		">", "&gt;",
		"|", "/",
		"`", "'",
		"\n", " ",
		"\r", "",
	)
	result := replacer.Replace(text)

	result = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, result)

	result = strings.TrimSpace(result)

	// Truncate if too long (UTF-8 safe using runes)
	runes := []rune(result)
	if len(runes) > 40 {
		result = string(runes[:37]) + "..."
	}
	return result
}

package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/docket/pkg/document"
)

// Overlay marks stores to highlight, e.g. those changed since a snapshot.
type Overlay struct {
	ChangedStores []string
}

// GenerateMermaid produces a Mermaid flowchart of doc:
// - Document: ((Circle))
// - Store: [(Cylinder)]
// - Action: [/Parallelogram/], with a dotted edge into the Document
func GenerateMermaid(doc *document.Document, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	sb.WriteString("    document((\"Document\"))\n")

	for _, key := range doc.StoreKeys() {
		safeID := "store_" + sanitizeMermaidID(key)
		label := key
		if store, ok := doc.StoreAt(key); ok {
			label = fmt.Sprintf("%s <br/> %s", key, escapeLabel(store.String()))
		}
		sb.WriteString(fmt.Sprintf("    %s[(\"%s\")]\n", safeID, label))
		sb.WriteString(fmt.Sprintf("    document --> %s\n", safeID))
	}

	for _, actionType := range doc.ActionTypes() {
		safeID := "action_" + sanitizeMermaidID(actionType)
		sb.WriteString(fmt.Sprintf("    %s[/\"%s\"/]\n", safeID, escapeLabel(actionType)))
		sb.WriteString(fmt.Sprintf("    %s -. dispatch .-> document\n", safeID))
	}

	if overlay != nil && len(overlay.ChangedStores) > 0 {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef changed fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, key := range overlay.ChangedStores {
			safeID := "store_" + sanitizeMermaidID(key)
			if !seen[safeID] {
				seen[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s changed;\n", safeID))
			}
		}
	}

	return sb.String()
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}

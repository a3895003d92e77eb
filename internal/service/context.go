package service

import (
	"fmt"
	"strings"

	"menurag/internal/domain"
)

// NoResultsContext is rendered when a search produced nothing.
const NoResultsContext = "No relevant menu items found"

const contextHeader = "Here are the relevant menu items:\n\n"

// RenderContext formats results as a numbered block for a text generator.
// The output depends only on its arguments.
func RenderContext(results []domain.SearchResult, currency string) string {
	if len(results) == 0 {
		return NoResultsContext
	}
	var b strings.Builder
	b.WriteString(contextHeader)
	for i, r := range results {
		price := strings.TrimSpace(r.Record.Price)
		if price == "" {
			price = "N/A"
		}
		fmt.Fprintf(&b, "%d. **%s** (Price: %s %s)\n", i+1, strings.TrimSpace(r.Record.Name), price, currency)
		fmt.Fprintf(&b, "   Description: %s\n", strings.TrimSpace(r.Record.Description))
		if c := strings.TrimSpace(r.Record.Category); c != "" {
			fmt.Fprintf(&b, "   Category: %s\n", c)
		}
		fmt.Fprintf(&b, "   Relevance: %.2f\n\n", r.Score)
	}
	return b.String()
}

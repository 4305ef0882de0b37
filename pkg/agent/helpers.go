package agent

import (
	"fmt"
	"strings"

	"github.com/dengjianbo3/magellan/pkg/clients"
)

// joinHits renders web search hits as prompt-ready bullet lines.
func joinHits(hits []clients.SearchHit) string {
	if len(hits) == 0 {
		return "no results"
	}
	var sb strings.Builder
	for _, h := range hits {
		fmt.Fprintf(&sb, "- %s (%s): %s\n", h.Title, h.URL, h.Snippet)
	}
	return sb.String()
}

// joinKnowledge renders knowledge-base hits as prompt-ready lines.
func joinKnowledge(hits []clients.KnowledgeHit) string {
	if len(hits) == 0 {
		return "no results"
	}
	var sb strings.Builder
	for _, h := range hits {
		fmt.Fprintf(&sb, "- %s\n", h.Content)
	}
	return sb.String()
}

// hitURLs extracts source URLs for citation lists.
func hitURLs(hits []clients.SearchHit) []string {
	urls := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.URL != "" {
			urls = append(urls, h.URL)
		}
	}
	return urls
}

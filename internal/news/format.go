package news

import (
	"fmt"
	"strings"
)

// articleSeparator joins articles in a prompt context block.
const articleSeparator = "\n\n---\n\n"

// FormatContext renders articles as a prompt context block. Each article
// carries its headline, source, and date so the synthesizer can attribute
// claims. Articles without fetched content fall back to their snippet.
func FormatContext(articles []Article) string {
	blocks := make([]string, 0, len(articles))
	for _, a := range articles {
		var sb strings.Builder
		fmt.Fprintf(&sb, "[%s]", a.Title)
		if a.Source != "" {
			fmt.Fprintf(&sb, " (%s", a.Source)
			if !a.PublishedAt.IsZero() {
				fmt.Fprintf(&sb, ", %s", a.PublishedAt.Format("2006-01-02"))
			}
			sb.WriteString(")")
		} else if !a.PublishedAt.IsZero() {
			fmt.Fprintf(&sb, " (%s)", a.PublishedAt.Format("2006-01-02"))
		}
		sb.WriteString("\n")

		body := a.Content
		if body == "" {
			body = a.Snippet
		}
		sb.WriteString(body)

		blocks = append(blocks, sb.String())
	}
	return strings.Join(blocks, articleSeparator)
}

package llm

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// maxContentRunes keeps a single long article from crowding out the others.
const maxContentRunes = 1500

const promptHeader = `You are the editor of a cryptocurrency and markets news desk.
Write one concise news bulletin from the articles below.

Rules:
- Group related stories and lead with the most market-moving news.
- Use short paragraphs or bullet points; keep it under 400 words.
- Mention the source in brackets after each point, for example [COINDESK].
- Do not invent facts, prices or quotes that are not in the articles.

Articles:
`

// BuildPrompt renders the generation prompt for articles.
func BuildPrompt(articles []Article) string {
	var b strings.Builder
	b.WriteString(promptHeader)

	for i, a := range articles {
		fmt.Fprintf(&b, "\n%d. [%s] %s\n", i+1, strings.ToUpper(a.Source), a.Title)
		if a.PublishedTime != nil {
			fmt.Fprintf(&b, "Time: %s\n", a.PublishedTime.Format("2006-01-02 15:04"))
		}
		if a.Author != "" {
			fmt.Fprintf(&b, "Author: %s\n", a.Author)
		}
		fmt.Fprintf(&b, "Content: %s\n", truncate(a.Content, maxContentRunes))
	}
	return b.String()
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}

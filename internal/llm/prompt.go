package llm

import (
	"fmt"
	"strings"
	"text/template"
)

var promptTemplate = template.Must(template.New("evaluate").Parse(`You are an expert analyst. Decide whether the text below satisfies the criterion.

Criterion:
{{.Criterion}}

Text:
{{.Text}}

Think briefly, then give your answer as a single JSON object between <verdict> and </verdict> markers, exactly in this shape:
<verdict>{"is_match": true or false, "confidence": a number from 0.0 to 1.0, "summary": "one or two sentences explaining the decision"}</verdict>
`))

// Prompt renders the evaluation prompt for text against criterion.
func Prompt(text, criterion string) (string, error) {
	var b strings.Builder
	err := promptTemplate.Execute(&b, struct {
		Text      string
		Criterion string
	}{text, criterion})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return b.String(), nil
}

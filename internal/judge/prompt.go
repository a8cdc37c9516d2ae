package judge

import (
	"strings"
	"text/template"
)

var promptTemplate = template.Must(template.New("judge").Parse(`You are an expert evaluator. Judge whether the agent's response satisfies the following criterion.

Criterion: {{.Criterion}}

Question asked to the agent:
{{.Prompt}}

Agent's response:
{{.Response}}

Reference (gold) answer:
{{.GoldResponse}}

Return score=true if the criterion is satisfied, false otherwise. Explain your reasoning briefly.
Respond with a single JSON object and nothing else:
{"reasoning": "<one or two sentences>", "score": true or false}
`))

// Request is one (task, criterion) pair to judge.
type Request struct {
	Criterion    string
	Prompt       string
	Response     string
	GoldResponse string
}

func renderPrompt(r Request) (string, error) {
	var b strings.Builder
	if err := promptTemplate.Execute(&b, r); err != nil {
		return "", err
	}
	return b.String(), nil
}

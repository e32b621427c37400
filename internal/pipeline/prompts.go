//-------------------------------------------------------------------------
//
// pgEdge RAG Chat
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package pipeline

import "strings"

// Template is a versioned prompt with {{name}} slots.
type Template struct {
	Name    string
	Version int
	Text    string
}

// Render fills the named slots. Unknown slots are left as is.
func (t Template) Render(vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(t.Text)
}

// RefinerPromptV1 rewrites a follow-up question as a standalone query.
// Slots: conversation, question.
var RefinerPromptV1 = Template{
	Name:    "refiner",
	Version: 1,
	Text: `Given the following conversation history and a new question, reformulate the question to be more specific and standalone, incorporating relevant context from the conversation history.

Conversation history:
{{conversation}}

New question: {{question}}

Reformulated question:`,
}

// QAPromptV1 answers the latest question from retrieved passages.
// Slots: context, question.
var QAPromptV1 = Template{
	Name:    "qa",
	Version: 1,
	Text: `You are a helpful assistant that answers questions using the passages below. Passages are separated by lines of dashes.

Passages:
{{context}}

Answer the question using only the information in the passages. If the passages do not contain enough information to answer, say so plainly. Be concise and accurate, and continue the conversation naturally.

Question: {{question}}`,
}

//-------------------------------------------------------------------------
//
// pgEdge RAG Chat
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package pipeline

import (
	"context"
	"strings"
	"testing"
)

func TestTranscript(t *testing.T) {
	h := NewHistory()
	h.Append(RoleUser, "What is arbitration?")
	h.Append(RoleAssistant, "A way to resolve disputes.")

	want := "user: What is arbitration?\nassistant: A way to resolve disputes.\n"
	if got := h.Transcript(); got != want {
		t.Errorf("Transcript() = %q, want %q", got, want)
	}
	if Transcript(nil) != "" {
		t.Error("expected empty transcript for no turns")
	}
}

func TestHistory_TurnsIsCopy(t *testing.T) {
	h := NewHistory()
	h.Append(RoleUser, "one")

	turns := h.Turns()
	turns[0].Text = "changed"

	if h.Turns()[0].Text != "one" {
		t.Error("modifying Turns() result changed the history")
	}
	if h.Len() != 1 {
		t.Errorf("expected 1 turn, got %d", h.Len())
	}
}

func TestRankedContext_String(t *testing.T) {
	delim := "\n" + strings.Repeat("-", 50) + "\n"
	if ContextDelimiter != delim {
		t.Fatalf("unexpected delimiter %q", ContextDelimiter)
	}

	rc := RankedContext{{Text: "C"}, {Text: "A"}}
	if got := rc.String(); got != "C"+delim+"A" {
		t.Errorf("String() = %q", got)
	}
	if (RankedContext{}).String() != "" {
		t.Error("expected empty string for empty context")
	}
	if (RankedContext{{Text: "only"}}).String() != "only" {
		t.Error("single passage should have no delimiter")
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateIdle:       "idle",
		StateRefining:   "refining",
		StateRetrieving: "retrieving",
		StateReranking:  "reranking",
		StateGenerating: "generating",
		StateCompleted:  "completed",
		State(99):       "unknown",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), s.String(), want)
		}
	}
}

func TestSessionIDContext(t *testing.T) {
	ctx := WithSessionID(context.Background(), "abc")
	if SessionIDFromContext(ctx) != "abc" {
		t.Errorf("unexpected session id %q", SessionIDFromContext(ctx))
	}
	if SessionIDFromContext(context.Background()) != "" {
		t.Error("expected empty session id")
	}
}

func TestPreview(t *testing.T) {
	short := "short"
	if preview(short) != short {
		t.Errorf("preview changed short string")
	}

	long := strings.Repeat("é", 150)
	p := preview(long)
	if !strings.HasSuffix(p, "...") {
		t.Errorf("expected ellipsis, got %q", p)
	}
	if len([]rune(p)) != 103 {
		t.Errorf("expected 103 runes, got %d", len([]rune(p)))
	}
}

func TestTemplateRender(t *testing.T) {
	out := RefinerPromptV1.Render(map[string]string{
		"conversation": "user: hi\n",
		"question":     "and {{conversation}}?",
	})
	if !strings.Contains(out, "Conversation history:\nuser: hi\n") {
		t.Errorf("conversation slot not filled:\n%s", out)
	}
	// Values are not re-expanded.
	if !strings.Contains(out, "New question: and {{conversation}}?") {
		t.Errorf("question slot not filled literally:\n%s", out)
	}

	qa := QAPromptV1.Render(map[string]string{"context": "CTX", "question": "Q"})
	if strings.Contains(qa, "{{") {
		t.Errorf("unfilled slot in QA prompt:\n%s", qa)
	}
}

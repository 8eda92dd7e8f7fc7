package llm

import (
	"reflect"
	"strings"
	"testing"
)

func TestPromptModes(t *testing.T) {
	t.Parallel()

	live := NewsQueryPrompt(ModeLive, "CONVO")
	full := NewsQueryPrompt(ModeFull, "CONVO")
	if !strings.Contains(live, "live ongoing conversation") || !strings.Contains(live, "Note: This is a live conversation") {
		t.Fatalf("live news prompt missing live fragments:\n%s", live)
	}
	if strings.Contains(full, "live") {
		t.Fatalf("full news prompt must not mention live:\n%s", full)
	}
	if !strings.Contains(full, "CONVO") {
		t.Fatal("conversation text missing from prompt")
	}

	if !strings.Contains(DebunkPrompt(ModeLive, "q", "c"), "10 word summary") {
		t.Fatal("live debunk prompt must ask for 10 words")
	}
	if !strings.Contains(DebunkPrompt(ModeFull, "q", "c"), "15 word summary") {
		t.Fatal("full debunk prompt must ask for 15 words")
	}
	if !strings.Contains(BooksPrompt(ModeLive, "c"), "in the recent conversation") {
		t.Fatal("live books prompt must focus on the recent conversation")
	}
	if !strings.Contains(InsightPrompt("c"), "Key topics") {
		t.Fatal("insight prompt missing instructions")
	}
}

func TestParseBookTitles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want []string
	}{
		{in: "NONE", want: nil},
		{in: "", want: nil},
		{in: "Moon Landing Hoax\n\n- \"Dune\"\n2. The Hobbit\n1984", want: []string{"Moon Landing Hoax", "Dune", "The Hobbit", "1984"}},
	}
	for _, tt := range tests {
		if got := ParseBookTitles(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseBookTitles(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

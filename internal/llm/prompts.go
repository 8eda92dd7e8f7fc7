package llm

import (
	"bytes"
	"regexp"
	"strings"
	"text/template"
)

// Mode selects the live or after-the-fact variant of a prompt.
type Mode int

const (
	// ModeLive is used while the conversation is still going.
	ModeLive Mode = iota
	// ModeFull is used when the whole conversation is available.
	ModeFull
)

// CoachSystemPrompt drives the live nudge.
const CoachSystemPrompt = `You are an expert communication coach analyzing a transcript of a live conversation.
Maintain a lightweight "topics" memory to recall recurring themes, tone patterns, or communication habits across turns and use it to generate more personalized follow-ups.
Provide one concise, forward-looking sentence of feedback (no more than 10 words) that helps the speaker improve future communication. The feedback must be specific, actionable, and personalized, offering a unique suggestion tailored to the conversation's tone, flow, and context.
If the speaker is communicating effectively, instead provide a short, positive sentence of encouragement (no more than 10 words). Consider natural, imperfect moments effective; only suggest improvement when patterns clearly hinder clarity, empathy, or flow.
All sentences must end with a period. Avoid rephrasing identical advice. If the same issue persists, vary the feedback by highlighting new context, impact, or phrasing.
Anchor every suggestion in something directly observable from the transcript, such as word choice, tone, pacing, or response timing.`

// SummarySystemPrompt drives the end-of-conversation summary.
const SummarySystemPrompt = `You are an expert communication coach. The conversation below has just ended.
Write a short summary of how the speaker communicated: two or three strengths, the one habit most worth improving, and a single concrete suggestion for their next conversation.
Keep it under 120 words, plain text, no headings.`

// AnalystSystemPrompt is shared by the structured analysis prompts.
const AnalystSystemPrompt = `You analyze conversation transcripts and answer exactly in the format requested. Be concise.`

var prompts = template.Must(template.New("prompts").Parse(`
{{define "insight"}}Analyze this live conversation segment and provide:
1. Key topics being discussed
2. Any action items mentioned
3. Important insights or decisions

Keep responses concise for real-time updates.

Conversation:
{{.Conversation}}{{end}}

{{define "news_query"}}You are analyzing a {{if .Live}}live ongoing {{end}}conversation for potential misinformation.

Your task is to determine if the conversation discusses facts that appear conspiratorial, unscientific, or heavily biased.
Only if the topic is of significant importance and urgency for the user to be aware of, reply with a single question to be asked to a news search engine.
Otherwise, reply with nothing.
{{if .Live}}
Note: This is a live conversation, so focus on recent developments and urgent matters.
{{end}}
Transcript:
{{.Conversation}}{{end}}

{{define "debunk"}}A user would like to verify the following question:
{{.Query}}

The conversation is:
{{.Conversation}}

Your task is to provide a {{if .Live}}10{{else}}15{{end}} word summary to help debunk and contradict any obvious bias or conspiratorial content.
If you don't find anything concerning, reply with nothing.{{end}}

{{define "books"}}The following is the transcript of a {{if .Live}}live ongoing {{end}}conversation.
{{.Conversation}}

Your task is to determine if the speakers talked about books or suggested/recommended books to each other {{if .Live}}in the recent conversation{{else}}at some point during the conversation{{end}}.
Reply with the title of each book on its own line and nothing else. If no books were mentioned, reply with NONE.{{end}}
`))

type promptData struct {
	Live         bool
	Conversation string
	Query        string
}

func render(name string, data promptData) string {
	var buf bytes.Buffer
	// Templates are parsed at init and only reference promptData fields, so
	// execution cannot fail.
	if err := prompts.ExecuteTemplate(&buf, name, data); err != nil {
		panic("llm: render " + name + ": " + err.Error())
	}
	return strings.TrimSpace(buf.String())
}

// InsightPrompt asks for topics, action items and insights.
func InsightPrompt(conversation string) string {
	return render("insight", promptData{Live: true, Conversation: conversation})
}

// NewsQueryPrompt asks for a news-search question about suspicious claims.
func NewsQueryPrompt(mode Mode, conversation string) string {
	return render("news_query", promptData{Live: mode == ModeLive, Conversation: conversation})
}

// DebunkPrompt asks for a short correction of the claim behind query.
func DebunkPrompt(mode Mode, query, conversation string) string {
	return render("debunk", promptData{Live: mode == ModeLive, Conversation: conversation, Query: query})
}

// BooksPrompt asks for the titles of books mentioned in the conversation.
func BooksPrompt(mode Mode, conversation string) string {
	return render("books", promptData{Live: mode == ModeLive, Conversation: conversation})
}

var listMarker = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+`)

// ParseBookTitles extracts one title per non-empty line, dropping list
// markers, quotes and the NONE sentinel.
func ParseBookTitles(output string) []string {
	var titles []string
	for _, line := range strings.Split(output, "\n") {
		line = listMarker.ReplaceAllString(line, "")
		line = strings.Trim(strings.TrimSpace(line), `"'`+"“”")
		line = strings.TrimSpace(line)
		if line == "" || strings.EqualFold(line, "none") {
			continue
		}
		titles = append(titles, line)
	}
	return titles
}

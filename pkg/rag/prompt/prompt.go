package prompt

import (
	"fmt"
	"strings"

	"rag-agent-be/pkg/rag/hybrid"
)

// Status messages streamed to the client as each stage is entered.
const (
	StatusAnalyzing         = "Analyzing what information is needed"
	StatusGeneratingQueries = "Generating search queries"
	StatusRetrieving        = "Searching related documents"
	StatusFiltering         = "Reviewing retrieved documents"
	StatusGenerating        = "Writing the answer"
)

const RouterSystemPrompt = `You are a routing classifier for a knowledge-base assistant.
Decide whether the user's latest message needs document retrieval from the knowledge base, or can be answered directly (greetings, small talk, meta questions about the conversation).
When in doubt, choose retrieval.

Respond with a single JSON object:
{"type": "retrieval_required"} or {"type": "just_respond"}`

const SimpleResponsePrompt = `You are a friendly assistant for a startup knowledge community.
Answer the user's message conversationally and briefly. Do not invent facts about the knowledge base; for substantive questions suggest that the user ask about a concrete topic.`

const generateQueriesTemplate = `You generate search queries for a document knowledge base about starting and running small businesses.
Given the user's question, produce between 2 and 5 short search queries that together maximize recall:
- the user's own key terms, verbatim, as the first query
- one paraphrase with different wording
- optionally, queries naming specific entities or brands the question touches

Known brands for context:
%s

Respond with a single JSON object:
{"maximum_five_queries": ["...", "..."]}`

const attachedContentNotice = `

The user attached the following content. If the question uses deictic phrases ("this", "this post", "here"), resolve them against it.

<user_attached_content>
%s
</user_attached_content>`

const relevanceTemplate = `You are given %d numbered documents and a conversation.
Select the documents that actually help answer the user's latest question.

Respond with a single JSON object listing the helpful document numbers (1-based):
{"helpful_docs": [1, 3]}

If no document helps, return {"helpful_docs": []}.`

const groundedResponseTemplate = `You are a knowledgeable staff member of a startup knowledge community, answering from its accumulated articles.
Base the answer ONLY on the reference documents below (and content the user attached). If the documents do not cover the question, say so instead of guessing.
Cite sources inline with their number in square brackets, e.g. [1] or [1][2].

%s`

const summarizeTemplate = `Summarize the conversation below concisely.
Keep every key question, answer and fact, in at most 500 words.

Conversation:
%s`

func GenerateQueriesPrompt(brands string) string {
	if brands == "" {
		brands = "(none)"
	}
	return fmt.Sprintf(generateQueriesTemplate, brands)
}

func AttachedContentNotice(content string) string {
	return fmt.Sprintf(attachedContentNotice, content)
}

func RelevancePrompt(docCount int) string {
	return fmt.Sprintf(relevanceTemplate, docCount)
}

func GroundedResponsePrompt(documents string) string {
	return fmt.Sprintf(groundedResponseTemplate, documents)
}

func SummarizePrompt(conversation string) string {
	return fmt.Sprintf(summarizeTemplate, conversation)
}

// FormatDocuments renders candidates as a numbered block for LLM
// consumption. Indices are 1-based and stable for citation.
func FormatDocuments(docs []hybrid.Document) string {
	if len(docs) == 0 {
		return "<documents></documents>"
	}

	parts := make([]string, len(docs))
	for i, doc := range docs {
		parts[i] = fmt.Sprintf("%d\nURL: %s\nTitle: %s\nContent: %s", i+1, doc.URL, doc.Title, doc.Content)
	}
	return fmt.Sprintf("<documents>\n%s\n</documents>", strings.Join(parts, "\n\n"))
}

// ExtractJSON pulls the outermost JSON object out of a model response that
// may be wrapped in prose or code fences.
func ExtractJSON(response string) string {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")

	if startIdx == -1 || endIdx == -1 || endIdx <= startIdx {
		return ""
	}

	return response[startIdx : endIdx+1]
}

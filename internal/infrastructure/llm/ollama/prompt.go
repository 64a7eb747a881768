package ollama

import (
	"strings"

	"github.com/askidc/corpus-assistant/internal/core/domain"
)

const systemInstruction = `You are a helpful assistant answering questions about the organization's services and documentation.
Answer only from the provided context. If the context does not contain the answer, say so directly instead of guessing.
Keep answers concise and factual.`

func buildAnswerPrompt(question, contextBlock string, history []domain.Turn) string {
	var b strings.Builder
	b.WriteString(systemInstruction)
	b.WriteString("\n\n")

	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, turn := range history {
			switch turn.Role {
			case domain.RoleAssistant:
				b.WriteString("Assistant: ")
			default:
				b.WriteString("User: ")
			}
			b.WriteString(turn.Text)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("Context:\n")
	b.WriteString(contextBlock)
	b.WriteString("\n\nQuestion:\n")
	b.WriteString(question)
	b.WriteString("\n")
	return b.String()
}

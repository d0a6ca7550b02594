package orchestrator

import (
	"fmt"
	"strings"

	convmemdomain "github.com/edgebank/assist/internal/convmem/domain"
	"github.com/edgebank/assist/internal/llm"
)

const systemDirectives = `You are the virtual assistant of EdgeBank PLC, a commercial bank.
Answer only from the context provided. When the context does not cover the
question, say so plainly and suggest contacting the call center.
Refer to the bank as "EdgeBank PLC". State amounts with their currency code
(BDT, USD). Do not use markdown formatting. Keep answers short and factual.`

const missingContextDirective = `No supporting context was found for this
question. Acknowledge that you do not have the information and point the
customer to the call center. Do not guess.`

// promptInput is everything the prompt builder needs for one turn.
type promptInput struct {
	query   string
	context []contextBlock
	history []convmemdomain.Turn
	// noContext marks a retrieval-backed turn whose fetch yielded nothing;
	// the model is told to acknowledge the gap.
	noContext bool
}

// contextBlock is one authoritative context section with its source
// identifier.
type contextBlock struct {
	Source string
	Text   string
}

// buildPrompt assembles the generation request: fixed system directives,
// authoritative context, the last turns of history, then the user message.
func buildPrompt(in promptInput) (string, []llm.Message) {
	var system strings.Builder
	system.WriteString(systemDirectives)

	if in.noContext {
		system.WriteString("\n\n")
		system.WriteString(missingContextDirective)
	} else if len(in.context) > 0 {
		system.WriteString("\n\nContext:\n")
		for i, block := range in.context {
			fmt.Fprintf(&system, "[%d] (%s) %s\n", i+1, block.Source, strings.TrimSpace(block.Text))
		}
	}

	messages := make([]llm.Message, 0, len(in.history)+1)
	for _, turn := range in.history {
		role := llm.RoleUser
		if turn.Role == convmemdomain.RoleAssistant {
			role = llm.RoleModel
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: in.query})

	return system.String(), messages
}

// trimHistory halves the history window for a context-length retry. The most
// recent turns survive.
func trimHistory(history []convmemdomain.Turn) []convmemdomain.Turn {
	if len(history) <= 1 {
		return nil
	}
	return history[len(history)/2:]
}

package orchestrator

import (
	"strings"
	"testing"

	convmemdomain "github.com/edgebank/assist/internal/convmem/domain"
	"github.com/edgebank/assist/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPromptWithContext(t *testing.T) {
	system, messages := buildPrompt(promptInput{
		query: "what is the kyc policy",
		context: []contextBlock{
			{Source: "policies/kyc.md", Text: "KYC requires a national ID."},
		},
		history: []convmemdomain.Turn{
			{Role: convmemdomain.RoleUser, Content: "hi"},
			{Role: convmemdomain.RoleAssistant, Content: "hello"},
		},
	})

	assert.Contains(t, system, "Context:")
	assert.Contains(t, system, "[1] (policies/kyc.md) KYC requires a national ID.")
	assert.NotContains(t, system, "No supporting context")

	require.Len(t, messages, 3)
	assert.Equal(t, llm.RoleUser, messages[0].Role)
	assert.Equal(t, llm.RoleModel, messages[1].Role)
	assert.Equal(t, "what is the kyc policy", messages[2].Content)
}

func TestBuildPromptNoContext(t *testing.T) {
	system, messages := buildPrompt(promptInput{
		query:     "what is the kyc policy",
		noContext: true,
	})

	assert.True(t, strings.Contains(system, "No supporting context"))
	assert.NotContains(t, system, "Context:")
	require.Len(t, messages, 1)
}

func TestTrimHistoryKeepsNewestHalf(t *testing.T) {
	history := []convmemdomain.Turn{
		{Content: "a"}, {Content: "b"}, {Content: "c"}, {Content: "d"},
	}
	trimmed := trimHistory(history)
	require.Len(t, trimmed, 2)
	assert.Equal(t, "c", trimmed[0].Content)
	assert.Equal(t, "d", trimmed[1].Content)

	assert.Nil(t, trimHistory(history[:1]))
	assert.Nil(t, trimHistory(nil))
}

package context

import (
	stdctx "context"
	"errors"
	"testing"

	"github.com/astraweave-go/astraweave/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAIClient struct {
	response *core.AIResponse
	err      error
	calls    int
}

func (f *fakeAIClient) GenerateResponse(_ stdctx.Context, _ string, _ *core.AIOptions) (*core.AIResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func TestHistoryStartsEmpty(t *testing.T) {
	h := NewHistory(DefaultConfig())
	assert.Len(t, h.GetRecentMessages(10), 0)
	assert.Equal(t, 0, h.GetTotalTokens())
}

func TestAddMessageCountsTokensAndAssignsID(t *testing.T) {
	h := NewHistory(DefaultConfig())

	id, err := h.AddMessage(stdctx.Background(), RoleUser, "Hello world")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Len(t, h.GetRecentMessages(10), 1)
	assert.Greater(t, h.GetTotalTokens(), 0)
}

func TestGetContextIncludesRecentMessages(t *testing.T) {
	h := NewHistory(DefaultConfig())

	_, err := h.AddMessage(stdctx.Background(), RoleUser, "Hello")
	require.NoError(t, err)
	_, err = h.AddMessage(stdctx.Background(), RoleAssistant, "Hi there")
	require.NoError(t, err)

	out := h.GetContext(1000)
	assert.Contains(t, out, "Hello")
	assert.Contains(t, out, "Hi there")
}

func TestSlidingWindowPruningKeepsMostRecent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SlidingWindowSize = 2
	cfg.OverflowStrategy = SlidingWindow
	h := NewHistory(cfg)

	for _, content := range []string{"Message 1", "Message 2", "Message 3"} {
		_, err := h.AddMessage(stdctx.Background(), RoleUser, content)
		require.NoError(t, err)
	}

	messages := h.GetRecentMessages(10)
	assert.LessOrEqual(t, len(messages), 2)

	found := false
	for _, m := range messages {
		if m.Content == "Message 3" {
			found = true
		}
	}
	assert.True(t, found, "the most recent message must survive pruning")
}

func TestPreservedMessageSurvivesSlidingWindowPruning(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SlidingWindowSize = 1
	h := NewHistory(cfg)

	h.messages = append(h.messages, NewPreservedMessage(RoleSystem, "Important system message"))

	_, err := h.AddMessage(stdctx.Background(), RoleUser, "Regular message")
	require.NoError(t, err)

	messages := h.GetRecentMessages(10)
	found := false
	for _, m := range messages {
		if m.Content == "Important system message" {
			found = true
		}
	}
	assert.True(t, found, "a preserved message must not be dropped by sliding window pruning")
}

func TestSummarizationReplacesOldestHalfWithSummary(t *testing.T) {
	client := &fakeAIClient{response: &core.AIResponse{Content: "They discussed the weather."}}

	cfg := DefaultConfig()
	cfg.MaxTokens = 1
	cfg.SlidingWindowSize = 100
	cfg.OverflowStrategy = Summarization
	cfg.EnableSummarization = true
	cfg.SummarizationThreshold = 2
	h := NewHistory(cfg, WithAIClient(client))

	_, err := h.AddMessage(stdctx.Background(), RoleUser, "It is sunny today")
	require.NoError(t, err)
	_, err = h.AddMessage(stdctx.Background(), RoleAssistant, "Indeed, quite warm")
	require.NoError(t, err)

	assert.Greater(t, client.calls, 0, "summarization strategy must call the AI client")
	assert.True(t, h.hasSummary)
	assert.Contains(t, h.GetContext(1000), "SUMMARY:")
}

func TestSummarizationFallsBackToSlidingWindowWithoutClient(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTokens = 1
	cfg.SlidingWindowSize = 1
	cfg.OverflowStrategy = Summarization
	cfg.EnableSummarization = true
	cfg.SummarizationThreshold = 2
	h := NewHistory(cfg)

	for _, content := range []string{"one", "two", "three"} {
		_, err := h.AddMessage(stdctx.Background(), RoleUser, content)
		require.NoError(t, err)
	}

	assert.False(t, h.hasSummary, "without an AI client, summarization must degrade to sliding window")
	assert.LessOrEqual(t, len(h.GetRecentMessages(10)), 1)
}

func TestSummarizationErrorFallsBackToSlidingWindow(t *testing.T) {
	client := &fakeAIClient{err: errors.New("provider unavailable")}

	cfg := DefaultConfig()
	cfg.MaxTokens = 1
	cfg.SlidingWindowSize = 1
	cfg.OverflowStrategy = Summarization
	cfg.EnableSummarization = true
	cfg.SummarizationThreshold = 2
	h := NewHistory(cfg, WithAIClient(client))

	for _, content := range []string{"one", "two", "three"} {
		_, err := h.AddMessage(stdctx.Background(), RoleUser, content)
		require.NoError(t, err, "a summarization failure must not propagate as an AddMessage error")
	}

	assert.False(t, h.hasSummary)
}

func TestTruncateStartKeepsHistoryWithinBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTokens = 20
	cfg.SlidingWindowSize = 100
	cfg.OverflowStrategy = TruncateStart
	h := NewHistory(cfg)

	for i := 0; i < 10; i++ {
		_, err := h.AddMessage(stdctx.Background(), RoleUser, "padding content here")
		require.NoError(t, err)
	}

	assert.LessOrEqual(t, h.GetTotalTokens(), cfg.MaxTokens, "truncate-start must not leave the history over budget")
}

func TestTruncateMiddleKeepsHeadAndTail(t *testing.T) {
	// Token overflow is the only thing that triggers TruncateMiddle (per
	// pruneIfNeeded, only SlidingWindow reacts to message count), so
	// MaxTokens must be small enough that pruning fires as messages
	// accumulate. Each one-word message below costs exactly one token.
	cfg := DefaultConfig()
	cfg.MaxTokens = 4
	cfg.SlidingWindowSize = 4
	cfg.OverflowStrategy = TruncateMiddle
	h := NewHistory(cfg)

	for _, content := range []string{"first", "second", "third", "fourth", "fifth", "sixth"} {
		_, err := h.AddMessage(stdctx.Background(), RoleUser, content)
		require.NoError(t, err)
	}

	messages := h.GetRecentMessages(100)
	require.Len(t, messages, 4)
	assert.Equal(t, "first", messages[0].Content, "the earliest messages must survive truncate-middle")
	assert.Equal(t, "second", messages[1].Content)
	assert.Equal(t, "fifth", messages[2].Content, "the most recent messages must survive truncate-middle")
	assert.Equal(t, "sixth", messages[3].Content)
}

func TestClearResetsMessagesSummaryAndMetrics(t *testing.T) {
	h := NewHistory(DefaultConfig())
	_, err := h.AddMessage(stdctx.Background(), RoleUser, "hello")
	require.NoError(t, err)

	h.Clear()

	assert.Len(t, h.GetRecentMessages(10), 0)
	assert.Equal(t, 0, h.GetTotalTokens())
	assert.Equal(t, 0, h.GetMetrics().TotalMessages)
}

func TestExportImportRoundTrip(t *testing.T) {
	h1 := NewHistory(DefaultConfig())
	_, err := h1.AddMessage(stdctx.Background(), RoleUser, "Hello")
	require.NoError(t, err)
	_, err = h1.AddMessage(stdctx.Background(), RoleAssistant, "Hi")
	require.NoError(t, err)

	exported := h1.Export()
	assert.Len(t, exported.Messages, 2)

	h2 := Import(exported, nil)
	assert.Len(t, h2.GetRecentMessages(10), 2)
	assert.Equal(t, h1.GetTotalTokens(), h2.GetTotalTokens())
}

func TestGetMessagesByRoleFiltersCorrectly(t *testing.T) {
	h := NewHistory(DefaultConfig())
	_, err := h.AddMessage(stdctx.Background(), RoleUser, "question")
	require.NoError(t, err)
	_, err = h.AddMessage(stdctx.Background(), RoleAssistant, "answer")
	require.NoError(t, err)
	_, err = h.AddMessage(stdctx.Background(), RoleUser, "follow-up")
	require.NoError(t, err)

	userMessages := h.GetMessagesByRole(RoleUser)
	require.Len(t, userMessages, 2)
	assert.Equal(t, "question", userMessages[0].Content)
	assert.Equal(t, "follow-up", userMessages[1].Content)
}

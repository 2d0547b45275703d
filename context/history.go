package context

import (
	stdctx "context"
	"strings"
	"sync"
	"time"

	"github.com/astraweave-go/astraweave/core"
)

// OverflowStrategy selects how History reacts once the conversation
// exceeds its configured token or message budget.
type OverflowStrategy int

const (
	// SlidingWindow drops oldest messages (FIFO) until the window size
	// is satisfied, skipping nothing: it stops entirely the moment a
	// preserved message reaches the front rather than pruning past it.
	SlidingWindow OverflowStrategy = iota
	// Summarization replaces the oldest half of the conversation with an
	// LLM-generated summary, falling back to SlidingWindow if no AI
	// client is configured.
	Summarization
	// Hybrid summarizes first, then applies SlidingWindow if still over
	// the token budget afterward.
	Hybrid
	// TruncateStart drops oldest messages until total tokens reach 75%
	// of MaxTokens.
	TruncateStart
	// TruncateMiddle keeps the first two and last two messages, dropping
	// (or, for preserved messages, retaining) everything in between.
	TruncateMiddle
)

// Config configures a History's budget and pruning behavior.
type Config struct {
	MaxTokens              int              `json:"max_tokens"`
	SlidingWindowSize      int              `json:"sliding_window_size"`
	OverflowStrategy       OverflowStrategy `json:"overflow_strategy"`
	EnableSummarization    bool             `json:"enable_summarization"`
	SummarizationThreshold int              `json:"summarization_threshold"`
	EncodingModel          string           `json:"encoding_model"`
}

// DefaultConfig returns production defaults: an 8k-token budget, a
// 20-message sliding window, no summarization.
func DefaultConfig() Config {
	return Config{
		MaxTokens:              8192,
		SlidingWindowSize:      20,
		OverflowStrategy:       SlidingWindow,
		SummarizationThreshold: 10,
		EncodingModel:          "cl100k_base",
	}
}

// Metrics reports History's current size and pruning activity.
type Metrics struct {
	TotalMessages      int           `json:"total_messages"`
	CurrentTokens      int           `json:"current_tokens"`
	MaxTokens          int           `json:"max_tokens"`
	Utilization        float64       `json:"utilization"`
	AvgMessageTokens   float64       `json:"avg_message_tokens"`
	PruneCount         int           `json:"prune_count"`
	SummarizedMessages int           `json:"summarized_messages"`
	ProcessingTime     time.Duration `json:"processing_time_ns"`
}

// Option configures a History.
type Option func(*History)

// WithAIClient supplies the client used to generate summaries under the
// Summarization and Hybrid strategies. Without one, both strategies
// degrade to SlidingWindow.
func WithAIClient(client core.AIClient) Option {
	return func(h *History) { h.aiClient = client }
}

// WithLogger overrides History's logger.
func WithLogger(logger core.Logger) Option {
	return func(h *History) { h.logger = logger }
}

// History is a conversation's message log with a bounded token/message
// budget, ported from original_source/astraweave-context/src/history.rs.
// Every public method is safe to call from many goroutines.
type History struct {
	mu sync.RWMutex

	config     Config
	messages   []Message
	summary    string
	hasSummary bool

	tokenCounter *TokenCounter
	metrics      Metrics

	aiClient core.AIClient
	logger   core.Logger
}

// NewHistory builds a History under config.
func NewHistory(config Config, opts ...Option) *History {
	h := &History{
		config:       config,
		tokenCounter: NewTokenCounter(config.EncodingModel),
		logger:       &core.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.metrics.MaxTokens = config.MaxTokens
	return h
}

// AddMessage appends a message, counts its tokens, prunes if the budget
// is now exceeded, and returns the new message's ID.
func (h *History) AddMessage(ctx stdctx.Context, role Role, content string) (string, error) {
	return h.AddMessageWithMetadata(ctx, role, content, nil)
}

// AddMessageWithMetadata is AddMessage with caller-supplied metadata
// attached to the stored Message.
func (h *History) AddMessageWithMetadata(ctx stdctx.Context, role Role, content string, metadata map[string]string) (string, error) {
	start := time.Now()

	msg := NewMessage(role, content)
	msg.TokenCount = h.tokenCounter.CountTokens(msg.Content)
	if metadata != nil {
		msg.Metadata = metadata
	}

	h.mu.Lock()
	h.messages = append(h.messages, msg)
	h.mu.Unlock()

	if err := h.pruneIfNeeded(ctx); err != nil {
		return msg.ID, err
	}

	h.mu.Lock()
	h.metrics.TotalMessages = len(h.messages)
	h.metrics.ProcessingTime += time.Since(start)
	h.updateMetricsLocked()
	h.mu.Unlock()

	return msg.ID, nil
}

// GetContext builds a prompt-ready string within maxTokens: the running
// summary (if it fits) followed by as many of the most recent messages
// as fit, oldest-first.
func (h *History) GetContext(maxTokens int) string {
	start := time.Now()
	out := h.buildContextString(maxTokens)

	h.mu.Lock()
	h.metrics.ProcessingTime += time.Since(start)
	h.mu.Unlock()

	return out
}

func (h *History) buildContextString(maxTokens int) string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var parts []string
	current := 0

	if h.hasSummary {
		summaryTokens := h.tokenCounter.CountTokens(h.summary)
		if summaryTokens <= maxTokens {
			parts = append(parts, "SUMMARY: "+h.summary)
			current += summaryTokens
		}
	}

	var selected []string
	for i := len(h.messages) - 1; i >= 0; i-- {
		text := h.messages[i].FormatForPrompt()
		tokens := h.tokenCounter.CountTokens(text)
		if current+tokens > maxTokens {
			break
		}
		selected = append(selected, text)
		current += tokens
	}
	for i, j := 0, len(selected)-1; i < j; i, j = i+1, j-1 {
		selected[i], selected[j] = selected[j], selected[i]
	}

	parts = append(parts, selected...)
	return strings.Join(parts, "\n")
}

// GetRecentMessages returns up to the last limit messages, oldest-first.
func (h *History) GetRecentMessages(limit int) []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if limit >= len(h.messages) {
		out := make([]Message, len(h.messages))
		copy(out, h.messages)
		return out
	}
	start := len(h.messages) - limit
	out := make([]Message, limit)
	copy(out, h.messages[start:])
	return out
}

// GetMessagesByRole returns every stored message authored by role, in
// chronological order.
func (h *History) GetMessagesByRole(role Role) []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []Message
	for _, m := range h.messages {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

// GetTotalTokens sums every stored message's token count plus the
// summary's, if one exists.
func (h *History) GetTotalTokens() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalTokensLocked()
}

func (h *History) totalTokensLocked() int {
	total := 0
	for _, m := range h.messages {
		total += m.TokenCount
	}
	if h.hasSummary {
		total += h.tokenCounter.CountTokens(h.summary)
	}
	return total
}

// GetMetrics returns a snapshot of History's current metrics.
func (h *History) GetMetrics() Metrics {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.metrics
}

// Clear removes every message, the summary, and resets metrics.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = nil
	h.summary = ""
	h.hasSummary = false
	h.metrics = Metrics{MaxTokens: h.config.MaxTokens}
}

func (h *History) updateMetricsLocked() {
	total := h.totalTokensLocked()
	h.metrics.CurrentTokens = total
	h.metrics.MaxTokens = h.config.MaxTokens
	if h.config.MaxTokens > 0 {
		h.metrics.Utilization = float64(total) / float64(h.config.MaxTokens)
	}
	if len(h.messages) > 0 {
		h.metrics.AvgMessageTokens = float64(total) / float64(len(h.messages))
	}
}

// pruneIfNeeded applies config.OverflowStrategy once either the token
// budget or (under SlidingWindow) the message-count budget is exceeded.
func (h *History) pruneIfNeeded(ctx stdctx.Context) error {
	h.mu.RLock()
	total := h.totalTokensLocked()
	count := len(h.messages)
	h.mu.RUnlock()

	needsPruning := total > h.config.MaxTokens ||
		(h.config.OverflowStrategy == SlidingWindow && count > h.config.SlidingWindowSize)
	if !needsPruning {
		return nil
	}

	switch h.config.OverflowStrategy {
	case SlidingWindow:
		h.pruneSlidingWindow()
		return nil
	case Summarization:
		return h.pruneWithSummarization(ctx)
	case Hybrid:
		return h.pruneHybrid(ctx)
	case TruncateStart:
		h.pruneTruncateStart()
		return nil
	case TruncateMiddle:
		h.pruneTruncateMiddle()
		return nil
	default:
		h.pruneSlidingWindow()
		return nil
	}
}

// pruneSlidingWindow drops oldest messages FIFO until SlidingWindowSize
// is satisfied. It stops, rather than skipping over, the first preserved
// message it encounters at the front, so a preserved message can keep
// the window over its nominal size.
func (h *History) pruneSlidingWindow() {
	h.mu.Lock()
	defer h.mu.Unlock()

	removed := 0
	for len(h.messages) > h.config.SlidingWindowSize {
		if h.messages[0].Preserve {
			break
		}
		h.messages = h.messages[1:]
		removed++
	}
	if removed > 0 {
		h.metrics.PruneCount++
	}
}

// pruneWithSummarization replaces the oldest half of the conversation
// (excluding preserved messages) with an LLM-generated summary appended
// to any existing one. Falls back to pruneSlidingWindow when
// summarization is disabled or no AI client is configured.
func (h *History) pruneWithSummarization(ctx stdctx.Context) error {
	if !h.config.EnableSummarization || h.aiClient == nil {
		h.pruneSlidingWindow()
		return nil
	}

	h.mu.RLock()
	if len(h.messages) < h.config.SummarizationThreshold {
		h.mu.RUnlock()
		return nil
	}
	splitPoint := len(h.messages) / 2
	toSummarize := make([]Message, 0, splitPoint)
	for _, m := range h.messages[:splitPoint] {
		if !m.Preserve {
			toSummarize = append(toSummarize, m)
		}
	}
	h.mu.RUnlock()

	if len(toSummarize) == 0 {
		return nil
	}

	newSummary, err := h.createSummary(ctx, toSummarize)
	if err != nil {
		h.logger.Warn("summarization failed, falling back to sliding window", map[string]interface{}{"error": err.Error()})
		h.pruneSlidingWindow()
		return nil
	}

	h.mu.Lock()
	if h.hasSummary {
		h.summary = h.summary + "\n" + newSummary
	} else {
		h.summary = newSummary
		h.hasSummary = true
	}

	kept := make([]Message, 0, len(h.messages)-len(toSummarize))
	skipped := 0
	for _, m := range h.messages {
		if m.Preserve || skipped >= len(toSummarize) {
			kept = append(kept, m)
		} else {
			skipped++
		}
	}
	h.messages = kept
	h.metrics.PruneCount++
	h.metrics.SummarizedMessages += len(toSummarize)
	h.mu.Unlock()

	return nil
}

// pruneHybrid summarizes, then applies a sliding window pass if the
// token budget is still exceeded afterward.
func (h *History) pruneHybrid(ctx stdctx.Context) error {
	if h.config.EnableSummarization && h.aiClient != nil {
		if err := h.pruneWithSummarization(ctx); err != nil {
			return err
		}
	}

	if h.GetTotalTokens() > h.config.MaxTokens {
		h.pruneSlidingWindow()
	}
	return nil
}

// pruneTruncateStart drops oldest messages until total tokens reach 75%
// of MaxTokens, the same target the teacher's fallback tiers use to
// leave headroom rather than pruning exactly to the limit.
func (h *History) pruneTruncateStart() {
	h.mu.Lock()
	defer h.mu.Unlock()

	target := h.config.MaxTokens * 3 / 4
	current := h.totalTokensLocked()

	for current > target && len(h.messages) > 0 {
		if h.messages[0].Preserve {
			break
		}
		current -= h.messages[0].TokenCount
		h.messages = h.messages[1:]
	}
}

// pruneTruncateMiddle keeps the first two and last two messages,
// dropping everything between them except preserved messages, which are
// retained (appended after the kept head, before the kept tail).
func (h *History) pruneTruncateMiddle() {
	h.mu.Lock()
	defer h.mu.Unlock()

	const keepStart, keepEnd = 2, 2
	if len(h.messages) <= 4 {
		return
	}
	targetSize := h.config.SlidingWindowSize
	if targetSize < keepStart+keepEnd {
		targetSize = keepStart + keepEnd
	}
	if len(h.messages) <= targetSize {
		return
	}

	head := append([]Message(nil), h.messages[:keepStart]...)
	tail := append([]Message(nil), h.messages[len(h.messages)-keepEnd:]...)

	var preservedMiddle []Message
	for _, m := range h.messages[keepStart : len(h.messages)-keepEnd] {
		if m.Preserve {
			preservedMiddle = append(preservedMiddle, m)
		}
	}

	kept := make([]Message, 0, len(head)+len(preservedMiddle)+len(tail))
	kept = append(kept, head...)
	kept = append(kept, preservedMiddle...)
	kept = append(kept, tail...)
	h.messages = kept
}

// createSummary asks the configured AI client to summarize messages in
// 2-3 sentences.
func (h *History) createSummary(ctx stdctx.Context, messages []Message) (string, error) {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.FormatForPrompt())
	}

	prompt := "Summarize the following conversation in 2-3 sentences, preserving key information:\n\n" + b.String()
	resp, err := h.aiClient.GenerateResponse(ctx, prompt, &core.AIOptions{Temperature: 0, MaxTokens: 256})
	if err != nil {
		return "", core.NewFrameworkError("context.History.createSummary", "context", err)
	}
	return resp.Content, nil
}

// SerializableHistory is History's wire shape for Export/Import.
type SerializableHistory struct {
	Config     Config    `json:"config"`
	Messages   []Message `json:"messages"`
	Summary    string    `json:"summary,omitempty"`
	HasSummary bool      `json:"has_summary"`
	Metrics    Metrics   `json:"metrics"`
}

// Export snapshots History into a JSON-serializable form.
func (h *History) Export() SerializableHistory {
	h.mu.RLock()
	defer h.mu.RUnlock()

	messages := make([]Message, len(h.messages))
	copy(messages, h.messages)

	return SerializableHistory{
		Config:     h.config,
		Messages:   messages,
		Summary:    h.summary,
		HasSummary: h.hasSummary,
		Metrics:    h.metrics,
	}
}

// Import rebuilds a History from a previously exported snapshot. The AI
// client (if summarization is needed going forward) must be supplied
// separately, since it is not itself serializable.
func Import(data SerializableHistory, aiClient core.AIClient) *History {
	h := &History{
		config:       data.Config,
		messages:     data.Messages,
		summary:      data.Summary,
		hasSummary:   data.HasSummary,
		tokenCounter: NewTokenCounter(data.Config.EncodingModel),
		metrics:      data.Metrics,
		aiClient:     aiClient,
		logger:       &core.NoOpLogger{},
	}
	return h
}

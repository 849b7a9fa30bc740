// Package agent implements the three-role report pipeline and the dashboard
// chat on top of the llm package. Each role is a BaseAgent with its own
// system prompt and tools; the Pipeline runs them strictly in sequence.
package agent

import (
	"context"
	"sync"
	"time"

	"github.com/seenimoa/mercadobr/internal/llm"
	"github.com/seenimoa/mercadobr/internal/logging"
)

// ── Agent Interface ──

// Agent defines the interface every role implements.
type Agent interface {
	// Name returns the agent's unique identifier (e.g., "macro_analyst").
	Name() string

	// Role returns the human-readable role title.
	Role() string

	// SystemPrompt returns the system prompt that configures this agent's behavior.
	SystemPrompt() string

	// Tools returns the set of LLM tools this agent can invoke.
	Tools() []llm.Tool

	// Process executes a task and returns an AgentResult.
	Process(ctx context.Context, task string) (*AgentResult, error)

	// ProcessWithMessages processes a task after replaying prior turns.
	ProcessWithMessages(ctx context.Context, task string, history []llm.Message) (*AgentResult, error)
}

// ── AgentResult ──

// AgentResult holds the output from an agent's processing.
type AgentResult struct {
	AgentName string        `json:"agent_name"`
	Role      string        `json:"role"`
	Content   string        `json:"content"`    // LLM-generated text
	ToolCalls int           `json:"tool_calls"` // number of tool calls made
	Tokens    int           `json:"tokens"`     // tokens of the final response
	Duration  time.Duration `json:"duration"`
	Messages  []llm.Message `json:"messages"` // full conversation history
	Error     string        `json:"error,omitempty"`
}

// ── Memory ──

// Memory is a bounded conversation transcript. When it grows past maxSize
// the oldest user/assistant exchange is dropped.
type Memory struct {
	mu       sync.RWMutex
	messages []llm.Message
	maxSize  int
}

// NewMemory creates a conversation memory holding at most maxSize messages.
func NewMemory(maxSize int) *Memory {
	if maxSize <= 0 {
		maxSize = 200
	}
	return &Memory{maxSize: maxSize}
}

// Add appends a message to the memory.
func (m *Memory) Add(msg llm.Message) {
	m.AddAll([]llm.Message{msg})
}

// AddAll appends multiple messages to the memory.
func (m *Memory) AddAll(msgs []llm.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msgs...)
	for len(m.messages) > m.maxSize {
		drop := 2
		if drop > len(m.messages) {
			drop = len(m.messages)
		}
		m.messages = append([]llm.Message(nil), m.messages[drop:]...)
	}
}

// Messages returns a copy of the stored messages.
func (m *Memory) Messages() []llm.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]llm.Message, len(m.messages))
	copy(result, m.messages)
	return result
}

// Size returns the number of messages currently in memory.
func (m *Memory) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages)
}

// Clear resets the memory completely.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
}

// ── BaseAgent ──

// BaseAgent provides the shared implementation for every role. Roles differ
// only in prompt, tools and options.
type BaseAgent struct {
	name         string
	role         string
	systemPrompt string
	tools        []llm.Tool
	registry     *llm.ToolRegistry
	provider     llm.LLMProvider
	opts         *llm.ChatOptions
	maxToolIter  int // max tool-call loop iterations
	log          *logging.Logger
}

// BaseAgentConfig configures a BaseAgent.
type BaseAgentConfig struct {
	Name         string
	Role         string
	SystemPrompt string
	Provider     llm.LLMProvider
	Tools        []llm.Tool
	ChatOptions  *llm.ChatOptions
	MaxToolIter  int
	Logger       *logging.Logger
}

// NewBaseAgent creates a new BaseAgent from the given configuration.
func NewBaseAgent(cfg BaseAgentConfig) *BaseAgent {
	if cfg.MaxToolIter <= 0 {
		cfg.MaxToolIter = 10
	}

	reg := llm.NewToolRegistry()
	for _, t := range cfg.Tools {
		reg.Register(t)
	}

	return &BaseAgent{
		name:         cfg.Name,
		role:         cfg.Role,
		systemPrompt: cfg.SystemPrompt,
		tools:        cfg.Tools,
		registry:     reg,
		provider:     cfg.Provider,
		opts:         cfg.ChatOptions,
		maxToolIter:  cfg.MaxToolIter,
		log:          cfg.Logger.With("agent"),
	}
}

// Name returns the agent's identifier.
func (a *BaseAgent) Name() string { return a.name }

// Role returns the agent's role title.
func (a *BaseAgent) Role() string { return a.role }

// SystemPrompt returns the agent's system prompt.
func (a *BaseAgent) SystemPrompt() string { return a.systemPrompt }

// Tools returns the agent's available tools.
func (a *BaseAgent) Tools() []llm.Tool { return a.tools }

// Provider returns the agent's LLM provider.
func (a *BaseAgent) Provider() llm.LLMProvider { return a.provider }

// Process executes a task with a fresh conversation (system prompt + user message).
func (a *BaseAgent) Process(ctx context.Context, task string) (*AgentResult, error) {
	return a.ProcessWithMessages(ctx, task, nil)
}

// ProcessWithMessages processes a task with optional existing conversation history.
func (a *BaseAgent) ProcessWithMessages(ctx context.Context, task string, history []llm.Message) (*AgentResult, error) {
	start := time.Now()

	// Build message list: system prompt + history + user task
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.SystemMessage(a.systemPrompt))
	messages = append(messages, history...)
	messages = append(messages, llm.UserMessage(task))

	a.log.Debug().Str("agent", a.name).Int("history", len(history)).Int("tools", len(a.tools)).Msg("processing task")

	resp, finalMsgs, err := llm.RunToolLoop(ctx, a.provider, a.registry, messages, a.tools, a.opts, a.maxToolIter)
	if err != nil {
		return &AgentResult{
			AgentName: a.name,
			Role:      a.role,
			Error:     err.Error(),
			Duration:  time.Since(start),
			Messages:  finalMsgs,
		}, err
	}

	// Count tool calls from the conversation
	toolCallCount := 0
	for _, msg := range finalMsgs {
		toolCallCount += len(msg.ToolCalls)
	}

	result := &AgentResult{
		AgentName: a.name,
		Role:      a.role,
		Content:   resp.Content,
		ToolCalls: toolCallCount,
		Tokens:    resp.Usage.TotalTokens,
		Duration:  time.Since(start),
		Messages:  append(finalMsgs, llm.AssistantMessage(resp.Content)),
	}

	a.log.Info().
		Str("agent", a.name).
		Int("tool_calls", toolCallCount).
		Int("tokens", result.Tokens).
		Dur("duration", result.Duration).
		Msg("task complete")

	return result, nil
}

package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/seenimoa/mercadobr/internal/agent/prompts"
	"github.com/seenimoa/mercadobr/internal/llm"
	"github.com/seenimoa/mercadobr/internal/logging"
)

// Chat errors.
var (
	ErrChatDisabled  = errors.New("agent: chat model not configured")
	ErrEmptyQuestion = errors.New("agent: empty question")
)

// ChatDisabledMessage is shown in place of the chat when no model is configured.
const ChatDisabledMessage = "O modelo de chat não está configurado. O chatbot estará desabilitado até que a chave seja configurada."

// DefaultChatTemperature is used when ChatConfig.Temperature is zero.
const DefaultChatTemperature = 0.4

// Exchange is one question/answer pair of a chat session.
type Exchange struct {
	Question string    `json:"pergunta"`
	Answer   string    `json:"resposta"`
	At       time.Time `json:"at"`
}

// ChatConfig configures the dashboard chat.
type ChatConfig struct {
	Provider    llm.LLMProvider // nil disables the chat
	Temperature float64
	MaxTokens   int
	MaxMessages int // transcript window per session
	Logger      *logging.Logger
}

type chatSession struct {
	mu        sync.Mutex
	memory    *Memory
	exchanges []Exchange
}

// Chat answers dashboard questions with the virtual economist persona.
// Every session keeps its own transcript, replayed as prior turns on each
// question.
type Chat struct {
	agent       *BaseAgent
	maxMessages int
	log         *logging.Logger

	mu       sync.Mutex
	sessions map[string]*chatSession
}

// NewChat creates the chat. A nil provider yields a disabled chat.
func NewChat(cfg ChatConfig) *Chat {
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultChatTemperature
	}
	c := &Chat{
		maxMessages: cfg.MaxMessages,
		log:         cfg.Logger.With("chat"),
		sessions:    make(map[string]*chatSession),
	}
	if cfg.Provider != nil {
		c.agent = NewBaseAgent(BaseAgentConfig{
			Name:         prompts.AgentChatbot,
			Role:         prompts.RoleChatbot,
			SystemPrompt: prompts.ChatSystemPrompt,
			Provider:     cfg.Provider,
			ChatOptions:  &llm.ChatOptions{Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens},
			Logger:       cfg.Logger,
		})
	}
	return c
}

// Enabled reports whether a chat model is configured.
func (c *Chat) Enabled() bool { return c.agent != nil }

func (c *Chat) session(id string, create bool) *chatSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[id]
	if !ok && create {
		s = &chatSession{memory: NewMemory(c.maxMessages)}
		c.sessions[id] = s
	}
	return s
}

// Ask sends a question in the given session and returns the answer. The
// session's transcript only grows when the model answers.
func (c *Chat) Ask(ctx context.Context, sessionID, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	if !c.Enabled() {
		return "", ErrChatDisabled
	}

	s := c.session(sessionID, true)
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := c.agent.ProcessWithMessages(ctx, question, s.memory.Messages())
	if err != nil {
		c.log.Warn().Err(err).Str("session", sessionID).Msg("chat request failed")
		return "", err
	}

	s.memory.AddAll([]llm.Message{llm.UserMessage(question), llm.AssistantMessage(res.Content)})
	s.exchanges = append(s.exchanges, Exchange{Question: question, Answer: res.Content, At: time.Now()})
	if keep := s.memory.Size() / 2; len(s.exchanges) > keep {
		s.exchanges = append([]Exchange(nil), s.exchanges[len(s.exchanges)-keep:]...)
	}
	return res.Content, nil
}

// History returns the session's exchanges, oldest first.
func (c *Chat) History(sessionID string) []Exchange {
	s := c.session(sessionID, false)
	if s == nil {
		return []Exchange{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Exchange, len(s.exchanges))
	copy(out, s.exchanges)
	return out
}

// Reset drops the session's transcript.
func (c *Chat) Reset(sessionID string) {
	c.mu.Lock()
	delete(c.sessions, sessionID)
	c.mu.Unlock()
}

// Sessions returns the number of live sessions.
func (c *Chat) Sessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

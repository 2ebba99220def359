package assistant

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAssistantNotFound = errors.New("assistant not found")
	ErrEmptyName         = errors.New("empty assistant name")
	ErrEmptyModelID      = errors.New("empty model id")
	ErrUnknownProvider   = errors.New("unknown provider")
)

// Provider identifies the upstream inference vendor.
type Provider string

const (
	ProviderOpenAI   Provider = "openai"
	ProviderDeepSeek Provider = "deepseek"
)

func ParseProvider(raw string) (Provider, error) {
	switch Provider(raw) {
	case ProviderOpenAI:
		return ProviderOpenAI, nil
	case ProviderDeepSeek:
		return ProviderDeepSeek, nil
	default:
		return "", ErrUnknownProvider
	}
}

// Assistant is an operator-authored configuration snapshot: which model to
// call, how to prompt it, and which sampling knobs to send. Conversations
// bind to an assistant at creation time.
type Assistant interface {
	ID() uuid.UUID
	Name() string
	Provider() Provider
	ModelID() string
	SystemPrompt() string
	Temperature() *float64
	TopP() *float64
	MaxOutputTokens() *int64
	FrequencyPenalty() *float64
	PresencePenalty() *float64
	StopSequences() []string
	// ResponseFormat is "text" or "json_object"; empty means provider default.
	ResponseFormat() string
	// ReasoningEffort is "low", "medium" or "high" for reasoning-family
	// models; empty means provider default.
	ReasoningEffort() string
	ContentFilterEnabled() bool
	// KnowledgeBaseID is the provider-side assistant id backing retrieval
	// turns. Empty means plain chat completions.
	KnowledgeBaseID() string
	HistoryWindow() int
	Enabled() bool
	CreatedAt() time.Time
	UpdatedAt() time.Time
}

type assistantImpl struct {
	id                   uuid.UUID
	name                 string
	provider             Provider
	modelID              string
	systemPrompt         string
	temperature          *float64
	topP                 *float64
	maxOutputTokens      *int64
	frequencyPenalty     *float64
	presencePenalty      *float64
	stopSequences        []string
	responseFormat       string
	reasoningEffort      string
	contentFilterEnabled bool
	knowledgeBaseID      string
	historyWindow        int
	enabled              bool
	createdAt            time.Time
	updatedAt            time.Time
}

func New(name string, provider Provider, modelID string, opts ...Option) (Assistant, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if modelID == "" {
		return nil, ErrEmptyModelID
	}
	if _, err := ParseProvider(string(provider)); err != nil {
		return nil, err
	}

	a := &assistantImpl{
		id:        uuid.New(),
		name:      name,
		provider:  provider,
		modelID:   modelID,
		enabled:   true,
		createdAt: time.Now(),
		updatedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

type Option func(*assistantImpl)

func WithID(id uuid.UUID) Option {
	return func(a *assistantImpl) {
		if id != uuid.Nil {
			a.id = id
		}
	}
}

func WithSystemPrompt(prompt string) Option {
	return func(a *assistantImpl) {
		a.systemPrompt = prompt
	}
}

func WithTemperature(t *float64) Option {
	return func(a *assistantImpl) {
		a.temperature = t
	}
}

func WithTopP(p *float64) Option {
	return func(a *assistantImpl) {
		a.topP = p
	}
}

func WithMaxOutputTokens(n *int64) Option {
	return func(a *assistantImpl) {
		a.maxOutputTokens = n
	}
}

func WithFrequencyPenalty(p *float64) Option {
	return func(a *assistantImpl) {
		a.frequencyPenalty = p
	}
}

func WithPresencePenalty(p *float64) Option {
	return func(a *assistantImpl) {
		a.presencePenalty = p
	}
}

func WithStopSequences(stop []string) Option {
	return func(a *assistantImpl) {
		a.stopSequences = stop
	}
}

func WithResponseFormat(format string) Option {
	return func(a *assistantImpl) {
		a.responseFormat = format
	}
}

func WithReasoningEffort(effort string) Option {
	return func(a *assistantImpl) {
		a.reasoningEffort = effort
	}
}

func WithContentFilter(enabled bool) Option {
	return func(a *assistantImpl) {
		a.contentFilterEnabled = enabled
	}
}

func WithKnowledgeBaseID(id string) Option {
	return func(a *assistantImpl) {
		a.knowledgeBaseID = id
	}
}

func WithHistoryWindow(n int) Option {
	return func(a *assistantImpl) {
		if n > 0 {
			a.historyWindow = n
		}
	}
}

func WithEnabled(enabled bool) Option {
	return func(a *assistantImpl) {
		a.enabled = enabled
	}
}

func WithCreatedAt(t time.Time) Option {
	return func(a *assistantImpl) {
		if !t.IsZero() {
			a.createdAt = t
		}
	}
}

func WithUpdatedAt(t time.Time) Option {
	return func(a *assistantImpl) {
		if !t.IsZero() {
			a.updatedAt = t
		}
	}
}

func (a *assistantImpl) ID() uuid.UUID              { return a.id }
func (a *assistantImpl) Name() string               { return a.name }
func (a *assistantImpl) Provider() Provider         { return a.provider }
func (a *assistantImpl) ModelID() string            { return a.modelID }
func (a *assistantImpl) SystemPrompt() string       { return a.systemPrompt }
func (a *assistantImpl) Temperature() *float64      { return a.temperature }
func (a *assistantImpl) TopP() *float64             { return a.topP }
func (a *assistantImpl) MaxOutputTokens() *int64    { return a.maxOutputTokens }
func (a *assistantImpl) FrequencyPenalty() *float64 { return a.frequencyPenalty }
func (a *assistantImpl) PresencePenalty() *float64  { return a.presencePenalty }
func (a *assistantImpl) StopSequences() []string    { return a.stopSequences }
func (a *assistantImpl) ResponseFormat() string     { return a.responseFormat }
func (a *assistantImpl) ReasoningEffort() string    { return a.reasoningEffort }
func (a *assistantImpl) ContentFilterEnabled() bool { return a.contentFilterEnabled }
func (a *assistantImpl) KnowledgeBaseID() string    { return a.knowledgeBaseID }
func (a *assistantImpl) HistoryWindow() int         { return a.historyWindow }
func (a *assistantImpl) Enabled() bool              { return a.enabled }
func (a *assistantImpl) CreatedAt() time.Time       { return a.createdAt }
func (a *assistantImpl) UpdatedAt() time.Time       { return a.updatedAt }

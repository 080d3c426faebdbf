package filter

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/schmidt-silas/mem0-for-owui/pkg/errors"
	"github.com/schmidt-silas/mem0-for-owui/pkg/memory"
)

// Context block markers prepended to the latest user message.
const (
	contextHeader = "[Memory Context]"
	messageHeader = "[Current Message]"
)

// Toggle messages shown to the operator.
const (
	activatedMessage   = "Mem0 has been activated and is now processing messages."
	deactivatedMessage = "Mem0 has been deactivated."
)

// MemoryClient is the subset of the memory client the hooks depend on
type MemoryClient interface {
	Search(ctx context.Context, query, userID string, limit int) ([]memory.Record, error)
	Add(ctx context.Context, content, userID string, metadata map[string]any) (string, error)
}

// ClientFactory constructs the memory client on first use
type ClientFactory func(ctx context.Context) (MemoryClient, error)

type clientState int

const (
	clientUninitialized clientState = iota
	clientReady
	clientFailed
)

/*
Filter is the message-augmentation pipeline. The only state shared between
concurrent hook invocations is the lazily constructed memory client; its
construction is serialized and a failed attempt is sticky for the process
lifetime.
*/
type Filter struct {
	valves   Valves
	notifier Notifier
	factory  ClientFactory

	mu      sync.Mutex
	enabled bool
	state   clientState
	client  MemoryClient
	lastErr error
}

// Option configures a Filter
type Option func(*Filter)

// WithNotifier injects the status event sink
func WithNotifier(n Notifier) Option {
	return func(f *Filter) {
		f.notifier = n
	}
}

// WithClientFactory replaces the default memory client constructor.
// Tests use this to substitute fakes and fault injectors.
func WithClientFactory(factory ClientFactory) Option {
	return func(f *Filter) {
		f.factory = factory
	}
}

// New creates a filter with clamped valves. The memory client is not
// constructed until the first hook invocation needs it.
func New(valves Valves, opts ...Option) *Filter {
	f := &Filter{
		valves:   valves.Clamp(),
		notifier: NoopNotifier{},
		enabled:  true,
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.factory == nil {
		f.factory = defaultFactory(f.valves)
	}

	return f
}

func defaultFactory(valves Valves) ClientFactory {
	return func(ctx context.Context) (MemoryClient, error) {
		return memory.New(ctx, memory.Config{
			QdrantHost:     valves.QdrantHost,
			QdrantPort:     valves.QdrantPort,
			Collection:     valves.Collection,
			Embedder:       valves.Embedder,
			EmbeddingModel: valves.EmbeddingModel,
			OllamaHost:     valves.OllamaHost,
			Timeout:        valves.Timeout,
		})
	}
}

// Meta describes the filter to the host UI, including the toggle icon
type Meta struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Priority    int    `json:"priority"`
	Enabled     bool   `json:"enabled"`
}

// Meta returns the host-facing description of this filter
func (f *Filter) Meta() Meta {
	return Meta{
		ID:          "mem0_integration",
		Name:        "Mem0 Integration",
		Description: "Integrates mem0 with Qdrant and Ollama for advanced memory management.",
		Icon:        "brain-circuit",
		Priority:    f.valves.Priority,
		Enabled:     f.Enabled(),
	}
}

// Valves returns the operator settings the filter was built with
func (f *Filter) Valves() Valves {
	return f.valves
}

// Enabled reports whether the pipeline is active
func (f *Filter) Enabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled
}

// SetEnabled turns the pipeline on or off
func (f *Filter) SetEnabled(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled = enabled
}

// Toggle flips the enabled flag and returns the operator-facing message
func (f *Filter) Toggle() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.enabled = !f.enabled

	if f.enabled {
		return activatedMessage
	}
	return deactivatedMessage
}

// LastError returns the sticky construction error, if any
func (f *Filter) LastError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

/*
ensureClient returns the memory client, constructing it on first call.
Construction is single-flight: the lock is held across the attempt so
concurrent first calls observe exactly one outcome. A failed attempt is
never retried.
*/
func (f *Filter) ensureClient(ctx context.Context) MemoryClient {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state {
	case clientReady:
		return f.client
	case clientFailed:
		return nil
	}

	client, err := f.factory(ctx)
	if err != nil {
		f.state = clientFailed
		f.lastErr = errors.New(errors.KindConstruction, "filter.ensureClient", err)
		log.Error("memory client construction failed, filter is now inert", "error", err)
		return nil
	}

	f.state = clientReady
	f.client = client
	return client
}

/*
Inlet runs before the conversation is sent to the model. It retrieves the
user's relevant memories, prepends them to the latest message and records
the original message. The body is always returned, whatever happens.
*/
func (f *Filter) Inlet(ctx context.Context, body *Body, user *User) *Body {
	if !f.Enabled() {
		return body
	}

	settings := user.Settings()
	if !settings.Enabled {
		return body
	}

	last := body.LastMessage()
	if last == nil {
		return body
	}

	client := f.ensureClient(ctx)
	if client == nil {
		f.notify(ctx, "Memory is not configured", true)
		return body
	}

	userID := user.Identity()
	original := last.Content

	f.notify(ctx, "Searching memories...", false)

	callCtx, cancel := context.WithTimeout(ctx, f.valves.Timeout)
	defer cancel()

	records, err := client.Search(callCtx, original, userID, f.valves.TopK)
	if err != nil {
		log.Error("memory search failed", "user", userID, "error",
			errors.New(errors.KindStore, "filter.Inlet", err))
		f.notify(ctx, fmt.Sprintf("Memory error: %v", err), true)
		return body
	}

	if len(records) > 0 {
		last.Content = buildContext(records, original)
	}

	// The raw, pre-augmentation text is what gets remembered.
	if _, err := client.Add(callCtx, original, userID, addMetadata(settings)); err != nil {
		log.Error("memory add failed", "user", userID, "error",
			errors.New(errors.KindStore, "filter.Inlet", err))
		f.notify(ctx, fmt.Sprintf("Memory error: %v", err), true)
		return body
	}

	f.notify(ctx, fmt.Sprintf("Recalled %d memories", len(records)), true)

	return body
}

/*
Outlet runs after the model replied. If the latest message is from the
assistant it is recorded as a memory. Failures are logged and swallowed;
no status event is required on this path.
*/
func (f *Filter) Outlet(ctx context.Context, body *Body, user *User) *Body {
	if !f.Enabled() {
		return body
	}

	settings := user.Settings()
	if !settings.Enabled {
		return body
	}

	last := body.LastMessage()
	if last == nil || last.Role != RoleAssistant {
		return body
	}

	client := f.ensureClient(ctx)
	if client == nil {
		return body
	}

	userID := user.Identity()

	callCtx, cancel := context.WithTimeout(ctx, f.valves.Timeout)
	defer cancel()

	if _, err := client.Add(callCtx, last.Content, userID, addMetadata(settings)); err != nil {
		log.Error("memory add failed", "user", userID, "error",
			errors.New(errors.KindStore, "filter.Outlet", err))
	}

	return body
}

func (f *Filter) notify(ctx context.Context, description string, done bool) {
	f.notifier.Notify(ctx, StatusEvent{
		Type:        "status",
		Description: description,
		Done:        done,
	})
}

func addMetadata(settings UserValves) map[string]any {
	metadata := map[string]any{"source": "chat"}
	if settings.Tag != "" {
		metadata["tag"] = settings.Tag
	}
	return metadata
}

func buildContext(records []memory.Record, original string) string {
	var b strings.Builder

	b.WriteString(contextHeader)
	b.WriteString("\n")

	for _, record := range records {
		b.WriteString("- ")
		b.WriteString(record.Content)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(messageHeader)
	b.WriteString("\n")
	b.WriteString(original)

	return b.String()
}

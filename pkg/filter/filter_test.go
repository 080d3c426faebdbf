package filter

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	filtererrors "github.com/schmidt-silas/mem0-for-owui/pkg/errors"
	"github.com/schmidt-silas/mem0-for-owui/pkg/memory"
)

type searchCall struct {
	query  string
	userID string
	limit  int
}

type addCall struct {
	content  string
	userID   string
	metadata map[string]any
}

type fakeMemoryClient struct {
	mu            sync.Mutex
	searchResults []memory.Record
	searchErr     error
	addErr        error
	searchCalls   []searchCall
	addCalls      []addCall
}

func (c *fakeMemoryClient) Search(ctx context.Context, query, userID string, limit int) ([]memory.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searchCalls = append(c.searchCalls, searchCall{query: query, userID: userID, limit: limit})
	if c.searchErr != nil {
		return nil, c.searchErr
	}
	return c.searchResults, nil
}

func (c *fakeMemoryClient) Add(ctx context.Context, content, userID string, metadata map[string]any) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addCalls = append(c.addCalls, addCall{content: content, userID: userID, metadata: metadata})
	if c.addErr != nil {
		return "", c.addErr
	}
	return "mem-1", nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []StatusEvent
}

func (n *fakeNotifier) Notify(ctx context.Context, event StatusEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *fakeNotifier) descriptions() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	for i, ev := range n.events {
		out[i] = ev.Description
	}
	return out
}

func staticFactory(client MemoryClient) ClientFactory {
	return func(ctx context.Context) (MemoryClient, error) {
		return client, nil
	}
}

func userBody(content string) *Body {
	return &Body{
		Messages: []Message{
			{Role: RoleUser, Content: content},
		},
	}
}

func TestInletPassThroughWhenDisabled(t *testing.T) {
	client := &fakeMemoryClient{}
	f := New(DefaultValves(), WithClientFactory(staticFactory(client)))
	f.SetEnabled(false)

	body := userBody("hello")
	out := f.Inlet(context.Background(), body, &User{ID: "alice"})

	assert.Equal(t, "hello", out.Messages[0].Content)
	assert.Empty(t, client.searchCalls)
	assert.Empty(t, client.addCalls)

	// Calling twice on a disabled pipeline yields the same result as once.
	out = f.Inlet(context.Background(), out, &User{ID: "alice"})
	assert.Equal(t, "hello", out.Messages[0].Content)
	assert.Empty(t, client.searchCalls)
}

func TestInletPassThroughWhenUserDisabled(t *testing.T) {
	client := &fakeMemoryClient{}
	f := New(DefaultValves(), WithClientFactory(staticFactory(client)))

	body := userBody("hello")
	user := &User{ID: "alice", Valves: map[string]any{"memory_enabled": false}}
	out := f.Inlet(context.Background(), body, user)

	assert.Equal(t, "hello", out.Messages[0].Content)
	assert.Empty(t, client.searchCalls)
	assert.Empty(t, client.addCalls)
}

func TestInletEmptyBodyPassThrough(t *testing.T) {
	client := &fakeMemoryClient{}
	f := New(DefaultValves(), WithClientFactory(staticFactory(client)))

	out := f.Inlet(context.Background(), &Body{}, &User{ID: "alice"})

	assert.Empty(t, out.Messages)
	assert.Empty(t, client.searchCalls)
}

func TestInletStickyConstructionFailure(t *testing.T) {
	var attempts int
	notifier := &fakeNotifier{}

	f := New(DefaultValves(),
		WithNotifier(notifier),
		WithClientFactory(func(ctx context.Context) (MemoryClient, error) {
			attempts++
			return nil, errors.New("qdrant unreachable")
		}),
	)

	body := userBody("hello")
	out := f.Inlet(context.Background(), body, &User{ID: "alice"})
	assert.Equal(t, "hello", out.Messages[0].Content)

	// Subsequent calls must not retry construction.
	f.Inlet(context.Background(), out, &User{ID: "alice"})
	f.Outlet(context.Background(), out, &User{ID: "alice"})
	assert.Equal(t, 1, attempts)

	require.NotEmpty(t, notifier.events)
	assert.Equal(t, "Memory is not configured", notifier.events[0].Description)
	assert.True(t, notifier.events[0].Done)

	require.Error(t, f.LastError())
	assert.Equal(t, filtererrors.KindConstruction, filtererrors.KindOf(f.LastError()))
}

func TestInletSingleFlightConstruction(t *testing.T) {
	var (
		mu       sync.Mutex
		attempts int
	)

	client := &fakeMemoryClient{}
	f := New(DefaultValves(), WithClientFactory(func(ctx context.Context) (MemoryClient, error) {
		mu.Lock()
		attempts++
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		return client, nil
	}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.Inlet(context.Background(), userBody("hello"), &User{ID: "alice"})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, attempts)
}

func TestInletAugmentsWithContext(t *testing.T) {
	client := &fakeMemoryClient{
		searchResults: []memory.Record{
			{Content: "User likes blue"},
		},
	}
	notifier := &fakeNotifier{}
	f := New(DefaultValves(), WithNotifier(notifier), WithClientFactory(staticFactory(client)))

	body := userBody("What's my favorite color?")
	out := f.Inlet(context.Background(), body, &User{ID: "alice"})

	want := "[Memory Context]\n- User likes blue\n\n[Current Message]\nWhat's my favorite color?"
	assert.Equal(t, want, out.Messages[0].Content)

	// The raw pre-augmentation text is stored.
	require.Len(t, client.addCalls, 1)
	assert.Equal(t, "What's my favorite color?", client.addCalls[0].content)
	assert.Equal(t, "alice", client.addCalls[0].userID)

	require.Len(t, client.searchCalls, 1)
	assert.Equal(t, "What's my favorite color?", client.searchCalls[0].query)
	assert.Equal(t, 3, client.searchCalls[0].limit)

	// searching -> done status sequence
	require.Len(t, notifier.events, 2)
	assert.False(t, notifier.events[0].Done)
	assert.True(t, notifier.events[1].Done)
	assert.Equal(t, "status", notifier.events[0].Type)
}

func TestInletContextBlockPreservesResultOrder(t *testing.T) {
	client := &fakeMemoryClient{
		searchResults: []memory.Record{
			{Content: "first"},
			{Content: "second"},
			{Content: "third"},
		},
	}
	f := New(DefaultValves(), WithClientFactory(staticFactory(client)))

	out := f.Inlet(context.Background(), userBody("query"), &User{ID: "alice"})

	want := "[Memory Context]\n- first\n- second\n- third\n\n[Current Message]\nquery"
	assert.Equal(t, want, out.Messages[0].Content)
}

func TestInletEmptyResultsStillAdds(t *testing.T) {
	client := &fakeMemoryClient{}
	f := New(DefaultValves(), WithClientFactory(staticFactory(client)))

	out := f.Inlet(context.Background(), userBody("remember me"), &User{ID: "alice"})

	assert.Equal(t, "remember me", out.Messages[0].Content)
	require.Len(t, client.addCalls, 1)
	assert.Equal(t, "remember me", client.addCalls[0].content)
}

func TestInletSearchErrorEmitsErrorStatus(t *testing.T) {
	client := &fakeMemoryClient{searchErr: errors.New("connection reset")}
	notifier := &fakeNotifier{}
	f := New(DefaultValves(), WithNotifier(notifier), WithClientFactory(staticFactory(client)))

	out := f.Inlet(context.Background(), userBody("hello"), &User{ID: "alice"})

	assert.Equal(t, "hello", out.Messages[0].Content)
	assert.Empty(t, client.addCalls)

	found := false
	for _, desc := range notifier.descriptions() {
		if strings.Contains(strings.ToLower(desc), "error") {
			found = true
		}
	}
	assert.True(t, found, "expected a status event mentioning the error")
}

func TestInletAddErrorKeepsPartialAugmentation(t *testing.T) {
	client := &fakeMemoryClient{
		searchResults: []memory.Record{{Content: "known fact"}},
		addErr:        errors.New("write failed"),
	}
	notifier := &fakeNotifier{}
	f := New(DefaultValves(), WithNotifier(notifier), WithClientFactory(staticFactory(client)))

	out := f.Inlet(context.Background(), userBody("hello"), &User{ID: "alice"})

	// Not transactional: the augmentation that happened before the failure
	// stays in place.
	assert.Contains(t, out.Messages[0].Content, "known fact")

	found := false
	for _, desc := range notifier.descriptions() {
		if strings.Contains(strings.ToLower(desc), "error") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestInletAnonymousUserDefaultIdentity(t *testing.T) {
	client := &fakeMemoryClient{}
	f := New(DefaultValves(), WithClientFactory(staticFactory(client)))

	f.Inlet(context.Background(), userBody("hello"), nil)

	require.Len(t, client.searchCalls, 1)
	assert.Equal(t, "default", client.searchCalls[0].userID)
}

func TestInletTagMetadata(t *testing.T) {
	client := &fakeMemoryClient{}
	f := New(DefaultValves(), WithClientFactory(staticFactory(client)))

	user := &User{ID: "alice", Valves: map[string]any{"tag": "work"}}
	f.Inlet(context.Background(), userBody("hello"), user)

	require.Len(t, client.addCalls, 1)
	assert.Equal(t, "work", client.addCalls[0].metadata["tag"])
}

func TestOutletStoresAssistantMessage(t *testing.T) {
	client := &fakeMemoryClient{}
	f := New(DefaultValves(), WithClientFactory(staticFactory(client)))

	body := &Body{Messages: []Message{
		{Role: RoleUser, Content: "What's my favorite color?"},
		{Role: RoleAssistant, Content: "Blue is great!"},
	}}

	out := f.Outlet(context.Background(), body, &User{ID: "alice"})

	assert.Equal(t, "Blue is great!", out.Messages[1].Content)
	require.Len(t, client.addCalls, 1)
	assert.Equal(t, "Blue is great!", client.addCalls[0].content)
	assert.Equal(t, "alice", client.addCalls[0].userID)
	assert.Empty(t, client.searchCalls)
}

func TestOutletIgnoresNonAssistantMessage(t *testing.T) {
	client := &fakeMemoryClient{}
	f := New(DefaultValves(), WithClientFactory(staticFactory(client)))

	out := f.Outlet(context.Background(), userBody("just a user message"), &User{ID: "alice"})

	assert.Equal(t, "just a user message", out.Messages[0].Content)
	assert.Empty(t, client.addCalls)
}

func TestOutletSwallowsAddError(t *testing.T) {
	client := &fakeMemoryClient{addErr: errors.New("write failed")}
	f := New(DefaultValves(), WithClientFactory(staticFactory(client)))

	body := &Body{Messages: []Message{{Role: RoleAssistant, Content: "reply"}}}
	out := f.Outlet(context.Background(), body, &User{ID: "alice"})

	assert.Equal(t, "reply", out.Messages[0].Content)
}

func TestToggle(t *testing.T) {
	f := New(DefaultValves(), WithClientFactory(staticFactory(&fakeMemoryClient{})))

	assert.True(t, f.Enabled())

	message := f.Toggle()
	assert.False(t, f.Enabled())
	assert.Equal(t, "Mem0 has been deactivated.", message)

	message = f.Toggle()
	assert.True(t, f.Enabled())
	assert.Equal(t, "Mem0 has been activated and is now processing messages.", message)
}

func TestMeta(t *testing.T) {
	valves := DefaultValves()
	valves.Priority = 7
	f := New(valves, WithClientFactory(staticFactory(&fakeMemoryClient{})))

	meta := f.Meta()
	assert.Equal(t, "mem0_integration", meta.ID)
	assert.Equal(t, "brain-circuit", meta.Icon)
	assert.Equal(t, 7, meta.Priority)
	assert.True(t, meta.Enabled)
}

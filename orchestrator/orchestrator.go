package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/staffmesh/core"
	"github.com/hupe1980/staffmesh/logging"
	"github.com/hupe1980/staffmesh/rag"
	"github.com/hupe1980/staffmesh/tracker"
)

// State is the orchestrator's position in handling one request.
type State string

// Request handling states. Responded and AwaitingClarification are
// terminal.
const (
	StateReceiving             State = "receiving"
	StateClassifying           State = "classifying"
	StateDelegating            State = "delegating"
	StateAwaitingResults       State = "awaiting_results"
	StateSynthesizing          State = "synthesizing"
	StateResponded             State = "responded"
	StateAwaitingClarification State = "awaiting_clarification"
)

// Request is one inbound chat request.
type Request struct {
	Message        string
	ConversationID string
	UserID         string
	UseRAG         bool
	DocumentIDs    []string
}

// Response is the single reply produced for a request.
type Response struct {
	ConversationID        string          `json:"conversation_id"`
	MessageID             string          `json:"message_id"`
	Response              string          `json:"response"`
	Agent                 string          `json:"agent"`
	Thoughts              []string        `json:"thoughts"`
	ToolCalls             []core.ToolCall `json:"tool_calls"`
	IsFinal               bool            `json:"is_final"`
	NeedsClarification    bool            `json:"needs_clarification"`
	ClarificationQuestion string          `json:"clarification_question,omitempty"`
	Sources               []core.Source   `json:"sources"`
}

// EventType tags an observer event.
type EventType string

// Observer event types.
const (
	EventState         EventType = "state"
	EventAgentStarted  EventType = "agent_started"
	EventAgentFinished EventType = "agent_finished"
)

// Event is one observer notification emitted while handling a request.
type Event struct {
	Type      EventType
	State     State
	AgentName string
	Output    *core.AgentOutput
	Err       error
}

// HandleOptions carry per-request options.
type HandleOptions struct {
	// Observer receives state transitions and per-agent results, e.g. for
	// streaming transports. Called synchronously; keep it fast.
	Observer func(Event)
}

// Options configure an Orchestrator.
type Options struct {
	// Classifier decides delegation; defaults to the keyword classifier.
	Classifier Classifier
	// HistoryWindow is how many recent messages feed classification and
	// agent context.
	HistoryWindow int
	// MemoryK and MemorySimilarity shape per-agent memory retrieval.
	MemoryK          int
	MemorySimilarity float64
	// InvocationTimeout bounds each single agent invocation.
	InvocationTimeout time.Duration
	// MaxDelegations caps agent invocations per request.
	MaxDelegations int
	// SummaryRefresh refreshes the conversation's rolling summary
	// asynchronously after a successful response.
	SummaryRefresh bool
	// Clock overrides time.Now for tests.
	Clock func() time.Time
	// Logger receives orchestration reporting.
	Logger logging.Logger
}

// Orchestrator is the top-level request handler. Requests on one
// conversation are serialized; different conversations proceed in
// parallel.
type Orchestrator struct {
	registry      *Registry
	conversations core.ConversationStore
	memories      core.MemoryStore
	executions    *tracker.Tracker
	retrieval     *rag.Pipeline
	gateway       core.Gateway
	locks         *conversationLocks
	opts          Options

	// background waits on summary refresh goroutines; tests can drain it.
	background sync.WaitGroup
}

// New creates an orchestrator. retrieval may be nil when document
// retrieval is not wired.
func New(
	registry *Registry,
	conversations core.ConversationStore,
	memories core.MemoryStore,
	executions *tracker.Tracker,
	retrieval *rag.Pipeline,
	gw core.Gateway,
	optFns ...func(o *Options),
) *Orchestrator {
	opts := Options{
		Classifier:        NewKeywordClassifier(),
		HistoryWindow:     10,
		MemoryK:           3,
		MemorySimilarity:  0.5,
		InvocationTimeout: 120 * time.Second,
		MaxDelegations:    10,
		Clock:             time.Now,
		Logger:            logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Orchestrator{
		registry:      registry,
		conversations: conversations,
		memories:      memories,
		executions:    executions,
		retrieval:     retrieval,
		gateway:       gw,
		locks:         newConversationLocks(),
		opts:          opts,
	}
}

// Agents returns the registry read model.
func (o *Orchestrator) Agents() []core.RegisteredAgent {
	return o.registry.List()
}

// Handle runs one request through the state machine and returns the
// single reply. Exactly one assistant message is appended per call.
func (o *Orchestrator) Handle(ctx context.Context, req *Request, optFns ...func(ho *HandleOptions)) (*Response, error) {
	var ho HandleOptions
	for _, fn := range optFns {
		fn(&ho)
	}
	emit := func(e Event) {
		if ho.Observer != nil {
			ho.Observer(e)
		}
	}
	emit(Event{Type: EventState, State: StateReceiving})

	if strings.TrimSpace(req.Message) == "" {
		return nil, core.NewValidationError("message", "must not be empty")
	}

	conv, err := o.resolveConversation(ctx, req)
	if err != nil {
		return nil, err
	}

	release := o.locks.acquire(conv.ID)
	defer release()

	userMsg := &core.Message{
		ConversationID: conv.ID,
		Role:           core.RoleUser,
		Content:        req.Message,
	}
	if err := o.conversations.AppendMessage(ctx, userMsg); err != nil {
		return nil, err
	}

	history, err := o.recentHistory(ctx, conv.ID)
	if err != nil {
		return nil, err
	}

	emit(Event{Type: EventState, State: StateClassifying})
	classification, err := o.opts.Classifier.Classify(ctx, req.Message, history, o.registry.All())
	if err != nil {
		return nil, err
	}

	if classification.NeedsClarification {
		emit(Event{Type: EventState, State: StateAwaitingClarification})
		return o.respond(ctx, conv.ID, &Response{
			Response:              classification.ClarificationQuestion,
			IsFinal:               false,
			NeedsClarification:    true,
			ClarificationQuestion: classification.ClarificationQuestion,
		}, nil)
	}

	candidates := classification.Candidates
	if len(candidates) > o.opts.MaxDelegations {
		candidates = candidates[:o.opts.MaxDelegations]
	}

	queryEmbedding := o.embedQuery(ctx, req.Message)
	documentText, sources := o.retrieveDocuments(ctx, req)

	emit(Event{Type: EventState, State: StateDelegating})
	results := o.delegate(ctx, conv.ID, req.Message, history, candidates,
		queryEmbedding, documentText, sources, emit)

	emit(Event{Type: EventState, State: StateSynthesizing})
	o.persistProposals(ctx, conv.ID, results)

	resp, msg := o.synthesize(ctx, req.Message, results, sources)
	final, err := o.respond(ctx, conv.ID, resp, msg)
	if err != nil {
		return nil, err
	}
	emit(Event{Type: EventState, State: StateResponded})

	if o.opts.SummaryRefresh {
		o.background.Add(1)
		go func() {
			defer o.background.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := o.RefreshSummary(sctx, conv.ID); err != nil {
				o.opts.Logger.Warn("summary refresh failed", "conversation_id", conv.ID, "error", err)
			}
		}()
	}
	return final, nil
}

// resolveConversation loads the target conversation or creates one titled
// with the leading part of the message.
func (o *Orchestrator) resolveConversation(ctx context.Context, req *Request) (*core.Conversation, error) {
	if req.ConversationID != "" {
		return o.conversations.Get(ctx, req.ConversationID)
	}
	return o.conversations.Create(ctx, req.UserID, titleFromMessage(req.Message))
}

func titleFromMessage(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) > 50 {
		return string(runes[:50])
	}
	return s
}

// recentHistory returns the trailing window of the message sequence,
// excluding the message just appended for this request.
func (o *Orchestrator) recentHistory(ctx context.Context, conversationID string) ([]*core.Message, error) {
	msgs, err := o.conversations.Messages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if len(msgs) > 0 {
		msgs = msgs[:len(msgs)-1]
	}
	if len(msgs) > o.opts.HistoryWindow {
		msgs = msgs[len(msgs)-o.opts.HistoryWindow:]
	}
	return msgs, nil
}

// embedQuery embeds the request for memory retrieval. Gateway failure
// degrades the request (no memory context) instead of failing it.
func (o *Orchestrator) embedQuery(ctx context.Context, message string) []float32 {
	emb, err := o.gateway.Embed(ctx, message)
	if err != nil {
		o.opts.Logger.Warn("query embedding failed, continuing without memory context", "error", err)
		return nil
	}
	return emb
}

// retrieveDocuments runs the retrieval pipeline when requested. Failures
// degrade to an empty context.
func (o *Orchestrator) retrieveDocuments(ctx context.Context, req *Request) (string, []core.Source) {
	if !req.UseRAG || o.retrieval == nil {
		return "", nil
	}
	text, sources, err := o.retrieval.Query(ctx, req.Message, func(qo *rag.QueryOptions) {
		qo.DocumentIDs = req.DocumentIDs
	})
	if err != nil {
		o.opts.Logger.Warn("document retrieval failed, continuing without document context", "error", err)
		return "", nil
	}
	return text, sources
}

// invocationResult pairs a candidate with its outcome.
type invocationResult struct {
	agentName string
	output    *core.AgentOutput
	err       error
}

// delegate runs the candidate set in dependency stages. Agents within a
// stage run concurrently; a sibling failure never aborts the stage.
func (o *Orchestrator) delegate(
	ctx context.Context,
	conversationID, task string,
	history []*core.Message,
	candidates []Candidate,
	queryEmbedding []float32,
	documentText string,
	sources []core.Source,
	emit func(Event),
) []invocationResult {
	stages := buildStages(candidates)
	var results []invocationResult
	var priorOutputs []*core.AgentOutput

	for _, stage := range stages {
		stageResults := make([]invocationResult, len(stage))
		var wg sync.WaitGroup
		for i, cand := range stage {
			emit(Event{Type: EventAgentStarted, AgentName: cand.Agent.Name()})
			wg.Add(1)
			go func() {
				defer wg.Done()
				stageResults[i] = o.invokeTracked(ctx, conversationID, task, history,
					cand.Agent, queryEmbedding, documentText, sources, priorOutputs)
			}()
		}
		emit(Event{Type: EventState, State: StateAwaitingResults})
		wg.Wait()

		for _, r := range stageResults {
			emit(Event{Type: EventAgentFinished, AgentName: r.agentName, Output: r.output, Err: r.err})
			results = append(results, r)
			if r.err == nil {
				priorOutputs = append(priorOutputs, r.output)
			}
		}
	}
	return results
}

// invokeTracked wraps one agent invocation with execution tracking and
// the per-invocation timeout.
func (o *Orchestrator) invokeTracked(
	ctx context.Context,
	conversationID, task string,
	history []*core.Message,
	a core.Agent,
	queryEmbedding []float32,
	documentText string,
	sources []core.Source,
	priorOutputs []*core.AgentOutput,
) invocationResult {
	execID, err := o.executions.Begin(ctx, conversationID, a.Name(), "delegation",
		map[string]any{"task": task})
	if err != nil {
		return invocationResult{agentName: a.Name(), err: err}
	}

	ictx, cancel := context.WithTimeout(ctx, o.opts.InvocationTimeout)
	defer cancel()

	inv := &core.Invocation{
		ConversationID: conversationID,
		Task:           task,
		History:        history,
		Memories:       o.retrieveMemories(ictx, a.Name(), queryEmbedding),
		DocumentText:   documentText,
		Sources:        sources,
		PriorOutputs:   priorOutputs,
	}

	output, err := a.Invoke(ictx, inv)
	if err != nil {
		execErr := &core.AgentExecutionError{AgentName: a.Name(), Err: err}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			execErr.Err = fmt.Errorf("invocation cancelled: %w", err)
		}
		if failErr := o.executions.Fail(context.WithoutCancel(ctx), execID, execErr.Error()); failErr != nil {
			o.opts.Logger.Error("mark execution failed", "execution_id", execID, "error", failErr)
		}
		o.opts.Logger.Warn("agent invocation failed", "agent", a.Name(), "error", err)
		return invocationResult{agentName: a.Name(), err: execErr}
	}

	if err := o.executions.Complete(context.WithoutCancel(ctx), execID, map[string]any{
		"response":    output.Message,
		"tokens_used": output.TokensUsed,
	}); err != nil {
		o.opts.Logger.Error("mark execution completed", "execution_id", execID, "error", err)
	}
	return invocationResult{agentName: a.Name(), output: output}
}

// retrieveMemories loads an agent's relevant memories for the query.
func (o *Orchestrator) retrieveMemories(ctx context.Context, agentName string, queryEmbedding []float32) []core.MemoryHit {
	if queryEmbedding == nil {
		return nil
	}
	hits, err := o.memories.Retrieve(ctx, agentName, queryEmbedding, o.opts.MemoryK, o.opts.MemorySimilarity)
	if err != nil {
		o.opts.Logger.Warn("memory retrieval failed", "agent", agentName, "error", err)
		return nil
	}
	return hits
}

// persistProposals embeds and stores the memory proposals of successful
// invocations. Failures are logged, never fatal.
func (o *Orchestrator) persistProposals(ctx context.Context, conversationID string, results []invocationResult) {
	for _, r := range results {
		if r.err != nil {
			continue
		}
		for _, p := range r.output.Memories {
			emb, err := o.gateway.Embed(ctx, p.Content)
			if err != nil {
				o.opts.Logger.Warn("memory proposal embedding failed", "agent", r.agentName, "error", err)
				continue
			}
			_, err = o.memories.Store(ctx, r.agentName, core.NormalizeMemoryKind(string(p.Kind)),
				p.Content, p.Importance, emb, func(so *core.StoreMemoryOptions) {
					so.ConversationID = conversationID
					so.Summary = p.Summary
				})
			if err != nil {
				o.opts.Logger.Warn("memory proposal store failed", "agent", r.agentName, "error", err)
			}
		}
	}
}

// synthesize merges invocation results into the reply. A lone success
// passes through; multiple successes merge via the completion model with
// attribution preserved; zero successes produce a degraded reply.
func (o *Orchestrator) synthesize(ctx context.Context, task string, results []invocationResult, sources []core.Source) (*Response, *core.Message) {
	var succeeded []*core.AgentOutput
	for _, r := range results {
		if r.err == nil {
			succeeded = append(succeeded, r.output)
		}
	}

	resp := &Response{IsFinal: true, Sources: sources}
	msg := &core.Message{Role: core.RoleAssistant}

	switch len(succeeded) {
	case 0:
		resp.Response = "I wasn't able to complete that request right now. Please try again."
		msg.Content = resp.Response
		return resp, msg
	case 1:
		out := succeeded[0]
		resp.Response = out.Message
		resp.Agent = out.AgentName
		resp.Thoughts = out.Thoughts
		resp.ToolCalls = out.ToolCalls
		msg.Content = out.Message
		msg.AgentName = out.AgentName
		msg.Thoughts = out.Thoughts
		msg.ToolCalls = out.ToolCalls
		msg.TokensUsed = out.TokensUsed
		return resp, msg
	}

	merged, tokens := o.mergeOutputs(ctx, task, succeeded)
	var names []string
	var thoughts []string
	var toolCalls []core.ToolCall
	for _, out := range succeeded {
		names = append(names, out.AgentName)
		for _, th := range out.Thoughts {
			thoughts = append(thoughts, fmt.Sprintf("[%s] %s", out.AgentName, th))
		}
		toolCalls = append(toolCalls, out.ToolCalls...)
		tokens += out.TokensUsed
	}
	resp.Response = merged
	resp.Agent = strings.Join(names, "+")
	resp.Thoughts = thoughts
	resp.ToolCalls = toolCalls
	msg.Content = merged
	msg.AgentName = resp.Agent
	msg.Thoughts = thoughts
	msg.ToolCalls = toolCalls
	msg.TokensUsed = tokens
	return resp, msg
}

// mergeOutputs asks the completion model to weave multiple agent replies
// into one. On gateway failure it falls back to attributed concatenation.
func (o *Orchestrator) mergeOutputs(ctx context.Context, task string, outputs []*core.AgentOutput) (string, int) {
	var b strings.Builder
	for _, out := range outputs {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", out.AgentName, out.Message)
	}
	attributed := strings.TrimRight(b.String(), "\n")

	prompt := fmt.Sprintf(
		"Multiple assistants worked on the request %q. Combine their results below into one coherent reply without losing information.\n\n%s",
		task, attributed)
	completion, err := o.gateway.Complete(ctx, prompt, "")
	if err != nil {
		o.opts.Logger.Warn("synthesis completion failed, falling back to concatenation", "error", err)
		return attributed, 0
	}
	return completion.Text, completion.TokensUsed
}

// respond appends the single assistant message and finalizes the
// response object.
func (o *Orchestrator) respond(ctx context.Context, conversationID string, resp *Response, msg *core.Message) (*Response, error) {
	if msg == nil {
		msg = &core.Message{Role: core.RoleAssistant, Content: resp.Response}
	}
	msg.ConversationID = conversationID
	if err := o.conversations.AppendMessage(ctx, msg); err != nil {
		return nil, err
	}
	resp.ConversationID = conversationID
	resp.MessageID = msg.ID
	if resp.Thoughts == nil {
		resp.Thoughts = []string{}
	}
	if resp.ToolCalls == nil {
		resp.ToolCalls = []core.ToolCall{}
	}
	if resp.Sources == nil {
		resp.Sources = []core.Source{}
	}
	return resp, nil
}

// RefreshSummary regenerates the conversation's rolling summary from its
// trailing messages.
func (o *Orchestrator) RefreshSummary(ctx context.Context, conversationID string) error {
	msgs, err := o.conversations.Messages(ctx, conversationID)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	if len(msgs) > o.opts.HistoryWindow*2 {
		msgs = msgs[len(msgs)-o.opts.HistoryWindow*2:]
	}

	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	completion, err := o.gateway.Complete(ctx,
		"Summarize the following conversation in at most two sentences.", b.String())
	if err != nil {
		return err
	}
	return o.conversations.SetSummary(ctx, conversationID, completion.Text)
}

// Executions returns the execution history of a conversation, oldest
// first.
func (o *Orchestrator) Executions(ctx context.Context, conversationID string) ([]*core.TaskExecution, error) {
	return o.executions.History(ctx, conversationID)
}

// DeleteConversation removes a conversation with its owned records:
// messages and executions cascade, memory references are nulled.
func (o *Orchestrator) DeleteConversation(ctx context.Context, conversationID string) error {
	if err := o.conversations.Delete(ctx, conversationID); err != nil {
		return err
	}
	if err := o.executions.Purge(ctx, conversationID); err != nil {
		return err
	}
	return o.memories.UnlinkConversation(ctx, conversationID)
}

// Wait blocks until background work (summary refreshes) has drained.
// Mainly for tests and clean shutdown.
func (o *Orchestrator) Wait() {
	o.background.Wait()
}

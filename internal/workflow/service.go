package workflow

import (
	"context"
	"time"

	errx "github.com/green-credit-copilot/server/internal/core/error"
	"github.com/green-credit-copilot/server/internal/documents"
	"github.com/green-credit-copilot/server/internal/model"
	"github.com/green-credit-copilot/server/internal/stream"
	"github.com/green-credit-copilot/server/internal/workflow/graph"
	"github.com/green-credit-copilot/server/internal/workflow/graph/nodes"
	logx "github.com/green-credit-copilot/server/pkg/logger"
)

// TurnRequest is one inbound chat turn. CustomTools are request-scoped tool
// definitions that apply to this turn only, on top of the owner's persisted
// enabled tools; a request tool shadows a persisted one with the same name.
// MCPServers are accepted for forward compatibility and recorded verbatim.
type TurnRequest struct {
	SessionID   string                   `json:"session_id"`
	Query       string                   `json:"query"`
	Attachments []model.Attachment       `json:"attachments,omitempty"`
	CustomTools []model.ToolDefinition   `json:"custom_tools,omitempty"`
	MCPServers  []model.ServerDefinition `json:"mcp_servers,omitempty"`
	OwnerID     string                   `json:"-"`
}

// DonePayload terminates every stream, including failed ones.
type DonePayload struct {
	SessionID string `json:"session_id"`
	Completed bool   `json:"completed"`
}

// Service orchestrates one conversational turn: session resolution,
// attachment resolution, graph execution, event multiplexing and transcript
// persistence.
type Service struct {
	runner   graph.Runner
	sessions model.SessionRepository
	docs     *documents.Service
	config   model.ConfigRepository
	titler   *TitleGenerator
	buffer   int
}

func NewService(runner graph.Runner, sessions model.SessionRepository, docs *documents.Service, config model.ConfigRepository, titler *TitleGenerator) *Service {
	return &Service{
		runner:   runner,
		sessions: sessions,
		docs:     docs,
		config:   config,
		titler:   titler,
		buffer:   64,
	}
}

// OpenSession resolves the request's session, creating one when the id is
// empty and enforcing ownership when it is not.
func (s *Service) OpenSession(ctx context.Context, ownerID, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return s.sessions.Create(ctx, ownerID, "")
	}
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.OwnerID != ownerID {
		return nil, errx.PermissionDenied()
	}
	return sess, nil
}

// Run executes one turn and returns the stream of ready-to-write SSE frames.
// The channel closes after the done frame. Cancelling ctx aborts the run;
// an aborted turn persists nothing.
func (s *Service) Run(ctx context.Context, req TurnRequest) (<-chan []byte, error) {
	sess, err := s.OpenSession(ctx, req.OwnerID, req.SessionID)
	if err != nil {
		return nil, err
	}

	firstTurn := false
	if n, err := s.sessions.TurnCount(ctx, sess.ID); err == nil {
		firstTurn = n == 0
	}

	input := &model.TurnInput{
		SessionID: sess.ID,
		Query:     req.Query,
		Documents: s.docs.Resolve(ctx, req.OwnerID, req.Attachments),
	}
	var persisted []model.ToolDefinition
	if s.config != nil {
		persisted, err = s.config.EnabledTools(ctx, req.OwnerID)
		if err != nil {
			logx.Warn().Err(err).Str("owner", req.OwnerID).Msg("failed to load dynamic tool definitions")
			persisted = nil
		}
	}
	input.ToolDefs = mergeToolDefs(req.CustomTools, persisted)

	out := make(chan []byte, s.buffer)
	go s.runTurn(ctx, sess.ID, req, input, firstTurn, out)
	return out, nil
}

// mergeToolDefs combines the turn's inline tool definitions with the owner's
// persisted enabled ones. Inline definitions win on name collision and count
// as enabled for this turn regardless of the flag in the payload.
func mergeToolDefs(inline, persisted []model.ToolDefinition) []model.ToolDefinition {
	if len(inline) == 0 {
		return persisted
	}
	defs := make([]model.ToolDefinition, 0, len(inline)+len(persisted))
	seen := make(map[string]struct{}, len(inline))
	for _, d := range inline {
		if d.Name == "" {
			continue
		}
		if _, ok := seen[d.Name]; ok {
			continue
		}
		seen[d.Name] = struct{}{}
		d.Enabled = true
		defs = append(defs, d)
	}
	for _, d := range persisted {
		if _, ok := seen[d.Name]; ok {
			continue
		}
		defs = append(defs, d)
	}
	return defs
}

func (s *Service) runTurn(ctx context.Context, sessionID string, req TurnRequest, input *model.TurnInput, firstTurn bool, out chan<- []byte) {
	defer close(out)

	em := stream.NewEmitter(s.buffer)
	mux := stream.NewMux()

	type invokeOutcome struct {
		result *model.TurnResult
		err    error
	}
	done := make(chan invokeOutcome, 1)
	go func() {
		defer em.Close()
		res, err := s.runner.Invoke(stream.NewContext(ctx, em), input)
		done <- invokeOutcome{result: res, err: err}
	}()

	aborted := false
	for ev := range em.Events() {
		frame, ok := mux.Process(ev)
		if !ok {
			continue
		}
		select {
		case out <- frame:
		case <-ctx.Done():
			aborted = true
			em.Abandon()
		}
		if aborted {
			break
		}
	}
	// Drain whatever the graph still pushed after an abort.
	for range em.Events() {
	}

	outcome := <-done
	if aborted || ctx.Err() != nil {
		logx.Info().Str("session_id", sessionID).Msg("turn aborted by client")
		return
	}

	if outcome.err != nil {
		logx.Error().Err(outcome.err).Str("session_id", sessionID).Msg("workflow run failed")
		if frame, ok := mux.Process(stream.Event{Type: stream.EventError, Payload: "处理请求时发生错误，请稍后重试。"}); ok {
			out <- frame
		}
		if frame, ok := mux.DoneFrame(DonePayload{SessionID: sessionID, Completed: false}); ok {
			out <- frame
		}
		return
	}

	result := outcome.result
	// Terminal reports produced without streaming (the auditor's missing-
	// material guidance) still reach the client as answer text.
	if result != nil && result.FinalReport != "" && mux.Answer() == "" {
		if frame, ok := mux.Process(stream.Event{
			Type:    stream.EventAnswerDelta,
			Node:    nodes.NodeChat,
			Payload: stream.DeltaPayload{Delta: result.FinalReport},
		}); ok {
			out <- frame
		}
	}

	s.persistTurns(ctx, sessionID, req, result, mux)

	if frame, ok := mux.DoneFrame(DonePayload{SessionID: sessionID, Completed: true}); ok {
		out <- frame
	}

	if firstTurn && s.titler != nil {
		s.titler.GenerateAsync(sessionID, req.Query)
	}
}

// persistTurns appends the user and assistant turns after a normal
// completion. Persistence failure is logged, not surfaced; the client already
// has the full answer.
func (s *Service) persistTurns(ctx context.Context, sessionID string, req TurnRequest, result *model.TurnResult, mux *stream.Mux) {
	now := time.Now().UTC()
	userTurn := model.Turn{
		Role:        "user",
		Content:     req.Query,
		Attachments: req.Attachments,
		CreatedAt:   now,
	}
	if err := s.sessions.AppendTurn(ctx, sessionID, userTurn); err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to persist user turn")
		return
	}

	content := mux.Answer()
	if content == "" && result != nil {
		content = result.FinalReport
	}
	var thoughts []string
	if result != nil {
		thoughts = append(thoughts, result.Trace...)
	}
	if t := mux.Thoughts(); t != "" {
		thoughts = append(thoughts, t)
	}
	for _, tool := range mux.ToolLog() {
		thoughts = append(thoughts, "工具调用 "+tool.Name+"："+truncate(tool.Output, 500))
	}

	assistantTurn := model.Turn{
		Role:      "assistant",
		Content:   content,
		Thoughts:  thoughts,
		CreatedAt: now,
	}
	if err := s.sessions.AppendTurn(ctx, sessionID, assistantTurn); err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to persist assistant turn")
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

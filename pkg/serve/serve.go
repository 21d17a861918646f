// Package serve implements the JSON-RPC channel between the wizard core and
// a remote UI (e.g. an editor webview). It communicates over stdio using
// newline-delimited JSON-RPC 2.0 messages: inbound wizard/* methods are
// dispatched off a registration table, outbound ui/* requests carry response
// correlation with a timeout.
package serve

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/sushiljain1989/yeoman-ui/pkg/flow"
	"github.com/sushiljain1989/yeoman-ui/pkg/prompt"
	"github.com/sushiljain1989/yeoman-ui/pkg/runner"
	"github.com/sushiljain1989/yeoman-ui/pkg/session"
)

// Message is a JSON-RPC 2.0 message (request, notification or response).
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int            `json:"id,omitempty"` // nil for notifications
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// StartParams are the parameters for wizard/start.
type StartParams struct {
	Flow    string `json:"flow"`
	Workdir string `json:"workdir"`
}

// BackParams are the parameters for wizard/back.
type BackParams struct {
	Index   int            `json:"index"`
	Partial prompt.Answers `json:"partial,omitempty"`
}

// EvaluateParams are the parameters for wizard/evaluate.
type EvaluateParams struct {
	Question string `json:"question"`
	Method   string `json:"method"`
	Args     []any  `json:"args,omitempty"`
}

// showPromptParams is the payload of the outbound ui/showPrompt request.
type showPromptParams struct {
	Name      string                        `json:"name"`
	Questions []prompt.SerializableQuestion `json:"questions"`
}

// Server wires the session orchestrator and run supervisor to a JSON-RPC
// peer. It implements session.UI: prompts travel to the peer as server →
// client requests and block until the peer responds or the prompt timeout
// fires.
type Server struct {
	reader  *bufio.Scanner
	writer  io.Writer
	writeMu sync.Mutex
	logger  *slog.Logger

	handlers map[string]func(msg *Message)

	// Outbound request correlation
	mu      sync.Mutex
	nextID  int
	pending map[int]chan *Message

	orch *session.Orchestrator
	sup  *runner.Supervisor

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a server on the given transport streams (stdio in practice).
func New(r io.Reader, w io.Writer, logger *slog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	s := &Server{
		reader:  scanner,
		writer:  w,
		logger:  logger,
		pending: make(map[int]chan *Message),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.handlers = map[string]func(msg *Message){
		"wizard/start":    s.handleStart,
		"wizard/back":     s.handleBack,
		"wizard/evaluate": s.handleEvaluate,
		"wizard/status":   s.handleStatus,
	}
	s.orch = session.New(s, prompt.NewRegistry(), logger)
	return s
}

// Run reads messages until the transport closes and dispatches them.
func (s *Server) Run() error {
	defer s.cancel()

	for s.reader.Scan() {
		line := s.reader.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			s.sendError(nil, -32700, fmt.Sprintf("parse error: %v", err))
			continue
		}
		s.dispatch(&msg)
	}
	return s.reader.Err()
}

// dispatch routes one message: responses to their waiting caller, requests
// to the registered handler.
func (s *Server) dispatch(msg *Message) {
	if msg.Method == "" && msg.ID != nil {
		// Response to an outbound ui/* request.
		s.mu.Lock()
		ch, ok := s.pending[*msg.ID]
		if ok {
			delete(s.pending, *msg.ID)
		}
		s.mu.Unlock()
		if ok {
			ch <- msg
		} else {
			s.logger.Debug("dropping response for unknown request", "id", *msg.ID)
		}
		return
	}

	if msg.Method == "shutdown" {
		s.cancel()
		s.sendResult(msg.ID, map[string]string{"status": "shutting down"})
		return
	}

	handler, ok := s.handlers[msg.Method]
	if !ok {
		s.sendError(msg.ID, -32601, fmt.Sprintf("unknown method: %s", msg.Method))
		return
	}
	handler(msg)
}

// ─── Inbound handlers ───────────────────────────────────────────────

// handleStart validates the flow and launches a fresh logical session.
func (s *Server) handleStart(msg *Message) {
	var params StartParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendError(msg.ID, -32602, fmt.Sprintf("invalid params: %v", err))
		return
	}

	fl, errs := flow.ValidateFile(params.Flow)
	if flow.HasErrors(errs) {
		s.sendError(msg.ID, -32603, fmt.Sprintf("validation failed: %v", errs[0]))
		return
	}

	eng := flow.NewEngine(fl)
	s.sup = runner.New(eng, s.orch, runner.Config{
		Workdir: params.Workdir,
		UI:      s,
		Logger:  s.logger,
		OnDone: func(out runner.Outcome) {
			s.sendEvent("wizard/done", map[string]any{
				"ok":      out.OK,
				"kind":    string(out.Kind),
				"message": out.Message,
				"workdir": out.Workdir,
				"runId":   out.RunID,
			})
		},
	})
	s.sup.Start(s.ctx)
	s.sendResult(msg.ID, map[string]string{"generator": eng.Name(), "status": "started"})
}

// handleBack rewinds to an earlier recorded step.
func (s *Server) handleBack(msg *Message) {
	var params BackParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendError(msg.ID, -32602, fmt.Sprintf("invalid params: %v", err))
		return
	}
	// Capture before the rewind: the restarted run may park its own
	// ui/showPrompt concurrently, and that one must stay pending.
	stale := s.pendingIDs()
	if err := s.orch.GoBack(params.Index, params.Partial); err != nil {
		s.sendError(msg.ID, -32603, err.Error())
		return
	}
	s.abandonPending(stale)
	s.sendResult(msg.ID, map[string]any{"status": "replaying", "index": params.Index})
}

// handleEvaluate invokes a dynamic question behavior on behalf of the UI.
func (s *Server) handleEvaluate(msg *Message) {
	var params EvaluateParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendError(msg.ID, -32602, fmt.Sprintf("invalid params: %v", err))
		return
	}
	result, err := s.orch.EvaluateBehavior(params.Question, params.Method, params.Args)
	if err != nil {
		s.sendError(msg.ID, -32603, err.Error())
		return
	}
	s.sendResult(msg.ID, map[string]any{"result": result})
}

// handleStatus reports session progress.
func (s *Server) handleStatus(msg *Message) {
	records := s.orch.History()
	steps := make([]string, len(records))
	for i, rec := range records {
		steps[i] = rec.Name
	}
	s.sendResult(msg.ID, map[string]any{
		"steps":  steps,
		"replay": s.orch.ReplayState().String(),
	})
}

// ─── session.UI implementation ──────────────────────────────────────

// ShowPrompt sends the question set to the peer and blocks for its answers.
func (s *Server) ShowPrompt(ctx context.Context, questions []prompt.SerializableQuestion, stepName string) (prompt.Answers, error) {
	result, err := s.call(ctx, "ui/showPrompt", showPromptParams{Name: stepName, Questions: questions})
	if err != nil {
		return nil, err
	}
	var answers prompt.Answers
	if err := json.Unmarshal(result, &answers); err != nil {
		return nil, fmt.Errorf("unmarshal answers: %w", err)
	}
	return answers, nil
}

// SetPromptList announces the session's ordered step names.
func (s *Server) SetPromptList(steps []string) {
	s.sendEvent("ui/setPromptList", map[string]any{"steps": steps})
}

// SetState pushes a state update notification.
func (s *Server) SetState(update map[string]any) {
	s.sendEvent("ui/setState", update)
}

// ─── Wire helpers ───────────────────────────────────────────────────

// call sends a server → client request and waits for the correlated
// response or ctx expiry.
func (s *Server) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	ch := make(chan *Message, 1)
	s.pending[id] = ch
	s.mu.Unlock()

	s.send(&Message{JSONRPC: "2.0", ID: &id, Method: method, Params: data})

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, fmt.Errorf("%s: [%d] %s", method, resp.Error.Code, resp.Error.Message)
		}
		return resp.Result, nil
	case <-ctx.Done():
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", method, ctx.Err())
	case <-s.ctx.Done():
		return nil, fmt.Errorf("%s: transport closed", method)
	}
}

// pendingIDs snapshots the ids of outbound requests still awaiting a
// response.
func (s *Server) pendingIDs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	return ids
}

// abandonPending unblocks the callers parked on the given request ids. A
// late response from the peer for an abandoned id is dropped by dispatch.
func (s *Server) abandonPending(ids []int) {
	for _, id := range ids {
		s.mu.Lock()
		ch, ok := s.pending[id]
		if ok {
			delete(s.pending, id)
		}
		s.mu.Unlock()
		if ok {
			ch <- &Message{Error: &RPCError{Code: -32800, Message: "step abandoned by back-navigation"}}
		}
	}
}

func (s *Server) sendResult(id *int, result any) {
	data, err := json.Marshal(result)
	if err != nil {
		s.sendError(id, -32603, fmt.Sprintf("marshal result: %v", err))
		return
	}
	s.send(&Message{JSONRPC: "2.0", ID: id, Result: data})
}

func (s *Server) sendError(id *int, code int, message string) {
	s.send(&Message{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message}})
}

func (s *Server) sendEvent(method string, params any) {
	data, err := json.Marshal(params)
	if err != nil {
		s.logger.Error("marshal event", "method", method, "err", err)
		return
	}
	s.send(&Message{JSONRPC: "2.0", Method: method, Params: data})
}

func (s *Server) send(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("marshal message", "err", err)
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.writer.Write(data)
	s.writer.Write([]byte("\n"))
}

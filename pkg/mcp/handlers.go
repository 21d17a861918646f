package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/sushiljain1989/yeoman-ui/pkg/flow"
	"github.com/sushiljain1989/yeoman-ui/pkg/prompt"
	"github.com/sushiljain1989/yeoman-ui/pkg/runner"
	"github.com/sushiljain1989/yeoman-ui/pkg/session"
)

// errAbandoned unwinds a superseded ask after a wizard_back call.
var errAbandoned = errors.New("mcp: step abandoned")

// service holds one wizard session driven through tool calls.
type service struct {
	logger *slog.Logger

	mu   sync.Mutex
	ui   *bridgeUI
	orch *session.Orchestrator
	sup  *runner.Supervisor
}

func newService(logger *slog.Logger) *service {
	return &service{logger: logger}
}

// HandleValidate implements the wizard_validate tool.
func (s *service) HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}

	fl, errs := flow.ValidateFile(path)
	if flow.HasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}
	return textResult(fmt.Sprintf("✓ flow %s is valid (%d steps)", fl.Meta.Name, len(fl.Steps))), nil
}

// HandleSchema implements the wizard_schema tool.
func (s *service) HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := flow.GenerateJSONSchema()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// HandleStart implements the wizard_start tool: validate, launch a fresh
// session and block until the first question set (or the outcome) arrives.
func (s *service) HandleStart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	workdir, _ := args["workdir"].(string)
	if path == "" || workdir == "" {
		return errorResult("path and workdir arguments are required"), nil
	}

	fl, errs := flow.ValidateFile(path)
	if flow.HasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}

	s.mu.Lock()
	ui := newBridgeUI()
	s.ui = ui
	s.orch = session.New(ui, prompt.NewRegistry(), s.logger)
	s.sup = runner.New(flow.NewEngine(fl), s.orch, runner.Config{
		Workdir: workdir,
		UI:      ui,
		Logger:  s.logger,
		OnDone:  ui.finish,
	})
	sup := s.sup
	s.mu.Unlock()

	sup.Start(context.Background())
	return s.waitNext(ctx, ui)
}

// HandleAnswer implements the wizard_answer tool.
func (s *service) HandleAnswer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	ui := s.ui
	s.mu.Unlock()
	if ui == nil {
		return errorResult("no session — call wizard_start first"), nil
	}

	answers := prompt.Answers{}
	if raw, ok := req.GetArguments()["answers"].(map[string]any); ok {
		for k, v := range raw {
			answers[k] = v
		}
	}

	if err := ui.answer(answers); err != nil {
		return errorResult(err.Error()), nil
	}
	return s.waitNext(ctx, ui)
}

// HandleBack implements the wizard_back tool. After the rewind the engine
// restarts and replays silently; the next visible prompt is the step the
// caller landed on.
func (s *service) HandleBack(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	ui := s.ui
	orch := s.orch
	s.mu.Unlock()
	if orch == nil {
		return errorResult("no session — call wizard_start first"), nil
	}

	args := req.GetArguments()
	idx, ok := args["index"].(float64)
	if !ok {
		return errorResult("index argument is required"), nil
	}
	partial := prompt.Answers{}
	if raw, ok := args["partial"].(map[string]any); ok {
		for k, v := range raw {
			partial[k] = v
		}
	}

	stale := ui.pending()
	if err := orch.GoBack(int(idx), partial); err != nil {
		return errorResult(err.Error()), nil
	}
	ui.abandon(stale)
	return s.waitNext(ctx, ui)
}

// HandleStatus implements the wizard_status tool.
func (s *service) HandleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	orch := s.orch
	s.mu.Unlock()
	if orch == nil {
		return errorResult("no session — call wizard_start first"), nil
	}

	records := orch.History()
	steps := make([]map[string]any, len(records))
	for i, rec := range records {
		steps[i] = map[string]any{"index": i, "name": rec.Name, "answers": rec.Answers}
	}
	return jsonResult(map[string]any{
		"steps":  steps,
		"replay": orch.ReplayState().String(),
	})
}

// waitNext blocks until the session surfaces the next question set or its
// terminal outcome.
func (s *service) waitNext(ctx context.Context, ui *bridgeUI) (*mcp.CallToolResult, error) {
	p, out, err := ui.next(ctx)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if out != nil {
		payload := map[string]any{"status": "done", "ok": out.OK, "workdir": out.Workdir}
		if !out.OK {
			payload["status"] = "failed"
			payload["kind"] = string(out.Kind)
			payload["message"] = out.Message
		}
		return jsonResult(payload)
	}
	return jsonResult(map[string]any{
		"status":    "awaiting_answers",
		"step":      p.name,
		"questions": p.questions,
	})
}

// ─── Result helpers ─────────────────────────────────────────────────

func textResult(text string) *mcp.CallToolResult {
	return mcp.NewToolResultText(text)
}

func errorResult(text string) *mcp.CallToolResult {
	return mcp.NewToolResultError(text)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func formatErrors(errs []*flow.ValidationError) string {
	out := ""
	for _, e := range errs {
		if out != "" {
			out += "\n"
		}
		out += e.Error()
	}
	return out
}

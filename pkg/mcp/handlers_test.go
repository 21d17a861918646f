package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/sushiljain1989/yeoman-ui/pkg/logging"
)

func toolRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content type %T, want text", res.Content[0])
	}
	return tc.Text
}

func writeFlowFile(t *testing.T) string {
	t.Helper()
	doc := `
version: wizard/v1
meta:
  name: webapp
steps:
  - questions:
      - name: projectName
        type: input
        message: Project name?
  - questions:
      - name: dbKind
        type: list
        message: Database?
        choices: [sqlite, postgres]
outputs:
  - path: README.md
    content: "# {{.projectName}} ({{.dbKind}})"
`
	path := filepath.Join(t.TempDir(), "flow.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestHandleValidate_MissingPath(t *testing.T) {
	svc := newService(logging.NewNop())
	result, err := svc.HandleValidate(context.Background(), toolRequest(map[string]any{}))
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("expected error for missing path")
	}
}

func TestHandleValidate_GoodFlow(t *testing.T) {
	svc := newService(logging.NewNop())
	result, err := svc.HandleValidate(context.Background(), toolRequest(map[string]any{"path": writeFlowFile(t)}))
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatalf("validation failed: %s", resultText(t, result))
	}
	if !strings.Contains(resultText(t, result), "valid") {
		t.Errorf("result = %q", resultText(t, result))
	}
}

func TestHandleSchema(t *testing.T) {
	svc := newService(logging.NewNop())
	result, err := svc.HandleSchema(context.Background(), toolRequest(nil))
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatal("expected schema content")
	}
	if !strings.Contains(resultText(t, result), "wizard/v1") {
		t.Error("schema missing the version enum")
	}
}

func TestHandleAnswer_NoSession(t *testing.T) {
	svc := newService(logging.NewNop())
	result, err := svc.HandleAnswer(context.Background(), toolRequest(map[string]any{"answers": map[string]any{}}))
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("expected error without a session")
	}
}

// toolStatus is the decoded payload of a session tool result.
type toolStatus struct {
	Status    string `json:"status"`
	Step      string `json:"step"`
	OK        bool   `json:"ok"`
	Questions []struct {
		Name string `json:"name"`
	} `json:"questions"`
}

func decodeStatus(t *testing.T, res *mcp.CallToolResult) toolStatus {
	t.Helper()
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}
	var st toolStatus
	if err := json.Unmarshal([]byte(resultText(t, res)), &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	return st
}

// TestWizardSessionLifecycle drives a full session through tool calls:
// start, answer, navigate back, re-answer, finish.
func TestWizardSessionLifecycle(t *testing.T) {
	svc := newService(logging.NewNop())
	ctx := context.Background()
	workdir := filepath.Join(t.TempDir(), "out")

	res, err := svc.HandleStart(ctx, toolRequest(map[string]any{"path": writeFlowFile(t), "workdir": workdir}))
	if err != nil {
		t.Fatal(err)
	}
	st := decodeStatus(t, res)
	if st.Status != "awaiting_answers" || st.Step != "Project Name" {
		t.Fatalf("after start: %+v", st)
	}

	res, err = svc.HandleAnswer(ctx, toolRequest(map[string]any{
		"answers": map[string]any{"projectName": "app"},
	}))
	if err != nil {
		t.Fatal(err)
	}
	st = decodeStatus(t, res)
	if st.Step != "Db Kind" {
		t.Fatalf("after first answer: %+v", st)
	}

	// Change of mind: go back to the first step.
	res, err = svc.HandleBack(ctx, toolRequest(map[string]any{
		"index":   float64(0),
		"partial": map[string]any{"dbKind": "postgres"},
	}))
	if err != nil {
		t.Fatal(err)
	}
	st = decodeStatus(t, res)
	if st.Status != "awaiting_answers" || st.Step != "Project Name" {
		t.Fatalf("after back: %+v", st)
	}

	res, err = svc.HandleStatus(ctx, toolRequest(nil))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("status: %s", resultText(t, res))
	}

	res, err = svc.HandleAnswer(ctx, toolRequest(map[string]any{
		"answers": map[string]any{"projectName": "newapp"},
	}))
	if err != nil {
		t.Fatal(err)
	}
	st = decodeStatus(t, res)
	if st.Step != "Db Kind" {
		t.Fatalf("after re-answer: %+v", st)
	}

	res, err = svc.HandleAnswer(ctx, toolRequest(map[string]any{
		"answers": map[string]any{"dbKind": "sqlite"},
	}))
	if err != nil {
		t.Fatal(err)
	}
	st = decodeStatus(t, res)
	if st.Status != "done" || !st.OK {
		t.Fatalf("final status: %+v", st)
	}

	data, err := os.ReadFile(filepath.Join(workdir, "README.md"))
	if err != nil {
		t.Fatalf("read scaffolded output: %v", err)
	}
	if string(data) != "# newapp (sqlite)" {
		t.Errorf("output = %q", data)
	}
}

func TestHandleBack_InvalidIndex(t *testing.T) {
	svc := newService(logging.NewNop())
	ctx := context.Background()

	res, err := svc.HandleStart(ctx, toolRequest(map[string]any{"path": writeFlowFile(t), "workdir": t.TempDir()}))
	if err != nil {
		t.Fatal(err)
	}
	decodeStatus(t, res)

	// Nothing answered yet: there is no recorded step to go back to.
	res, err = svc.HandleBack(ctx, toolRequest(map[string]any{"index": float64(0)}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("expected error for back with empty history")
	}
}

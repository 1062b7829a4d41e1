package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/mindyard/internal/analyzer"
	"github.com/starford/mindyard/internal/checksum"
	"github.com/starford/mindyard/internal/distiller"
	"github.com/starford/mindyard/internal/embedding"
	"github.com/starford/mindyard/internal/insightservice"
	"github.com/starford/mindyard/internal/matcher"
	"github.com/starford/mindyard/internal/models"
	"github.com/starford/mindyard/internal/pipeline"
	"github.com/starford/mindyard/internal/sanitizer"
	"github.com/starford/mindyard/internal/testutil"
	"github.com/starford/mindyard/internal/worker"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	db := testutil.TestStore(t)
	logger := testutil.Logger()
	hasher := checksum.NewHasher("mcp-test-secret-0123456")
	san := sanitizer.New(hasher, logger, sanitizer.Policy{ConfidenceThreshold: 0.6, DetectorTimeout: time.Second})
	dis := distiller.New(distiller.Settings{
		MaxStatementLength: 160,
		SimilarityCeiling:  0.5,
		ShingleSize:        3,
		MinContentWords:    2,
		EmbedTimeout:       time.Second,
	}, embedding.NewHashEmbedder(64), hasher, logger)
	p := pipeline.New(analyzer.New(), san, dis, db, logger)
	m := matcher.New(db, matcher.Settings{EmbeddingWeight: 0.7, TopicWeight: 0.3, MinScore: 0.5, K: 10})

	svc := insightservice.NewService(db, p, m, hasher, nil, logger, insightservice.Options{
		Workers:       1,
		QueueSize:     8,
		MaxAttempts:   1,
		Backoff:       worker.Backoff{Base: time.Millisecond},
		RatePerSecond: 100,
		Burst:         10,
		MaxNoteBytes:  4096,
	})
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = svc.Stop(context.Background()) })

	return New(svc, "test")
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so we call the handlers.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "submit_note":
		result, err = srv.submitNote(ctx, req)
	case "submission_status":
		result, err = srv.submissionStatus(ctx, req)
	case "list_matches":
		result, err = srv.listMatches(ctx, req)
	case "get_insight":
		result, err = srv.getInsight(ctx, req)
	case "search_insights":
		result, err = srv.searchInsights(ctx, req)
	case "get_privacy_contract":
		result, err = srv.getPrivacyContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func submitAndWait(t *testing.T, srv *Server, user, text string) models.Submission {
	t.Helper()
	r := callTool(t, srv, "submit_note", map[string]interface{}{"user_id": user, "text": text})
	if r.IsError {
		t.Fatalf("submit_note error: %s", resultText(r))
	}
	var accepted map[string]string
	if err := json.Unmarshal([]byte(resultText(r)), &accepted); err != nil {
		t.Fatal(err)
	}
	id := accepted["submission_id"]

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		r = callTool(t, srv, "submission_status", map[string]interface{}{"submission_id": id})
		var sub models.Submission
		if err := json.Unmarshal([]byte(resultText(r)), &sub); err != nil {
			t.Fatal(err)
		}
		if sub.Status == models.SubmissionCompleted || sub.Status == models.SubmissionFailed {
			return sub
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("submission %s did not finish", id)
	return models.Submission{}
}

func TestSubmitAndMatch(t *testing.T) {
	srv := testServer(t)
	note := "Thinking about switching careers into design, and it's exciting"

	for _, user := range []string{"user-a", "user-b"} {
		if sub := submitAndWait(t, srv, user, note); sub.Status != models.SubmissionCompleted {
			t.Fatalf("%s: status = %s", user, sub.Status)
		}
	}

	r := callTool(t, srv, "list_matches", map[string]interface{}{"user_id": "user-a"})
	if r.IsError {
		t.Fatalf("list_matches error: %s", resultText(r))
	}
	var matches []models.MatchCandidate
	if err := json.Unmarshal([]byte(resultText(r)), &matches); err != nil {
		t.Fatalf("decode matches: %v (%s)", err, resultText(r))
	}
	if len(matches) == 0 {
		t.Fatal("expected a match")
	}

	r = callTool(t, srv, "get_insight", map[string]interface{}{"id": matches[0].RecordBID})
	if r.IsError {
		t.Fatalf("get_insight error: %s", resultText(r))
	}
	if strings.Contains(resultText(r), "design") {
		t.Errorf("insight leaks source text: %s", resultText(r))
	}

	r = callTool(t, srv, "search_insights", map[string]interface{}{"query": "career"})
	if r.IsError || resultText(r) == "null" {
		t.Errorf("search_insights = %q", resultText(r))
	}
}

func TestListMatches_NoneYet(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "list_matches", map[string]interface{}{"user_id": "nobody"})
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(r))
	}
	if resultText(r) != "no matches found yet" {
		t.Errorf("result = %q", resultText(r))
	}
}

func TestErrorsAreGeneric(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "get_insight", map[string]interface{}{"id": "missing"})
	if !r.IsError || resultText(r) != "not found" {
		t.Errorf("get_insight missing = %v %q", r.IsError, resultText(r))
	}

	r = callTool(t, srv, "submit_note", map[string]interface{}{"user_id": "u", "text": "   "})
	if !r.IsError || resultText(r) != "invalid request" {
		t.Errorf("blank note = %v %q", r.IsError, resultText(r))
	}

	r = callTool(t, srv, "submit_note", map[string]interface{}{"user_id": "u"})
	if !r.IsError {
		t.Error("expected error for missing text")
	}
}

func TestPrivacyContract(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "get_privacy_contract", nil)
	if !strings.Contains(resultText(r), "REJECT") {
		t.Errorf("contract missing labels")
	}

	contents, err := srv.readPrivacyContractResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != ContractURI || tc.Text != PrivacyContract {
		t.Errorf("unexpected resource contents: %+v", contents[0])
	}
}

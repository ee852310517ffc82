package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyperengineering/verdict/internal/decision"
	"github.com/hyperengineering/verdict/internal/framework"
	"github.com/hyperengineering/verdict/internal/repair"
	"github.com/hyperengineering/verdict/internal/store"
	"github.com/hyperengineering/verdict/internal/types"
)

// --- Test doubles ---

type stubAdvisor struct {
	mu           sync.Mutex
	summaryCalls int
	summaryErr   error
	quickAnswer  string
	lastQuestion string
}

func (a *stubAdvisor) Suggest(ctx context.Context, fw *framework.Framework, d *types.Decision, index int) (repair.Suggestion, error) {
	return repair.Suggestion{
		Suggestion:    "Consider " + fw.Steps[index].Title,
		PreFilledData: map[string]json.RawMessage{"decision_statement": json.RawMessage(`"Move or stay"`)},
	}, nil
}

func (a *stubAdvisor) Summarize(ctx context.Context, fw *framework.Framework, d *types.Decision) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.summaryCalls++
	if a.summaryErr != nil {
		return "", a.summaryErr
	}
	return "# Decision\nGo for it.", nil
}

func (a *stubAdvisor) QuickAdvice(ctx context.Context, question string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastQuestion = question
	return a.quickAnswer
}

type brokenStats struct{}

func (brokenStats) GetStats(ctx context.Context) (*types.StoreStats, error) {
	return nil, errors.New("database is locked")
}

type testServer struct {
	router  http.Handler
	store   *store.SQLiteStore
	advisor *stubAdvisor
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	silenceLogs(t)

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	adv := &stubAdvisor{quickAnswer: "Take the job."}
	svc := decision.NewService(s, adv, nil, 0, nil)
	h := NewHandler(svc, adv, s, Options{
		Version:                "1.2.3",
		Model:                  "gpt-4o-mini",
		JWTSecret:              testSecret,
		JWTIssuer:              testIssuer,
		ModelRequestsPerMinute: 600,
		ModelBurst:             100,
	})
	return &testServer{router: NewRouter(h), store: s, advisor: adv}
}

func (ts *testServer) do(t *testing.T, method, path, owner, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if owner != "" {
		req.Header.Set("Authorization", "Bearer "+testToken(t, owner))
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) createDecision(t *testing.T, owner string) types.Decision {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/v1/decisions", owner, `{"question":"Should I move to Lisbon?"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var d types.Decision
	if err := json.Unmarshal(w.Body.Bytes(), &d); err != nil {
		t.Fatalf("failed to decode decision: %v", err)
	}
	return d
}

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) ProblemWithErrors {
	t.Helper()
	if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %q, want application/problem+json", ct)
	}
	var p ProblemWithErrors
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("failed to decode problem: %v (body %s)", err, w.Body.String())
	}
	return p
}

const emptyStep = `{"step_data":{}}`

// --- Health / framework ---

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	ts.createDecision(t, "alice")

	w := ts.do(t, http.MethodGet, "/api/v1/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var resp types.HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode health: %v", err)
	}
	if resp.Status != "healthy" || resp.Version != "1.2.3" || resp.Model != "gpt-4o-mini" {
		t.Errorf("health = %+v", resp)
	}
	if resp.DecisionCount != 1 {
		t.Errorf("decision_count = %d, want 1", resp.DecisionCount)
	}
}

func TestHealth_StatsError(t *testing.T) {
	silenceLogs(t)
	h := NewHandler(nil, nil, brokenStats{}, Options{JWTSecret: testSecret})
	w := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if strings.Contains(w.Body.String(), "database is locked") {
		t.Error("internal error leaked to client")
	}
}

func TestGetFramework(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/v1/framework", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var fw framework.Framework
	if err := json.Unmarshal(w.Body.Bytes(), &fw); err != nil {
		t.Fatalf("failed to decode framework: %v", err)
	}
	if fw.ID != framework.PersonalID || len(fw.Steps) != 9 {
		t.Errorf("framework id = %q, steps = %d", fw.ID, len(fw.Steps))
	}
	if fw.Steps[0].Title != "Define the Decision" {
		t.Errorf("first step = %q", fw.Steps[0].Title)
	}

	if w := ts.do(t, http.MethodGet, "/api/v1/framework?id=corporate", "", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown framework status = %d, want 404", w.Code)
	}
}

// --- Auth ---

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)

	routes := []struct{ method, path string }{
		{http.MethodPost, "/api/v1/advice"},
		{http.MethodPost, "/api/v1/decisions"},
		{http.MethodGet, "/api/v1/decisions"},
		{http.MethodGet, "/api/v1/decisions/01ABC"},
		{http.MethodDelete, "/api/v1/decisions/01ABC"},
		{http.MethodGet, "/api/v1/decisions/01ABC/steps/0/suggestion"},
		{http.MethodPost, "/api/v1/decisions/01ABC/steps/0"},
		{http.MethodGet, "/api/v1/decisions/01ABC/summary"},
		{http.MethodPost, "/api/v1/decisions/01ABC/feedback"},
		{http.MethodGet, "/api/v1/decisions/01ABC/feedback"},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			w := ts.do(t, rt.method, rt.path, "", "")
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
		})
	}
}

// --- Quick advice ---

func TestQuickAdvice(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/advice", "alice", `{"question":"Should I take the job?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp types.QuickAdviceResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Decision != "Take the job." {
		t.Errorf("decision = %q", resp.Decision)
	}
	if ts.advisor.lastQuestion != "Should I take the job?" {
		t.Errorf("advisor saw %q", ts.advisor.lastQuestion)
	}

	w = ts.do(t, http.MethodPost, "/api/v1/advice", "alice", `{"question":""}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty question status = %d, want 422", w.Code)
	}
}

// --- Decisions ---

func TestCreateDecision(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/decisions", "alice", `{"question":"  Should I move?  "}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var d types.Decision
	if err := json.Unmarshal(w.Body.Bytes(), &d); err != nil {
		t.Fatal(err)
	}
	if d.ID == "" || d.Question != "Should I move?" || d.StepIndex != 0 {
		t.Errorf("decision = %+v", d)
	}
	if d.OwnerID != "alice" {
		t.Errorf("owner = %q, want alice", d.OwnerID)
	}
	if loc := w.Header().Get("Location"); loc != "/api/v1/decisions/"+d.ID {
		t.Errorf("Location = %q", loc)
	}
}

func TestCreateDecision_BadRequests(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed json", `{"question":`, http.StatusBadRequest},
		{"missing question", `{}`, http.StatusUnprocessableEntity},
		{"whitespace question", `{"question":"   "}`, http.StatusUnprocessableEntity},
		{"too long", fmt.Sprintf(`{"question":%q}`, strings.Repeat("x", 2001)), http.StatusUnprocessableEntity},
		{"unknown framework", `{"question":"Q","framework_id":"corporate"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/api/v1/decisions", "alice", tt.body)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.status, w.Body.String())
			}
			decodeProblem(t, w)
		})
	}
}

func TestCreateDecision_UnknownFrameworkNamesField(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/decisions", "alice", `{"question":"Q","framework_id":"corporate"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	p := decodeProblem(t, w)
	if len(p.Errors) != 1 || p.Errors[0].Field != "framework_id" {
		t.Errorf("errors = %+v, want one framework_id error", p.Errors)
	}
	if !strings.Contains(p.Errors[0].Message, framework.PersonalID) {
		t.Errorf("message = %q, want the allowed framework IDs", p.Errors[0].Message)
	}
}

func TestDecisionRoutes_MalformedID(t *testing.T) {
	ts := newTestServer(t)
	ts.createDecision(t, "alice")

	routes := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/api/v1/decisions/not-a-ulid", ""},
		{http.MethodDelete, "/api/v1/decisions/not-a-ulid", ""},
		{http.MethodGet, "/api/v1/decisions/not-a-ulid/steps/0/suggestion", ""},
		{http.MethodPost, "/api/v1/decisions/not-a-ulid/steps/0", emptyStep},
		{http.MethodGet, "/api/v1/decisions/not-a-ulid/summary", ""},
		{http.MethodPost, "/api/v1/decisions/not-a-ulid/feedback", `{"rating":5}`},
		{http.MethodGet, "/api/v1/decisions/not-a-ulid/feedback", ""},
		{http.MethodGet, "/api/v1/decisions/01HQZX3C4T7N5GZJ8K9M2P6R4U", ""},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			w := ts.do(t, rt.method, rt.path, "alice", rt.body)
			if w.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422 (body %s)", w.Code, w.Body.String())
			}
			p := decodeProblem(t, w)
			if len(p.Errors) != 1 || p.Errors[0].Field != "id" {
				t.Errorf("errors = %+v, want one id error", p.Errors)
			}
		})
	}
	list, err := ts.store.ListDecisions(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("alice has %d decisions, want 1 untouched", len(list))
	}
}

func TestCreateDecision_BodyTooLarge(t *testing.T) {
	ts := newTestServer(t)
	body := `{"question":"` + strings.Repeat("a", maxBodyBytes) + `"}`

	w := ts.do(t, http.MethodPost, "/api/v1/decisions", "alice", body)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

func TestListDecisions_ScopedToOwner(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/v1/decisions", "alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"decisions":[]`) {
		t.Errorf("empty list body = %s, want decisions:[]", w.Body.String())
	}

	ts.createDecision(t, "alice")
	ts.createDecision(t, "alice")
	ts.createDecision(t, "bob")

	w = ts.do(t, http.MethodGet, "/api/v1/decisions", "alice", "")
	var list types.DecisionList
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Decisions) != 2 {
		t.Errorf("alice sees %d decisions, want 2", len(list.Decisions))
	}
	for _, d := range list.Decisions {
		if d.OwnerID != "alice" {
			t.Errorf("listed decision owned by %q", d.OwnerID)
		}
	}
}

func TestGetDecision_OwnerAndMissing(t *testing.T) {
	ts := newTestServer(t)
	d := ts.createDecision(t, "alice")

	if w := ts.do(t, http.MethodGet, "/api/v1/decisions/"+d.ID, "alice", ""); w.Code != http.StatusOK {
		t.Errorf("owner status = %d, want 200", w.Code)
	}

	w := ts.do(t, http.MethodGet, "/api/v1/decisions/"+d.ID, "bob", "")
	if w.Code != http.StatusForbidden {
		t.Errorf("other owner status = %d, want 403", w.Code)
	}
	if p := decodeProblem(t, w); p.Type != "https://verdict.dev/errors/forbidden" {
		t.Errorf("type = %q", p.Type)
	}

	if w := ts.do(t, http.MethodGet, "/api/v1/decisions/01HZZZZZZZZZZZZZZZZZZZZZZZ", "alice", ""); w.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", w.Code)
	}
}

func TestDeleteDecision(t *testing.T) {
	ts := newTestServer(t)
	d := ts.createDecision(t, "alice")

	if w := ts.do(t, http.MethodDelete, "/api/v1/decisions/"+d.ID, "bob", ""); w.Code != http.StatusForbidden {
		t.Errorf("other owner delete status = %d, want 403", w.Code)
	}

	w := ts.do(t, http.MethodDelete, "/api/v1/decisions/"+d.ID, "alice", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("204 body = %q, want empty", w.Body.String())
	}
	if w := ts.do(t, http.MethodGet, "/api/v1/decisions/"+d.ID, "alice", ""); w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", w.Code)
	}
}

// --- Steps ---

func TestGetSuggestion(t *testing.T) {
	ts := newTestServer(t)
	d := ts.createDecision(t, "alice")

	w := ts.do(t, http.MethodGet, "/api/v1/decisions/"+d.ID+"/steps/0/suggestion", "alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp types.SuggestionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.StepIndex != 0 || resp.StepTitle != "Define the Decision" {
		t.Errorf("suggestion = %+v", resp)
	}
	if resp.Suggestion != "Consider Define the Decision" {
		t.Errorf("suggestion text = %q", resp.Suggestion)
	}

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"non-integer index", "/steps/two/suggestion", http.StatusBadRequest},
		{"future step", "/steps/3/suggestion", http.StatusConflict},
		{"out of range", "/steps/99/suggestion", http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodGet, "/api/v1/decisions/"+d.ID+tt.path, "alice", "")
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}

func TestSubmitStep_WalkToCompletion(t *testing.T) {
	ts := newTestServer(t)
	d := ts.createDecision(t, "alice")

	var last types.AdvanceResponse
	for i := 0; i < 9; i++ {
		w := ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/decisions/%s/steps/%d", d.ID, i), "alice", emptyStep)
		if w.Code != http.StatusOK {
			t.Fatalf("step %d status = %d, body = %s", i, w.Code, w.Body.String())
		}
		last = types.AdvanceResponse{}
		if err := json.Unmarshal(w.Body.Bytes(), &last); err != nil {
			t.Fatal(err)
		}
		if i < 8 {
			if last.Completed || last.NextStep == nil || *last.NextStep != i+1 {
				t.Fatalf("step %d response = %+v", i, last)
			}
		}
	}

	if !last.Completed {
		t.Fatal("last step did not complete the decision")
	}
	if last.Summary == "" || last.SummaryStatus != types.SummaryComplete {
		t.Errorf("final response = %+v", last)
	}
	if ts.advisor.summaryCalls != 1 {
		t.Errorf("summary calls = %d, want 1", ts.advisor.summaryCalls)
	}

	// Completed decisions reject further steps.
	w := ts.do(t, http.MethodPost, "/api/v1/decisions/"+d.ID+"/steps/8", "alice", emptyStep)
	if w.Code != http.StatusConflict {
		t.Errorf("post-completion status = %d, want 409", w.Code)
	}

	w = ts.do(t, http.MethodGet, "/api/v1/decisions/"+d.ID+"/summary", "alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("summary status = %d", w.Code)
	}
	var sum types.SummaryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &sum); err != nil {
		t.Fatal(err)
	}
	if sum.Status != types.SummaryComplete || sum.Summary != "# Decision\nGo for it." {
		t.Errorf("summary = %+v", sum)
	}
	if sum.ArchiveURL != "" {
		t.Errorf("archive_url = %q, want empty without archiving", sum.ArchiveURL)
	}
}

func TestSubmitStep_SummaryFailureStaysPending(t *testing.T) {
	ts := newTestServer(t)
	ts.advisor.summaryErr = errors.New("upstream timeout")
	d := ts.createDecision(t, "alice")

	var w *httptest.ResponseRecorder
	for i := 0; i < 9; i++ {
		w = ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/decisions/%s/steps/%d", d.ID, i), "alice", emptyStep)
		if w.Code != http.StatusOK {
			t.Fatalf("step %d status = %d", i, w.Code)
		}
	}
	var resp types.AdvanceResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Completed || resp.SummaryStatus != types.SummaryPending || resp.Summary != "" {
		t.Errorf("final response = %+v", resp)
	}

	pending, err := ts.store.GetPendingSummaries(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != d.ID {
		t.Errorf("pending = %v, want the decision queued for retry", pending)
	}
}

func TestSubmitStep_Rejections(t *testing.T) {
	ts := newTestServer(t)
	d := ts.createDecision(t, "alice")
	base := "/api/v1/decisions/" + d.ID + "/steps/"

	tests := []struct {
		name   string
		owner  string
		path   string
		body   string
		status int
	}{
		{"skips ahead", "alice", "1", emptyStep, http.StatusConflict},
		{"out of range", "alice", "42", emptyStep, http.StatusConflict},
		{"negative index", "alice", "-1", emptyStep, http.StatusConflict},
		{"non-integer index", "alice", "first", emptyStep, http.StatusBadRequest},
		{"malformed json", "alice", "0", `{"step_data":`, http.StatusBadRequest},
		{"missing step_data", "alice", "0", `{}`, http.StatusUnprocessableEntity},
		{"invalid field value", "alice", "0", `{"step_data":{"importance":"very"}}`, http.StatusUnprocessableEntity},
		{"other owner", "bob", "0", emptyStep, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, base+tt.path, tt.owner, tt.body)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.status, w.Body.String())
			}
		})
	}

	// None of the rejections moved the decision.
	got, err := ts.store.GetDecision(context.Background(), d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.StepIndex != 0 || got.Version != d.Version {
		t.Errorf("decision advanced to step %d version %d", got.StepIndex, got.Version)
	}
}

func TestSubmitStep_StoresSuggestion(t *testing.T) {
	ts := newTestServer(t)
	d := ts.createDecision(t, "alice")

	w := ts.do(t, http.MethodPost, "/api/v1/decisions/"+d.ID+"/steps/0", "alice",
		`{"step_data":{},"ai_suggestion":"Think long term."}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	got, err := ts.store.GetDecision(context.Background(), d.ID)
	if err != nil {
		t.Fatal(err)
	}
	raw, ok := got.Data["Define the Decision_ai_suggestion"]
	if !ok {
		t.Fatalf("step data keys = %v, want suggestion stored", got.Data)
	}
	if string(raw) != `"Think long term."` {
		t.Errorf("stored suggestion = %s", raw)
	}
}

func TestGetSummary_InProgress(t *testing.T) {
	ts := newTestServer(t)
	d := ts.createDecision(t, "alice")

	w := ts.do(t, http.MethodGet, "/api/v1/decisions/"+d.ID+"/summary", "alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var sum types.SummaryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &sum); err != nil {
		t.Fatal(err)
	}
	if sum.Summary != "" || sum.DecisionID != d.ID {
		t.Errorf("summary = %+v", sum)
	}
}

// --- Feedback ---

func TestFeedback(t *testing.T) {
	ts := newTestServer(t)
	d := ts.createDecision(t, "alice")
	path := "/api/v1/decisions/" + d.ID + "/feedback"

	w := ts.do(t, http.MethodPost, path, "alice", `{"rating":4,"comment":"  helpful  "}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var fb types.Feedback
	if err := json.Unmarshal(w.Body.Bytes(), &fb); err != nil {
		t.Fatal(err)
	}
	if fb.Rating != 4 || fb.Comment != "helpful" || fb.DecisionID != d.ID {
		t.Errorf("feedback = %+v", fb)
	}

	for _, body := range []string{`{"rating":0}`, `{"rating":6}`} {
		if w := ts.do(t, http.MethodPost, path, "alice", body); w.Code != http.StatusUnprocessableEntity {
			t.Errorf("body %s status = %d, want 422", body, w.Code)
		}
	}
	if w := ts.do(t, http.MethodPost, path, "bob", `{"rating":1}`); w.Code != http.StatusForbidden {
		t.Errorf("other owner status = %d, want 403", w.Code)
	}

	w = ts.do(t, http.MethodGet, path, "alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var list types.FeedbackList
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Feedback) != 1 {
		t.Errorf("feedback count = %d, want 1", len(list.Feedback))
	}
}

// --- Rate limiting ---

func TestModelRoutesRateLimited(t *testing.T) {
	silenceLogs(t)
	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	adv := &stubAdvisor{quickAnswer: "Yes."}
	h := NewHandler(decision.NewService(s, adv, nil, 0, nil), adv, s, Options{
		JWTSecret:              testSecret,
		JWTIssuer:              testIssuer,
		ModelRequestsPerMinute: 1,
		ModelBurst:             1,
	})
	router := NewRouter(h)
	tok := testToken(t, "alice")

	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/advice", strings.NewReader(`{"question":"Now?"}`))
		req.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	if code := post(); code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", code)
	}
	if code := post(); code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", code)
	}

	// Non-model routes are not limited.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/decisions", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("list status = %d, want 200", w.Code)
	}
}

func TestTokenExpiryEnforcedByRouter(t *testing.T) {
	ts := newTestServer(t)
	expired, err := IssueOwnerToken(testSecret, testIssuer, "alice", time.Minute, time.Now().Add(-2*time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/decisions", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

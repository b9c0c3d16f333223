package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/entheodex/entheodex-backend/internal/middleware"
	"github.com/entheodex/entheodex-backend/internal/pkg/logger"
	"github.com/entheodex/entheodex-backend/internal/repos"
	"github.com/entheodex/entheodex-backend/internal/services"
	"github.com/entheodex/entheodex-backend/internal/types"
)

const testSecret = "test-secret"

type fakeImporter struct {
	previewResults []services.PreviewResult
	commitResults  []services.ItemResult
	commitSummary  services.Summary
	commitRunID    uuid.UUID
	err            error
	lastOpts       services.ImportOptions
}

func (f *fakeImporter) Preview(_ context.Context, _ []types.Candidate) ([]services.PreviewResult, error) {
	return f.previewResults, f.err
}

func (f *fakeImporter) DryRun(_ context.Context, candidates []types.Candidate, _ bool) ([]services.DryRunResult, services.DryRunCounts, error) {
	if f.err != nil {
		return nil, services.DryRunCounts{}, f.err
	}
	return []services.DryRunResult{}, services.DryRunCounts{Total: len(candidates)}, nil
}

func (f *fakeImporter) Commit(_ context.Context, _ []types.Candidate, opts services.ImportOptions) ([]services.ItemResult, services.Summary, uuid.UUID, error) {
	f.lastOpts = opts
	if f.err != nil {
		return nil, services.Summary{}, uuid.Nil, f.err
	}
	return f.commitResults, f.commitSummary, f.commitRunID, nil
}

type fakeRunRepo struct {
	runs  map[uuid.UUID]*types.ImportRun
	items map[uuid.UUID][]*types.ImportRunItem
}

func (f *fakeRunRepo) Create(_ context.Context, _ *gorm.DB, run *types.ImportRun) error {
	f.runs[run.ID] = run
	return nil
}

func (f *fakeRunRepo) AppendItem(_ context.Context, _ *gorm.DB, item *types.ImportRunItem) error {
	f.items[item.ImportRunID] = append(f.items[item.ImportRunID], item)
	return nil
}

func (f *fakeRunRepo) Finalize(_ context.Context, _ *gorm.DB, id uuid.UUID, _, _, _, _ int) error {
	return nil
}

func (f *fakeRunRepo) GetByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*types.ImportRun, error) {
	return f.runs[id], nil
}

func (f *fakeRunRepo) ListItems(_ context.Context, _ *gorm.DB, runID uuid.UUID) ([]*types.ImportRunItem, error) {
	return f.items[runID], nil
}

func (f *fakeRunRepo) ListRecent(_ context.Context, _ *gorm.DB, _ int) ([]*types.ImportRun, error) {
	var out []*types.ImportRun
	for _, r := range f.runs {
		out = append(out, r)
	}
	return out, nil
}

func newTestRouter(imp services.ImporterService, runs repos.ImportRunRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.NewNop()
	h := NewImportHandler(log, imp, runs)
	auth := middleware.NewAuthMiddleware(log, testSecret)

	router := gin.New()
	router.Use(middleware.WithRequestID())
	api := router.Group("/api")
	api.Use(auth.RequireAdmin())
	{
		api.POST("/import/preview", h.Preview)
		api.POST("/import/dryrun", h.DryRun)
		api.POST("/import/commit", h.Commit)
		api.GET("/import/runs", h.ListRuns)
		api.GET("/import/runs/:id", h.GetRun)
	}
	return router
}

func adminToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": "admin",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func doRequest(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var env map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, rec.Body.String())
	}
	return env
}

func TestImportEndpointsRequireAuth(t *testing.T) {
	router := newTestRouter(&fakeImporter{}, nil)

	for _, path := range []string{"/api/import/preview", "/api/import/dryrun", "/api/import/commit"} {
		rec := doRequest(t, router, http.MethodPost, path, "", map[string]any{"items": []any{}})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: want=401 got=%d", path, rec.Code)
		}
		env := decodeEnvelope(t, rec)
		if env["ok"] != false || env["code"] != "UNAUTHORIZED" {
			t.Fatalf("%s: envelope %v", path, env)
		}
	}
}

func TestImportRejectsNonAdminToken(t *testing.T) {
	router := newTestRouter(&fakeImporter{}, nil)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": "viewer",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	rec := doRequest(t, router, http.MethodPost, "/api/import/preview", signed, map[string]any{"items": []any{}})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("want=401 got=%d", rec.Code)
	}
}

func TestCommitEnvelopeShape(t *testing.T) {
	runID := uuid.New()
	imp := &fakeImporter{
		commitResults: []services.ItemResult{
			{Position: 0, Name: "Psilocybin", Slug: "psilocybin", Action: types.ActionInserted, ConfidenceScore: 55},
		},
		commitSummary: services.Summary{Total: 1, Inserted: 1},
		commitRunID:   runID,
	}
	router := newTestRouter(imp, nil)

	rec := doRequest(t, router, http.MethodPost, "/api/import/commit", adminToken(t), map[string]any{
		"items":     []map[string]any{{"name": "Psilocybin"}},
		"overwrite": true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if env["ok"] != true {
		t.Fatalf("ok: %v", env)
	}
	if env["runId"] != runID.String() {
		t.Fatalf("runId: want=%s got=%v", runID, env["runId"])
	}
	if env["context"].(map[string]any)["requestId"] == "" {
		t.Fatal("missing request id")
	}
	summary := env["summary"].(map[string]any)
	if summary["total"].(float64) != 1 || summary["inserted"].(float64) != 1 {
		t.Fatalf("summary: %v", summary)
	}
	if !imp.lastOpts.Overwrite {
		t.Fatal("overwrite flag not forwarded")
	}
	if imp.lastOpts.TriggerSource != "api" {
		t.Fatalf("trigger source: got=%q", imp.lastOpts.TriggerSource)
	}
}

func TestCommitMapsServiceErrorToEnvelope(t *testing.T) {
	imp := &fakeImporter{
		err: services.ValidateBatchSize(services.MaxBatchSize + 1),
	}
	router := newTestRouter(imp, nil)

	rec := doRequest(t, router, http.MethodPost, "/api/import/commit", adminToken(t), map[string]any{
		"items": []map[string]any{{"name": "x"}},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want=400 got=%d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env["ok"] != false || env["code"] != "BATCH_TOO_LARGE" {
		t.Fatalf("envelope: %v", env)
	}
}

func TestPreviewRejectsMalformedBody(t *testing.T) {
	router := newTestRouter(&fakeImporter{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/import/preview", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want=400 got=%d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env["code"] != "BAD_REQUEST" {
		t.Fatalf("envelope: %v", env)
	}
}

func TestListRunsWithoutStore(t *testing.T) {
	router := newTestRouter(&fakeImporter{}, nil)

	rec := doRequest(t, router, http.MethodGet, "/api/import/runs", adminToken(t), nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("want=503 got=%d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env["code"] != "STORE_UNCONFIGURED" {
		t.Fatalf("envelope: %v", env)
	}
}

func TestGetRunNotFound(t *testing.T) {
	runs := &fakeRunRepo{runs: map[uuid.UUID]*types.ImportRun{}, items: map[uuid.UUID][]*types.ImportRunItem{}}
	router := newTestRouter(&fakeImporter{}, runs)

	rec := doRequest(t, router, http.MethodGet, "/api/import/runs/"+uuid.NewString(), adminToken(t), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("want=404 got=%d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env["code"] != "NOT_FOUND" {
		t.Fatalf("envelope: %v", env)
	}
}

func TestGetRunReturnsRunWithItems(t *testing.T) {
	runID := uuid.New()
	runs := &fakeRunRepo{
		runs: map[uuid.UUID]*types.ImportRun{
			runID: {ID: runID, TriggerSource: "api", Status: types.ImportRunStatusDone, TotalItems: 1},
		},
		items: map[uuid.UUID][]*types.ImportRunItem{
			runID: {{ID: uuid.New(), ImportRunID: runID, Position: 0, Name: "Psilocybin", Slug: "psilocybin", Action: types.ActionInserted}},
		},
	}
	router := newTestRouter(&fakeImporter{}, runs)

	rec := doRequest(t, router, http.MethodGet, "/api/import/runs/"+runID.String(), adminToken(t), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	results := env["results"].(map[string]any)
	if results["run"] == nil {
		t.Fatal("missing run in results")
	}
	items := results["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("want 1 item, got %d", len(items))
	}
	if env["runId"] != runID.String() {
		t.Fatalf("runId: %v", env["runId"])
	}
}

func TestGetRunRejectsBadID(t *testing.T) {
	runs := &fakeRunRepo{runs: map[uuid.UUID]*types.ImportRun{}, items: map[uuid.UUID][]*types.ImportRunItem{}}
	router := newTestRouter(&fakeImporter{}, runs)

	rec := doRequest(t, router, http.MethodGet, "/api/import/runs/not-a-uuid", adminToken(t), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want=400 got=%d", rec.Code)
	}
}

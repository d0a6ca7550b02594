package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	analyticsdomain "github.com/edgebank/assist/internal/analytics/domain"
	analyticsrepo "github.com/edgebank/assist/internal/analytics/repository"
	analyticsservice "github.com/edgebank/assist/internal/analytics/service"
	"github.com/edgebank/assist/internal/cache"
	"github.com/edgebank/assist/internal/classifier"
	"github.com/edgebank/assist/internal/clock"
	"github.com/edgebank/assist/internal/config"
	convmemdomain "github.com/edgebank/assist/internal/convmem/domain"
	convmemrepo "github.com/edgebank/assist/internal/convmem/repository"
	convmemservice "github.com/edgebank/assist/internal/convmem/service"
	directorydomain "github.com/edgebank/assist/internal/directory/domain"
	directoryrepo "github.com/edgebank/assist/internal/directory/repository"
	directoryservice "github.com/edgebank/assist/internal/directory/service"
	"github.com/edgebank/assist/internal/disambig"
	feecalcdomain "github.com/edgebank/assist/internal/feecalc/domain"
	feecalcservice "github.com/edgebank/assist/internal/feecalc/service"
	feeruledomain "github.com/edgebank/assist/internal/feerule/domain"
	feerulerepo "github.com/edgebank/assist/internal/feerule/repository"
	feeruleservice "github.com/edgebank/assist/internal/feerule/service"
	"github.com/edgebank/assist/internal/llm"
	"github.com/edgebank/assist/internal/orchestrator"
	retrievaldomain "github.com/edgebank/assist/internal/retrieval/domain"
	retrievalservice "github.com/edgebank/assist/internal/retrieval/service"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// emptyKnowledgeStore satisfies the retrieval client without a backend.
type emptyKnowledgeStore struct{}

func (emptyKnowledgeStore) Fetch(context.Context, retrievaldomain.Namespace, string, int) ([]retrievaldomain.Passage, error) {
	return nil, nil
}

func newTestServer(t *testing.T, provider llm.Provider) (*Server, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&feeruledomain.FeeRule{},
		&convmemdomain.Turn{},
		&analyticsdomain.TurnRecord{},
		&directorydomain.Employee{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zap.NewNop()
	holder := config.NewStaticAssistantConfigHolder(config.DefaultAssistantConfig())
	store := disambig.NewStore(cache.NewMemoryKV())
	sysClock := clock.NewSystemClock()

	feeRules := feerulerepo.Provide()
	feeSvc := feecalcservice.New(feecalcservice.Params{
		DB: conn, Log: log, Rules: feeRules, Disambig: store, Assistant: holder, Clock: sysClock,
	})
	feeRuleSvc := feeruleservice.New(feeruleservice.Params{DB: conn, Log: log, Repo: feeRules})
	directorySvc := directoryservice.New(directoryservice.Params{
		DB: conn, Log: log, Repo: directoryrepo.Provide(), Assistant: holder,
	})
	memorySvc := convmemservice.New(convmemservice.Params{
		DB: conn, Log: log, Repo: convmemrepo.Provide(), GenID: node, Clock: sysClock,
	})
	analyticsSvc := analyticsservice.New(analyticsservice.Params{
		DB: conn, Log: log, Repo: analyticsrepo.Provide(), GenID: node,
	})
	retrievalSvc := retrievalservice.New(emptyKnowledgeStore{}, cache.NewMemoryKV(), holder, nil, log)

	orch := orchestrator.New(orchestrator.Params{
		Log:        log,
		Assistant:  holder,
		Classifier: classifier.New(holder),
		Fees:       feeSvc,
		Retrieval:  retrievalSvc,
		Directory:  directorySvc,
		Memory:     memorySvc,
		Analytics:  analyticsSvc,
		Disambig:   store,
		Provider:   provider,
	})

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	srv := NewServer(ServerParams{
		Gin:          engine,
		Cfg:          config.Config{AppName: "assist-test"},
		Log:          log,
		DB:           conn,
		Orchestrator: orch,
		FeeSvc:       feeSvc,
		FeeRuleSvc:   feeRuleSvc,
		DirectorySvc: directorySvc,
		MemorySvc:    memorySvc,
		AnalyticsSvc: analyticsSvc,
	})
	return srv, conn
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)
	return w
}

func TestChatNonStreaming(t *testing.T) {
	provider := &llm.ScriptedProvider{Chunks: []string{"Hello! ", "How can I help?"}}
	srv, _ := newTestServer(t, provider)

	w := doJSON(t, srv, http.MethodPost, "/api/chat", gin.H{"query": "hello", "stream": false})
	require.Equal(t, http.StatusOK, w.Code)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Hello! How can I help?", resp.Response)
	assert.NotEmpty(t, resp.SessionID)
	assert.NotNil(t, resp.Sources)

	require.Len(t, provider.Calls, 1)
	assert.Contains(t, provider.Calls[0].System, "EdgeBank PLC")
}

func TestChatStreamingEmitsSourcesEnvelope(t *testing.T) {
	provider := &llm.ScriptedProvider{Chunks: []string{"Hi ", "there!"}}
	srv, _ := newTestServer(t, provider)

	w := doJSON(t, srv, http.MethodPost, "/api/chat", gin.H{"query": "hello"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Session-ID"))

	body := w.Body.String()
	require.Contains(t, body, orchestrator.SourcesDelimiter)

	parts := strings.SplitN(body, orchestrator.SourcesDelimiter, 3)
	require.Len(t, parts, 3)
	assert.Equal(t, "Hi there!", parts[0])

	var envelope sourcesEnvelope
	require.NoError(t, json.Unmarshal([]byte(parts[1]), &envelope))
	assert.Equal(t, "sources", envelope.Type)
	assert.NotNil(t, envelope.Sources)
}

func TestChatRejectsEmptyQuery(t *testing.T) {
	srv, _ := newTestServer(t, &llm.ScriptedProvider{})

	w := doJSON(t, srv, http.MethodPost, "/api/chat", gin.H{"query": "  "})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "validation_error", resp.Error.Type)
}

func TestChatHistoryRoundTrip(t *testing.T) {
	provider := &llm.ScriptedProvider{Chunks: []string{"Hello!"}}
	srv, _ := newTestServer(t, provider)

	w := doJSON(t, srv, http.MethodPost, "/api/chat", gin.H{
		"query": "hello", "session_id": "sess-history", "stream": false,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/api/chat/history/sess-history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		SessionID string               `json:"session_id"`
		Turns     []convmemdomain.Turn `json:"turns"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history.Turns, 2)
	assert.Equal(t, convmemdomain.RoleUser, history.Turns[0].Role)
	assert.Equal(t, convmemdomain.RoleAssistant, history.Turns[1].Role)

	w = doJSON(t, srv, http.MethodDelete, "/api/chat/history/sess-history", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/api/chat/history/sess-history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	assert.Empty(t, history.Turns)
}

func TestFeeQueryEndpoint(t *testing.T) {
	srv, conn := newTestServer(t, &llm.ScriptedProvider{})

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	amount := 11.5
	require.NoError(t, conn.Create(&feeruledomain.FeeRule{
		ID:            node.Generate(),
		ProductLine:   feeruledomain.ProductLineCreditCard,
		ChargeType:    "ISSUANCE_ANNUAL_PRIMARY",
		FeeKind:       feeruledomain.FeeKindFixed,
		Amount:        &amount,
		Currency:      "USD",
		FeeBasis:      feeruledomain.BasisPerYear,
		Condition:     feeruledomain.ConditionNone,
		Status:        feeruledomain.StatusActive,
		EffectiveFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}).Error)

	w := doJSON(t, srv, http.MethodPost, "/api/fees/query", gin.H{
		"query": "annual fee of the card", "currency": "USD",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var result feecalcdomain.FeeResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, feecalcdomain.ResultCalculated, result.Kind)
	assert.Equal(t, 11.5, result.Amount)
	assert.Equal(t, "USD", result.Currency)
}

func TestFeeQueryUnrecognizedChargeType(t *testing.T) {
	srv, _ := newTestServer(t, &llm.ScriptedProvider{})

	w := doJSON(t, srv, http.MethodPost, "/api/fees/query", gin.H{"query": "what is the weather"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDirectorySearchEndpoint(t *testing.T) {
	srv, conn := newTestServer(t, &llm.ScriptedProvider{})

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	require.NoError(t, conn.Create(&directorydomain.Employee{
		ID: node.Generate(), EmployeeID: "EB1024", Name: "Rajib Bhowmik",
		Designation: "Senior Officer", Department: "Card Operations",
	}).Error)

	w := doJSON(t, srv, http.MethodGet, "/api/directory/search?q=EB1024", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Hits []directorydomain.Hit `json:"hits"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "Rajib Bhowmik", resp.Hits[0].Employee.Name)

	w = doJSON(t, srv, http.MethodGet, "/api/directory/search", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMapErrorStatuses(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{orchestrator.ErrEmptyQuery, http.StatusBadRequest},
		{feecalcdomain.ErrAmountRequired, http.StatusBadRequest},
		{feecalcdomain.ErrTokenExpired, http.StatusGone},
		{feeruledomain.ErrDuplicateRule, http.StatusConflict},
		{feeruledomain.ErrOverlappingRange, http.StatusConflict},
		{gorm.ErrRecordNotFound, http.StatusNotFound},
		{directorydomain.ErrDirectoryUnavailable, http.StatusServiceUnavailable},
		{llm.ErrRateLimited, http.StatusTooManyRequests},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		status, _ := mapError(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
	}
}

func TestParseIntDefault(t *testing.T) {
	assert.Equal(t, 10, parseIntDefault("", 10))
	assert.Equal(t, 10, parseIntDefault("abc", 10))
	assert.Equal(t, 25, parseIntDefault(" 25 ", 10))
}

func TestClientIPHonorsTrustedProxy(t *testing.T) {
	srv, _ := newTestServer(t, &llm.ScriptedProvider{})

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set(HeaderClientIP, "203.0.113.9")

	// Header ignored unless the proxy is declared trusted.
	assert.NotEqual(t, "203.0.113.9", srv.clientIP(c))

	srv.cfg.TrustProxyClientIP = true
	assert.Equal(t, "203.0.113.9", srv.clientIP(c))
}

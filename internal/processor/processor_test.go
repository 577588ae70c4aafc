// internal/processor/processor_test.go
package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querypilot/querypilot/internal/database"
	apperrors "github.com/querypilot/querypilot/internal/errors"
	"github.com/querypilot/querypilot/internal/observability"
	"github.com/querypilot/querypilot/internal/session"
)

const processorTestSchema = `
CREATE TABLE products (
	product_id   INTEGER PRIMARY KEY,
	product_name TEXT NOT NULL,
	category     TEXT NOT NULL
);
CREATE TABLE customers (
	customer_id INTEGER PRIMARY KEY,
	name        TEXT NOT NULL,
	city        TEXT NOT NULL
);
CREATE TABLE sales (
	id          INTEGER PRIMARY KEY,
	date        TEXT NOT NULL,
	product_id  INTEGER NOT NULL REFERENCES products(product_id),
	customer_id INTEGER NOT NULL REFERENCES customers(customer_id),
	quantity    INTEGER NOT NULL,
	price       REAL NOT NULL
);
`

// mockLLM is a scriptable llm.Client
type mockLLM struct {
	generateOut string
	generateErr error
	explainOut  string
	explainErr  error

	lastSystemMsg string
	lastUserMsg   string
	generateCalls int
}

func (m *mockLLM) GenerateSQL(ctx context.Context, systemMsg, userMsg string) (string, error) {
	m.generateCalls++
	m.lastSystemMsg = systemMsg
	m.lastUserMsg = userMsg
	return m.generateOut, m.generateErr
}

func (m *mockLLM) ExplainSQL(ctx context.Context, sql string) (string, error) {
	return m.explainOut, m.explainErr
}

func (m *mockLLM) Ping(ctx context.Context) error { return nil }

func setupTestEngine(t *testing.T) *database.Engine {
	t.Helper()

	engine, err := database.NewEngine(database.EngineConfig{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
		MaxRows:      1000,
	}, NewSafetyChecker())
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	_, err = engine.DB().Exec(processorTestSchema)
	require.NoError(t, err)

	require.NoError(t, database.Seed(context.Background(), engine.DB(), database.SeedConfig{Seed: 42}))
	return engine
}

func setupTestSessions(t *testing.T) *session.Manager {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return session.NewManager(client, time.Hour)
}

func newTestProcessor(t *testing.T, mock *mockLLM) *QueryProcessor {
	t.Helper()
	return NewQueryProcessor(mock, setupTestEngine(t), setupTestSessions(t), ProcessorConfig{
		QueryTimeout:      5 * time.Second,
		MaxQuestionLength: 500,
		MaxHistoryEntries: 100,
	})
}

func TestAsk_FullPipeline(t *testing.T) {
	mock := &mockLLM{
		generateOut: "Here is the query:\n```sql\nSELECT COUNT(*) AS total FROM sales\n```",
		explainOut:  "Counts every row in the sales table.",
	}
	qp := newTestProcessor(t, mock)

	resp, err := qp.Ask(context.Background(), &AskRequest{Question: "how many sales are there?"})
	require.NoError(t, err)

	assert.Equal(t, "SELECT COUNT(*) AS total FROM sales", resp.SQL)
	assert.Equal(t, "Counts every row in the sales table.", resp.Explanation)
	assert.False(t, resp.JoinRepaired)

	require.NotNil(t, resp.Results)
	assert.Equal(t, []string{"total"}, resp.Results.Columns)
	require.Len(t, resp.Results.Rows, 1)
	assert.EqualValues(t, 150, resp.Results.Rows[0][0])

	// Prompt carries the schema and the question
	assert.Contains(t, mock.lastSystemMsg, "SQLite")
	assert.Contains(t, mock.lastUserMsg, "TABLE sales")
	assert.Contains(t, mock.lastUserMsg, `"""how many sales are there?"""`)

	// Answer lands in history
	entries := qp.History().List()
	require.Len(t, entries, 1)
	assert.Equal(t, "how many sales are there?", entries[0].Question)
	assert.Equal(t, 1, entries[0].RowCount)
}

func TestAsk_RepairsMissingJoins(t *testing.T) {
	mock := &mockLLM{
		generateOut: "SELECT product_name, SUM(price) AS revenue FROM sales GROUP BY product_name",
		explainOut:  "Totals revenue per product.",
	}
	qp := newTestProcessor(t, mock)

	resp, err := qp.Ask(context.Background(), &AskRequest{Question: "revenue per product"})
	require.NoError(t, err)

	assert.True(t, resp.JoinRepaired)
	assert.Contains(t, resp.SQL, "LEFT JOIN products p")

	// The repaired query resolves product_name and returns real groups
	require.NotNil(t, resp.Results)
	assert.Equal(t, 10, resp.Results.RowCount)
	require.NotNil(t, resp.Chart)
	assert.Equal(t, "bar", resp.Chart.ChartType)
}

func TestAsk_RejectsUnsafeGeneratedSQL(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		wantCode apperrors.ErrorCode
	}{
		{
			name:     "stacked drop",
			sql:      "SELECT * FROM sales; DROP TABLE sales;",
			wantCode: apperrors.ErrCodeForbiddenToken,
		},
		{
			name:     "non-select",
			sql:      "DELETE FROM sales",
			wantCode: apperrors.ErrCodeNotSelect,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockLLM{generateOut: tt.sql}
			qp := newTestProcessor(t, mock)

			_, err := qp.Ask(context.Background(), &AskRequest{Question: "break things"})
			require.Error(t, err)

			var enhanced *apperrors.EnhancedError
			require.True(t, errors.As(err, &enhanced))
			assert.Equal(t, tt.wantCode, enhanced.Code)
		})
	}
}

func TestAsk_ExplanationFailureIsNotFatal(t *testing.T) {
	mock := &mockLLM{
		generateOut: "SELECT COUNT(*) FROM customers",
		explainErr:  fmt.Errorf("model overloaded"),
	}
	qp := newTestProcessor(t, mock)

	resp, err := qp.Ask(context.Background(), &AskRequest{Question: "how many customers?"})
	require.NoError(t, err)
	assert.Contains(t, resp.Explanation, "(explanation unavailable:")
	assert.Contains(t, resp.Explanation, "model overloaded")
	require.NotNil(t, resp.Results)
	assert.EqualValues(t, 15, resp.Results.Rows[0][0])
}

func TestAsk_GenerationFailure(t *testing.T) {
	mock := &mockLLM{generateErr: fmt.Errorf("rate limited")}
	qp := newTestProcessor(t, mock)

	_, err := qp.Ask(context.Background(), &AskRequest{Question: "anything"})
	require.Error(t, err)

	var enhanced *apperrors.EnhancedError
	require.True(t, errors.As(err, &enhanced))
	assert.Equal(t, apperrors.ErrCodeSQLGeneration, enhanced.Code)
}

func TestAsk_QuestionValidation(t *testing.T) {
	qp := newTestProcessor(t, &mockLLM{generateOut: "SELECT 1"})

	_, err := qp.Ask(context.Background(), &AskRequest{Question: ""})
	require.Error(t, err)

	_, err = qp.Ask(context.Background(), &AskRequest{Question: strings.Repeat("x", 501)})
	require.Error(t, err)

	var enhanced *apperrors.EnhancedError
	require.True(t, errors.As(err, &enhanced))
	assert.Equal(t, apperrors.ErrCodeInvalidInput, enhanced.Code)
}

func TestAsk_SavesSessionState(t *testing.T) {
	mock := &mockLLM{generateOut: "SELECT COUNT(*) AS total FROM products", explainOut: "Counts products."}
	sessions := setupTestSessions(t)
	qp := NewQueryProcessor(mock, setupTestEngine(t), sessions, ProcessorConfig{})

	ctx := observability.WithSessionID(context.Background(), "sess-1")
	_, err := qp.Ask(ctx, &AskRequest{Question: "how many products?"})
	require.NoError(t, err)

	state, err := sessions.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "how many products?", state.Question)
	assert.Equal(t, "SELECT COUNT(*) AS total FROM products", state.SQL)
	require.NotNil(t, state.Result)
	assert.Equal(t, 1, state.Result.RowCount)
}

func TestGenerate_DoesNotExecute(t *testing.T) {
	mock := &mockLLM{generateOut: "```sql\nSELECT name FROM customers\n```"}
	qp := newTestProcessor(t, mock)

	resp, err := qp.Generate(context.Background(), &AskRequest{Question: "customer names"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT name FROM customers", resp.SQL)
	assert.Equal(t, 1, mock.generateCalls)

	// Nothing executed means nothing in history
	assert.Equal(t, 0, qp.History().Len())
}

func TestRun_ExecutesRawSQL(t *testing.T) {
	qp := newTestProcessor(t, &mockLLM{})

	resp, err := qp.Run(context.Background(), &SQLRequest{SQL: "SELECT city, COUNT(*) AS n FROM customers GROUP BY city ORDER BY city"})
	require.NoError(t, err)
	assert.Equal(t, 5, resp.Results.RowCount)
	require.NotNil(t, resp.Chart)

	entries := qp.History().List()
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].Question)
}

func TestRun_RejectsUnsafeSQL(t *testing.T) {
	qp := newTestProcessor(t, &mockLLM{})

	_, err := qp.Run(context.Background(), &SQLRequest{SQL: "UPDATE sales SET price = 0"})
	require.Error(t, err)

	var enhanced *apperrors.EnhancedError
	require.True(t, errors.As(err, &enhanced))
	assert.Equal(t, apperrors.ErrCodeNotSelect, enhanced.Code)
}

func TestValidateEndpointLogic(t *testing.T) {
	qp := newTestProcessor(t, &mockLLM{})

	safe := qp.Validate(&SQLRequest{SQL: "SELECT name FROM customers"})
	assert.True(t, safe.Safe)
	assert.Empty(t, safe.Reason)

	unsafe := qp.Validate(&SQLRequest{SQL: "SELECT * FROM sales; DROP TABLE sales;"})
	assert.False(t, unsafe.Safe)
	assert.NotEmpty(t, unsafe.Reason)
}

func TestExplain(t *testing.T) {
	qp := newTestProcessor(t, &mockLLM{explainOut: "Lists all customers."})

	explanation, err := qp.Explain(context.Background(), &SQLRequest{SQL: "SELECT * FROM customers"})
	require.NoError(t, err)
	assert.Equal(t, "Lists all customers.", explanation)
}

func TestExplain_PropagatesFailure(t *testing.T) {
	qp := newTestProcessor(t, &mockLLM{explainErr: fmt.Errorf("timeout")})

	_, err := qp.Explain(context.Background(), &SQLRequest{SQL: "SELECT 1"})
	require.Error(t, err)

	var enhanced *apperrors.EnhancedError
	require.True(t, errors.As(err, &enhanced))
	assert.Equal(t, apperrors.ErrCodeExplanation, enhanced.Code)
}

// HTTP surface tests

func setupTestRouter(t *testing.T, mock *mockLLM) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	qp := newTestProcessor(t, mock)
	return qp.SetupRoutes()
}

func TestHandleAsk(t *testing.T) {
	router := setupTestRouter(t, &mockLLM{
		generateOut: "SELECT COUNT(*) AS total FROM sales",
		explainOut:  "Counts sales.",
	})

	body, _ := json.Marshal(AskRequest{Question: "how many sales?"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp AskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "SELECT COUNT(*) AS total FROM sales", resp.SQL)
	assert.Equal(t, "Counts sales.", resp.Explanation)
}

func TestHandleAsk_BadRequest(t *testing.T) {
	router := setupTestRouter(t, &mockLLM{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_INPUT")
}

func TestHandleRun_UnsafeSQLReturns400(t *testing.T) {
	router := setupTestRouter(t, &mockLLM{})

	body, _ := json.Marshal(SQLRequest{SQL: "SELECT 1; SELECT 2;"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/run", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "MULTIPLE_STATEMENTS")
}

func TestHandleSchema(t *testing.T) {
	router := setupTestRouter(t, &mockLLM{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/schema", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "products")
	assert.Contains(t, w.Body.String(), "sales")
}

func TestHandleHistoryLifecycle(t *testing.T) {
	router := setupTestRouter(t, &mockLLM{
		generateOut: "SELECT COUNT(*) FROM sales",
		explainOut:  "Counts sales.",
	})

	body, _ := json.Marshal(AskRequest{Question: "count sales"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/history", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/history", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/history", nil)
	router.ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), `"count":0`)
}

func TestHandleExportFlow(t *testing.T) {
	router := setupTestRouter(t, &mockLLM{})

	// Run a query under a session, then export its result
	body, _ := json.Marshal(SQLRequest{SQL: "SELECT product_name, category FROM products ORDER BY product_id LIMIT 2"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/run", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(observability.SessionIDHeader, "export-session")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/export/csv", nil)
	req.Header.Set(observability.SessionIDHeader, "export-session")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.True(t, strings.HasPrefix(w.Body.String(), "product_name,category\n"))
	assert.Contains(t, w.Body.String(), "Laptop Pro 14")
}

func TestHandleExportWithoutResult(t *testing.T) {
	router := setupTestRouter(t, &mockLLM{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/export/csv", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Unknown session is also a 404
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/export/xlsx", nil)
	req.Header.Set(observability.SessionIDHeader, "never-seen")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthEndpointFallback(t *testing.T) {
	router := setupTestRouter(t, &mockLLM{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

package processor

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/querypilot/querypilot/internal/database"
	apperrors "github.com/querypilot/querypilot/internal/errors"
	"github.com/querypilot/querypilot/internal/export"
	"github.com/querypilot/querypilot/internal/llm"
	"github.com/querypilot/querypilot/internal/observability"
	"github.com/querypilot/querypilot/internal/session"
)

// AskRequest carries a natural language question
type AskRequest struct {
	Question string `json:"question" binding:"required"`
}

// SQLRequest carries a raw SQL statement for run, explain, and validate
type SQLRequest struct {
	SQL string `json:"sql" binding:"required"`
}

// AskResponse is the full answer to a question
type AskResponse struct {
	Question       string        `json:"question"`
	SQL            string        `json:"sql"`
	Explanation    string        `json:"explanation,omitempty"`
	Results        *QueryResults `json:"results,omitempty"`
	Chart          *ChartConfig  `json:"chart,omitempty"`
	JoinRepaired   bool          `json:"join_repaired,omitempty"`
	ProcessingTime time.Duration `json:"processing_time,omitempty"`
	ExecutionTime  int64         `json:"execution_time_ms,omitempty"`
}

// GenerateResponse is the answer to a generate-only request
type GenerateResponse struct {
	Question     string `json:"question"`
	SQL          string `json:"sql"`
	JoinRepaired bool   `json:"join_repaired,omitempty"`
}

// RunResponse is the answer to a raw SQL execution
type RunResponse struct {
	SQL           string        `json:"sql"`
	Results       *QueryResults `json:"results"`
	Chart         *ChartConfig  `json:"chart,omitempty"`
	ExecutionTime int64         `json:"execution_time_ms,omitempty"`
}

// ValidateResponse reports whether a statement passes the safety gate
type ValidateResponse struct {
	SQL  string `json:"sql"`
	Safe bool   `json:"safe"`
	// Reason is the rejection message when Safe is false
	Reason string `json:"reason,omitempty"`
}

// ProcessorConfig holds configuration for the query processor
type ProcessorConfig struct {
	QueryTimeout      time.Duration
	MaxQuestionLength int
	MaxHistoryEntries int
}

// QueryProcessor is the main service struct
type QueryProcessor struct {
	llmClient       llm.Client
	engine          *database.Engine
	sessions        *session.Manager
	safetyChecker   *SafetyChecker
	joinRepairer    *JoinRepairer
	promptBuilder   *PromptBuilder
	resultProcessor *ResultProcessor
	chartBuilder    *ChartBuilder
	history         *HistoryLog
	logger          *observability.Logger
	healthChecker   *observability.HealthChecker
	config          ProcessorConfig
}

// NewQueryProcessor creates a new query processor instance
func NewQueryProcessor(llmClient llm.Client, engine *database.Engine, sessions *session.Manager, config ProcessorConfig) *QueryProcessor {
	if config.QueryTimeout == 0 {
		config.QueryTimeout = 30 * time.Second
	}
	if config.MaxQuestionLength == 0 {
		config.MaxQuestionLength = 500
	}

	return &QueryProcessor{
		llmClient:       llmClient,
		engine:          engine,
		sessions:        sessions,
		safetyChecker:   NewSafetyChecker(),
		joinRepairer:    NewJoinRepairer(),
		promptBuilder:   NewPromptBuilder(),
		resultProcessor: NewResultProcessor(),
		chartBuilder:    NewChartBuilder(),
		history:         NewHistoryLog(config.MaxHistoryEntries),
		logger:          observability.NewLogger("query-processor"),
		config:          config,
	}
}

// SetHealthChecker sets the health checker for the processor
func (qp *QueryProcessor) SetHealthChecker(healthChecker *observability.HealthChecker) {
	qp.healthChecker = healthChecker
}

// History exposes the processor's history log
func (qp *QueryProcessor) History() *HistoryLog {
	return qp.history
}

// Ask runs the full question-to-answer pipeline: generate SQL, repair
// joins, gate it, execute it, then explain it.
func (qp *QueryProcessor) Ask(ctx context.Context, req *AskRequest) (*AskResponse, error) {
	start := time.Now()

	qp.logger.Info(ctx, "Processing question", map[string]interface{}{
		"question": req.Question,
	})

	var errorType string
	var response *AskResponse
	var processingErr error

	defer func() {
		duration := time.Since(start)
		observability.RecordAskMetrics(duration, processingErr == nil, errorType)

		if processingErr != nil {
			qp.logger.Error(ctx, "Question processing failed", processingErr, map[string]interface{}{
				"question":    req.Question,
				"duration_ms": duration.Milliseconds(),
				"error_type":  errorType,
			})
		} else {
			qp.logger.Info(ctx, "Question processed successfully", map[string]interface{}{
				"question":    req.Question,
				"duration_ms": duration.Milliseconds(),
				"rows":        response.Results.RowCount,
			})
		}
	}()

	if err := qp.validateQuestion(req.Question); err != nil {
		errorType = "invalid_input"
		processingErr = err
		return nil, processingErr
	}

	sqlText, repaired, err := qp.generateSQL(ctx, req.Question)
	if err != nil {
		errorType = "sql_generation"
		processingErr = err
		return nil, processingErr
	}

	if err := qp.safetyChecker.Validate(sqlText); err != nil {
		errorType = "safety_rejection"
		processingErr = err
		observability.GetGlobalMetrics().Inc(observability.MetricSafetyRejections, map[string]string{
			"source": "ask",
		})
		return nil, processingErr
	}

	execStart := time.Now()
	queryCtx, cancel := context.WithTimeout(ctx, qp.config.QueryTimeout)
	defer cancel()

	resultSet, err := qp.engine.RunQuery(queryCtx, sqlText)
	if err != nil {
		errorType = "query_execution"
		processingErr = err
		return nil, processingErr
	}
	execTime := time.Since(execStart).Milliseconds()

	results, err := qp.resultProcessor.ProcessResults(resultSet)
	if err != nil {
		errorType = "result_processing"
		processingErr = apperrors.Wrap(err, apperrors.ErrCodeQueryExecution, "failed to process query results")
		return nil, processingErr
	}

	explanation := qp.explainOrFallback(ctx, sqlText)

	response = &AskResponse{
		Question:       req.Question,
		SQL:            sqlText,
		Explanation:    explanation,
		Results:        results,
		Chart:          qp.chartBuilder.BuildChart(resultSet),
		JoinRepaired:   repaired,
		ProcessingTime: time.Since(start),
		ExecutionTime:  execTime,
	}

	qp.history.Add(HistoryEntry{
		Question:   req.Question,
		SQL:        sqlText,
		RowCount:   resultSet.RowCount,
		DurationMs: time.Since(start).Milliseconds(),
	})

	qp.saveSessionState(ctx, req.Question, sqlText, resultSet)

	return response, nil
}

// Generate produces SQL for a question without executing it
func (qp *QueryProcessor) Generate(ctx context.Context, req *AskRequest) (*GenerateResponse, error) {
	if err := qp.validateQuestion(req.Question); err != nil {
		return nil, err
	}

	sqlText, repaired, err := qp.generateSQL(ctx, req.Question)
	if err != nil {
		return nil, err
	}

	// The generated SQL lands in the session so a later run or edit can
	// pick it up without regenerating
	qp.saveSessionState(ctx, req.Question, sqlText, nil)

	return &GenerateResponse{
		Question:     req.Question,
		SQL:          sqlText,
		JoinRepaired: repaired,
	}, nil
}

// Run executes a raw SQL statement through the safety gate
func (qp *QueryProcessor) Run(ctx context.Context, req *SQLRequest) (*RunResponse, error) {
	if err := qp.safetyChecker.Validate(req.SQL); err != nil {
		observability.GetGlobalMetrics().Inc(observability.MetricSafetyRejections, map[string]string{
			"source": "run",
		})
		return nil, err
	}

	execStart := time.Now()
	queryCtx, cancel := context.WithTimeout(ctx, qp.config.QueryTimeout)
	defer cancel()

	resultSet, err := qp.engine.RunQuery(queryCtx, req.SQL)
	if err != nil {
		return nil, err
	}

	results, err := qp.resultProcessor.ProcessResults(resultSet)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeQueryExecution, "failed to process query results")
	}

	qp.history.Add(HistoryEntry{
		SQL:        req.SQL,
		RowCount:   resultSet.RowCount,
		DurationMs: time.Since(execStart).Milliseconds(),
	})

	qp.saveSessionState(ctx, "", req.SQL, resultSet)

	return &RunResponse{
		SQL:           req.SQL,
		Results:       results,
		Chart:         qp.chartBuilder.BuildChart(resultSet),
		ExecutionTime: time.Since(execStart).Milliseconds(),
	}, nil
}

// Explain asks the model for a plain English explanation of a statement
func (qp *QueryProcessor) Explain(ctx context.Context, req *SQLRequest) (string, error) {
	explanation, err := qp.llmClient.ExplainSQL(ctx, req.SQL)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeExplanation, "failed to explain SQL").
			WithDetails("The AI model could not produce an explanation for this statement").
			WithSuggestion("The SQL itself is unaffected. Try again shortly.")
	}
	return explanation, nil
}

// Validate runs the safety gate on a statement without executing it
func (qp *QueryProcessor) Validate(req *SQLRequest) *ValidateResponse {
	resp := &ValidateResponse{SQL: req.SQL, Safe: true}
	if err := qp.safetyChecker.Validate(req.SQL); err != nil {
		resp.Safe = false
		resp.Reason = err.Error()
	}
	return resp
}

// generateSQL builds the prompt, calls the model, then cleans and
// repairs the output. The returned bool reports a join repair.
func (qp *QueryProcessor) generateSQL(ctx context.Context, question string) (string, bool, error) {
	schemaNote := qp.engine.SchemaNote(ctx)

	raw, err := qp.llmClient.GenerateSQL(ctx,
		qp.promptBuilder.SystemMessage(),
		qp.promptBuilder.UserMessage(schemaNote, question))
	if err != nil {
		return "", false, apperrors.NewSQLGenerationError(err)
	}

	sqlText := CleanModelSQL(raw)

	sqlText, repaired := qp.joinRepairer.Repair(sqlText)
	if repaired {
		observability.GetGlobalMetrics().Inc(observability.MetricJoinRepairs, nil)
		qp.logger.Info(ctx, "Repaired missing joins in generated SQL", map[string]interface{}{
			"question": question,
		})
	}

	return sqlText, repaired, nil
}

// explainOrFallback never fails the request over a missing explanation
func (qp *QueryProcessor) explainOrFallback(ctx context.Context, sqlText string) string {
	explanation, err := qp.llmClient.ExplainSQL(ctx, sqlText)
	if err != nil {
		observability.GetGlobalMetrics().Inc(observability.MetricExplanationFallback, nil)
		qp.logger.Warn(ctx, "Explanation unavailable, continuing without it", map[string]interface{}{
			"error": err.Error(),
		})
		return fmt.Sprintf("(explanation unavailable: %s)", err.Error())
	}
	return explanation
}

// validateQuestion gates the raw question before any model call
func (qp *QueryProcessor) validateQuestion(question string) error {
	if question == "" {
		return apperrors.NewInvalidInputError("question", "question must not be empty")
	}
	if len(question) > qp.config.MaxQuestionLength {
		return apperrors.NewInvalidInputError("question",
			fmt.Sprintf("question exceeds %d characters", qp.config.MaxQuestionLength))
	}
	return nil
}

// saveSessionState is best effort. Losing session state costs a re-run
// at export time, not a failed answer.
func (qp *QueryProcessor) saveSessionState(ctx context.Context, question, sqlText string, rs *database.ResultSet) {
	if qp.sessions == nil {
		return
	}

	sessionID := observability.GetSessionID(ctx)
	if sessionID == "" {
		return
	}

	state := &session.State{Question: question, SQL: sqlText, Result: rs}
	if err := qp.sessions.Save(ctx, sessionID, state); err != nil {
		qp.logger.Warn(ctx, "Failed to save session state", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// SetupRoutes configures the HTTP surface
func (qp *QueryProcessor) SetupRoutes() *gin.Engine {
	r := gin.New()

	r.Use(observability.RecoveryMiddleware(qp.logger))
	r.Use(observability.RequestLoggingMiddleware(qp.logger))
	r.Use(observability.MetricsMiddleware())
	r.Use(observability.CORSWithLogging(qp.logger))

	r.GET("/health", func(c *gin.Context) {
		if qp.healthChecker != nil {
			response := qp.healthChecker.GetHealthResponse(c.Request.Context())
			statusCode := http.StatusOK
			if response.Status == observability.HealthStatusUnhealthy {
				statusCode = http.StatusServiceUnavailable
			}
			c.JSON(statusCode, response)
			return
		}

		// Fallback for when health checker is not configured
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "query-service",
		})
	})

	r.GET("/metrics", observability.MetricsEndpointMiddleware(observability.GetGlobalMetrics()))

	api := r.Group("/api/v1")
	{
		api.POST("/ask", qp.handleAsk)
		api.POST("/generate", qp.handleGenerate)
		api.POST("/run", qp.handleRun)
		api.POST("/explain", qp.handleExplain)
		api.POST("/validate", qp.handleValidate)

		api.GET("/schema", qp.handleGetSchema)

		api.GET("/history", qp.handleGetHistory)
		api.DELETE("/history", qp.handleClearHistory)

		api.GET("/export/csv", qp.handleExportCSV)
		api.GET("/export/xlsx", qp.handleExportXLSX)
	}

	return r
}

func (qp *QueryProcessor) handleAsk(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		enhancedErr := apperrors.NewInvalidInputError("request body", err.Error())
		c.JSON(http.StatusBadRequest, formatErrorResponse(enhancedErr))
		return
	}

	response, err := qp.Ask(c.Request.Context(), &req)
	if err != nil {
		c.JSON(getErrorStatusCode(err), formatErrorResponse(err))
		return
	}

	c.JSON(http.StatusOK, response)
}

func (qp *QueryProcessor) handleGenerate(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		enhancedErr := apperrors.NewInvalidInputError("request body", err.Error())
		c.JSON(http.StatusBadRequest, formatErrorResponse(enhancedErr))
		return
	}

	response, err := qp.Generate(c.Request.Context(), &req)
	if err != nil {
		c.JSON(getErrorStatusCode(err), formatErrorResponse(err))
		return
	}

	c.JSON(http.StatusOK, response)
}

func (qp *QueryProcessor) handleRun(c *gin.Context) {
	var req SQLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		enhancedErr := apperrors.NewInvalidInputError("request body", err.Error())
		c.JSON(http.StatusBadRequest, formatErrorResponse(enhancedErr))
		return
	}

	response, err := qp.Run(c.Request.Context(), &req)
	if err != nil {
		c.JSON(getErrorStatusCode(err), formatErrorResponse(err))
		return
	}

	c.JSON(http.StatusOK, response)
}

func (qp *QueryProcessor) handleExplain(c *gin.Context) {
	var req SQLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		enhancedErr := apperrors.NewInvalidInputError("request body", err.Error())
		c.JSON(http.StatusBadRequest, formatErrorResponse(enhancedErr))
		return
	}

	explanation, err := qp.Explain(c.Request.Context(), &req)
	if err != nil {
		c.JSON(getErrorStatusCode(err), formatErrorResponse(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sql":         req.SQL,
		"explanation": explanation,
	})
}

func (qp *QueryProcessor) handleValidate(c *gin.Context) {
	var req SQLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		enhancedErr := apperrors.NewInvalidInputError("request body", err.Error())
		c.JSON(http.StatusBadRequest, formatErrorResponse(enhancedErr))
		return
	}

	c.JSON(http.StatusOK, qp.Validate(&req))
}

func (qp *QueryProcessor) handleGetSchema(c *gin.Context) {
	schema, err := qp.engine.Introspect(c.Request.Context())
	if err != nil {
		c.JSON(getErrorStatusCode(err), formatErrorResponse(err))
		return
	}
	c.JSON(http.StatusOK, schema)
}

func (qp *QueryProcessor) handleGetHistory(c *gin.Context) {
	entries := qp.history.List()
	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"count":   len(entries),
	})
}

func (qp *QueryProcessor) handleClearHistory(c *gin.Context) {
	qp.history.Clear()
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

func (qp *QueryProcessor) handleExportCSV(c *gin.Context) {
	rs, ok := qp.lastResult(c)
	if !ok {
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="query_results.csv"`)
	if err := export.WriteCSV(c.Writer, rs); err != nil {
		qp.logger.Error(c.Request.Context(), "CSV export failed", err, nil)
	}
}

func (qp *QueryProcessor) handleExportXLSX(c *gin.Context) {
	rs, ok := qp.lastResult(c)
	if !ok {
		return
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", `attachment; filename="query_results.xlsx"`)
	if err := export.WriteXLSX(c.Writer, rs); err != nil {
		qp.logger.Error(c.Request.Context(), "XLSX export failed", err, nil)
	}
}

// lastResult loads the session's last result set for export. It writes
// the error response itself when nothing is available.
func (qp *QueryProcessor) lastResult(c *gin.Context) (*database.ResultSet, bool) {
	ctx := c.Request.Context()

	sessionID := observability.GetSessionID(ctx)
	if sessionID == "" {
		sessionID = c.Query("session")
	}
	if sessionID == "" || qp.sessions == nil {
		err := apperrors.NewNoResultError()
		c.JSON(getErrorStatusCode(err), formatErrorResponse(err))
		return nil, false
	}

	state, err := qp.sessions.Get(ctx, sessionID)
	if err != nil {
		c.JSON(getErrorStatusCode(err), formatErrorResponse(err))
		return nil, false
	}
	if state.Result == nil {
		err := apperrors.NewNoResultError()
		c.JSON(getErrorStatusCode(err), formatErrorResponse(err))
		return nil, false
	}

	return state.Result, true
}

// formatErrorResponse formats an error into a user-friendly response
func formatErrorResponse(err error) gin.H {
	if enhancedErr, ok := err.(*apperrors.EnhancedError); ok {
		response := gin.H{
			"error": gin.H{
				"code":    enhancedErr.Code,
				"message": enhancedErr.Message,
			},
		}

		if enhancedErr.Details != "" {
			response["error"].(gin.H)["details"] = enhancedErr.Details
		}

		if enhancedErr.Suggestion != "" {
			response["error"].(gin.H)["suggestion"] = enhancedErr.Suggestion
		}

		if len(enhancedErr.Metadata) > 0 {
			response["error"].(gin.H)["metadata"] = enhancedErr.Metadata
		}

		return response
	}

	// Fallback for regular errors
	return gin.H{
		"error": gin.H{
			"code":    "INTERNAL_ERROR",
			"message": err.Error(),
		},
	}
}

// getErrorStatusCode returns the appropriate HTTP status code for an error
func getErrorStatusCode(err error) int {
	if enhancedErr, ok := err.(*apperrors.EnhancedError); ok {
		switch enhancedErr.Code {
		case apperrors.ErrCodeInvalidInput, apperrors.ErrCodeMissingRequired:
			return http.StatusBadRequest
		case apperrors.ErrCodeUnsafeSQL, apperrors.ErrCodeNotSelect,
			apperrors.ErrCodeForbiddenToken, apperrors.ErrCodeMultipleStatements:
			return http.StatusBadRequest
		case apperrors.ErrCodeNoResult, apperrors.ErrCodeSessionNotFound:
			return http.StatusNotFound
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}

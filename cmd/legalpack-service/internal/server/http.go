package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"dealtracker/cmd/legalpack-service/internal/biz"
	"dealtracker/cmd/legalpack-service/internal/conf"
	"dealtracker/cmd/legalpack-service/internal/domain"
	"dealtracker/cmd/legalpack-service/internal/service"
)

// HTTPServer serves the legal pack API.
type HTTPServer struct {
	engine  *gin.Engine
	server  *http.Server
	service *service.LegalPackService
	cfg     *conf.Config
	logger  *zap.Logger
}

// NewHTTPServer creates the server with middleware and routes wired.
func NewHTTPServer(srv *service.LegalPackService, cfg *conf.Config, logger *zap.Logger) *HTTPServer {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	s := &HTTPServer{
		engine:  engine,
		service: srv,
		cfg:     cfg,
		logger:  logger,
	}
	s.registerMiddlewares()
	s.registerRoutes()
	return s
}

// Start serves until the listener fails or Stop is called.
func (s *HTTPServer) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}
	s.logger.Info("http server listening", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests and shuts the server down.
func (s *HTTPServer) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) registerMiddlewares() {
	s.engine.Use(gin.Recovery())
	s.engine.Use(s.requestLogger())
	s.engine.Use(s.corsMiddleware())
	s.engine.Use(s.errorHandler())
}

func (s *HTTPServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		s.logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func (s *HTTPServer) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *HTTPServer) errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last()
			s.logger.Error("Request error",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
		}
	}
}

func (s *HTTPServer) registerRoutes() {
	s.engine.GET("/health", s.health)
	s.engine.GET("/ready", s.ready)
	api := s.engine.Group("/api/v1")
	api.GET("/system/check", s.systemCheck)
	packs := api.Group("/legal-packs")
	{
		packs.POST("/analyze", s.analyze)
		packs.GET("/status/:upload_id", s.uploadStatus)
		packs.GET("/:session_id", s.getSession)
		packs.POST("/:session_id/questions", s.askQuestion)
	}
}

func (s *HTTPServer) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": s.cfg.Observability.ServiceName})
}

func (s *HTTPServer) ready(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// systemCheck reports whether the external dependencies the pipeline
// shells out to or authenticates against are present.
func (s *HTTPServer) systemCheck(c *gin.Context) {
	_, popplerErr := exec.LookPath(s.cfg.OCR.PopplerPath)
	c.JSON(http.StatusOK, gin.H{
		"poppler": popplerErr == nil,
		"environment": gin.H{
			"CLAUDE_API_KEY": s.cfg.LLM.APIKey != "" || os.Getenv("CLAUDE_API_KEY") != "",
			"VISION_API_KEY": s.cfg.OCR.APIKey != "" || os.Getenv("VISION_API_KEY") != "",
		},
	})
}

func (s *HTTPServer) analyze(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		s.writeError(c, http.StatusBadRequest,
			"no file provided",
			"attach the legal pack as the 'file' field of a multipart form")
		return
	}
	if fileHeader.Size > s.cfg.Server.MaxUploadBytes {
		s.writeError(c, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("upload exceeds the %d byte limit", s.cfg.Server.MaxUploadBytes),
			"split the pack into smaller bundles and upload them separately")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		s.writeError(c, http.StatusBadRequest, "could not read upload", "try uploading the file again")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(c, http.StatusBadRequest, "could not read upload", "try uploading the file again")
		return
	}

	req := &biz.AnalyzeRequest{
		UploadID:   uuid.New().String(),
		PropertyID: c.PostForm("property_id"),
		Filename:   fileHeader.Filename,
		Data:       data,
	}

	result, err := s.service.AnalyzeUpload(c.Request.Context(), req)
	if err != nil {
		s.writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":  result.Session.ID,
		"upload_id":   req.UploadID,
		"property_id": result.Session.PropertyID,
		"analysis":    result.Session.InitialAnalysis,
		"processing_summary": gin.H{
			"transcript":   result.Report.Transcript(),
			"failed_files": result.Report.FailedFiles(),
		},
		"token_usage": result.Report.TokenUsage(),
	})
}

func (s *HTTPServer) askQuestion(c *gin.Context) {
	var body struct {
		Question string `json:"question"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		s.writeError(c, http.StatusBadRequest, "invalid request body", "send a JSON body with a 'question' field")
		return
	}

	entry, err := s.service.AskFollowUp(c.Request.Context(), c.Param("session_id"), body.Question)
	if err != nil {
		s.writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"question":  entry.Question,
		"answer":    entry.Answer,
		"timestamp": entry.Timestamp,
	})
}

func (s *HTTPServer) getSession(c *gin.Context) {
	session, err := s.service.GetSession(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		s.writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":  session.ID,
		"property_id": session.PropertyID,
		"analysis":    session.InitialAnalysis,
		"qa_history":  session.QAHistory,
		"token_usage": session.TokenUsage(),
		"created_at":  session.CreatedAt,
		"updated_at":  session.UpdatedAt,
	})
}

func (s *HTTPServer) uploadStatus(c *gin.Context) {
	status, err := s.service.GetStatus(c.Request.Context(), c.Param("upload_id"))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			s.writeError(c, http.StatusNotFound,
				"unknown upload id",
				"check the upload id, or re-upload if the status has expired")
			return
		}
		s.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// writeDomainError maps pipeline errors to a status code and a
// human-actionable suggestion.
func (s *HTTPServer) writeDomainError(c *gin.Context, err error) {
	c.Error(err)

	switch {
	case errors.Is(err, domain.ErrArchiveCorrupt):
		s.writeError(c, http.StatusBadRequest, err.Error(),
			"re-create the ZIP file and upload it again")
	case errors.Is(err, domain.ErrArchiveEmpty):
		s.writeError(c, http.StatusBadRequest, err.Error(),
			"include at least one .pdf, .doc, .docx or .txt file in the archive")
	case errors.Is(err, domain.ErrUnsupportedFileType):
		s.writeError(c, http.StatusBadRequest, err.Error(),
			"upload a .zip bundle or a .pdf, .doc, .docx or .txt document")
	case errors.Is(err, domain.ErrEmptyQuestion):
		s.writeError(c, http.StatusBadRequest, err.Error(),
			"provide a non-empty question")
	case errors.Is(err, domain.ErrInvalidSessionID):
		s.writeError(c, http.StatusBadRequest, err.Error(),
			"check the session id in the request path")
	case errors.Is(err, domain.ErrNoDocuments), errors.Is(err, domain.ErrExtractionFailed):
		s.writeError(c, http.StatusUnprocessableEntity, err.Error(),
			"check that the files are readable documents and not password protected")
	case errors.Is(err, domain.ErrPackTooLarge):
		s.writeError(c, http.StatusRequestEntityTooLarge, err.Error(),
			"split the pack into smaller bundles and analyze them separately")
	case errors.Is(err, domain.ErrSessionNotFound):
		s.writeError(c, http.StatusNotFound, err.Error(),
			"check the session id, or upload the pack again to start a new session")
	case errors.Is(err, domain.ErrSessionExists):
		s.writeError(c, http.StatusConflict, err.Error(),
			"retry the upload to receive a fresh session id")
	case errors.Is(err, domain.ErrAnalysisFailed), errors.Is(err, domain.ErrFollowUpFailed):
		s.writeError(c, http.StatusBadGateway, err.Error(),
			"the analysis backend is unavailable, try again shortly")
	case errors.Is(err, domain.ErrStorageUnavailable):
		s.writeError(c, http.StatusServiceUnavailable, err.Error(),
			"storage is temporarily unavailable, try again shortly")
	default:
		s.writeError(c, http.StatusInternalServerError, err.Error(),
			"try again, and contact support if the problem persists")
	}
}

func (s *HTTPServer) writeError(c *gin.Context, status int, message, suggestion string) {
	c.JSON(status, gin.H{
		"error":      message,
		"suggestion": suggestion,
	})
}

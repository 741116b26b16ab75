package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/muyusufspa/spgpt/internal/auth"
	"github.com/muyusufspa/spgpt/internal/document"
	"github.com/muyusufspa/spgpt/internal/domain/entity"
	"github.com/muyusufspa/spgpt/internal/engine"
	"github.com/muyusufspa/spgpt/internal/lookup"
	"github.com/muyusufspa/spgpt/internal/store"
	"go.uber.org/zap"
)

// Response represents a standard JSON response
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ConversationResponse carries the engine's reply plus the state the client
// needs to render the next step.
type ConversationResponse struct {
	Messages []engine.Message      `json:"messages"`
	Stage    engine.Stage          `json:"stage"`
	Record   *entity.InvoiceRecord `json:"record"`
}

func currentSession(c *gin.Context) *auth.Session {
	value, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	session, _ := value.(*auth.Session)
	return session
}

func respond(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func fail(c *gin.Context, status int, err error) {
	c.JSON(status, Response{Error: err.Error()})
}

func (s *Server) conversationReply(c *gin.Context, eng *engine.Engine, messages []engine.Message) {
	respond(c, ConversationResponse{
		Messages: messages,
		Stage:    eng.Stage(),
		Record:   eng.Record(),
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "spgpt",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// handleLogin handles POST /api/v1/auth/login
func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	session, err := s.sessions.Login(c.Request.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		fail(c, http.StatusUnauthorized, err)
		return
	case errors.Is(err, auth.ErrAccountDisabled):
		fail(c, http.StatusForbidden, err)
		return
	case err != nil:
		s.logger.Error("login failed", zap.Error(err))
		fail(c, http.StatusInternalServerError, err)
		return
	}

	respond(c, session)
}

// handleLogout handles POST /api/v1/auth/logout
func (s *Server) handleLogout(c *gin.Context) {
	session := currentSession(c)
	s.sessions.Logout(session.Token)
	s.dropEngine(session.Token)
	respond(c, nil)
}

// handleSession handles GET /api/v1/auth/session
func (s *Server) handleSession(c *gin.Context) {
	respond(c, currentSession(c))
}

// handleUpload handles POST /api/v1/invoice/upload. A multipart file
// replaces the session's working document and resets the conversation.
func (s *Server) handleUpload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	f, err := header.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	file := &entity.UploadedFile{
		Filename: header.Filename,
		Mimetype: header.Header.Get("Content-Type"),
		Data:     data,
	}

	eng := s.engineFor(currentSession(c))
	s.conversationReply(c, eng, eng.UploadFile(file))
}

type messageRequest struct {
	Text string `json:"text" binding:"required"`
}

// handleMessage handles POST /api/v1/invoice/message
func (s *Server) handleMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	eng := s.engineFor(currentSession(c))
	messages, err := eng.HandleMessage(c.Request.Context(), req.Text)
	if err != nil {
		s.replyEngineError(c, err)
		return
	}
	s.conversationReply(c, eng, messages)
}

type rsafRequest struct {
	Confirmed *bool `json:"confirmed" binding:"required"`
}

// handleRSAF handles POST /api/v1/invoice/rsaf
func (s *Server) handleRSAF(c *gin.Context) {
	var req rsafRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	eng := s.engineFor(currentSession(c))
	messages, err := eng.ConfirmRSAF(*req.Confirmed)
	if err != nil {
		s.replyEngineError(c, err)
		return
	}
	s.conversationReply(c, eng, messages)
}

type routingRequest struct {
	ServiceType   string  `json:"service_type" binding:"required,servicetype"`
	DepartureIATA *string `json:"departure_iata"`
	DepartureICAO *string `json:"departure_icao"`
	ArrivalIATA   *string `json:"arrival_iata"`
	ArrivalICAO   *string `json:"arrival_icao"`
}

// handleRouting handles POST /api/v1/invoice/routing
func (s *Server) handleRouting(c *gin.Context) {
	var req routingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	eng := s.engineFor(currentSession(c))
	messages, err := eng.SaveRoutingDetails(engine.RoutingDetails{
		ServiceType:   entity.ServiceType(req.ServiceType),
		DepartureIATA: req.DepartureIATA,
		DepartureICAO: req.DepartureICAO,
		ArrivalIATA:   req.ArrivalIATA,
		ArrivalICAO:   req.ArrivalICAO,
	})
	if err != nil {
		s.replyEngineError(c, err)
		return
	}
	s.conversationReply(c, eng, messages)
}

type approversRequest struct {
	Level1 *int `json:"level1"`
	Level2 *int `json:"level2"`
	Level3 *int `json:"level3"`
}

// handleApprovers handles POST /api/v1/invoice/approvers
func (s *Server) handleApprovers(c *gin.Context) {
	var req approversRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	eng := s.engineFor(currentSession(c))
	messages, err := eng.SaveApprovers(engine.ApproverSelection{
		Level1: req.Level1,
		Level2: req.Level2,
		Level3: req.Level3,
	})
	if err != nil {
		s.replyEngineError(c, err)
		return
	}
	s.conversationReply(c, eng, messages)
}

// handleClearSession handles POST /api/v1/invoice/clear
func (s *Server) handleClearSession(c *gin.Context) {
	eng := s.engineFor(currentSession(c))
	s.conversationReply(c, eng, eng.ClearSession())
}

// handleGetRecord handles GET /api/v1/invoice/record
func (s *Server) handleGetRecord(c *gin.Context) {
	eng := s.engineFor(currentSession(c))
	respond(c, gin.H{
		"stage":  eng.Stage(),
		"record": eng.Record(),
	})
}

func (s *Server) replyEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrBusy):
		fail(c, http.StatusConflict, err)
	case errors.Is(err, engine.ErrInvalidTransition):
		fail(c, http.StatusConflict, err)
	case errors.Is(err, engine.ErrNoRecord), errors.Is(err, engine.ErrNoFile):
		fail(c, http.StatusBadRequest, err)
	default:
		s.logger.Error("conversation failed", zap.Error(err))
		fail(c, http.StatusInternalServerError, err)
	}
}

// handleGetHistory handles GET /api/v1/history
func (s *Server) handleGetHistory(c *gin.Context) {
	entries, err := s.prefs.LoadHistory()
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	respond(c, entries)
}

// handleClearHistory handles DELETE /api/v1/history
func (s *Server) handleClearHistory(c *gin.Context) {
	if err := s.prefs.ClearHistory(); err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	s.logActivity(c, entity.ModuleInvoice, "history_cleared", "invoice history")
	respond(c, nil)
}

// handleGetSettings handles GET /api/v1/settings
func (s *Server) handleGetSettings(c *gin.Context) {
	settings, err := s.prefs.LoadSettings()
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	respond(c, settings)
}

// handleSaveSettings handles PUT /api/v1/settings
func (s *Server) handleSaveSettings(c *gin.Context) {
	var settings entity.UserSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if err := s.prefs.SaveSettings(settings); err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	s.logActivity(c, entity.ModuleSettings, "settings_saved", settings.Theme)
	respond(c, settings)
}

type qaRequest struct {
	Question string `json:"question" binding:"required"`
}

// handleQA handles POST /api/v1/qa
func (s *Server) handleQA(c *gin.Context) {
	var req qaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	answer, err := s.qa.Answer(c.Request.Context(), req.Question)
	if err != nil {
		fail(c, http.StatusBadGateway, err)
		return
	}
	s.logActivity(c, entity.ModuleQA, "question", req.Question)
	respond(c, gin.H{"answer": answer})
}

// handleDocQA handles POST /api/v1/qa/document. The question and document
// arrive in one multipart form.
func (s *Server) handleDocQA(c *gin.Context) {
	question := c.PostForm("question")
	if question == "" {
		fail(c, http.StatusBadRequest, errors.New("question is required"))
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	f, err := header.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	file := &entity.UploadedFile{
		Filename: header.Filename,
		Mimetype: header.Header.Get("Content-Type"),
		Data:     data,
	}

	answer, err := s.qa.AnswerFromDocument(c.Request.Context(), question, file)
	if errors.Is(err, document.ErrUnsupportedFileType) {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		fail(c, http.StatusBadGateway, err)
		return
	}
	s.logActivity(c, entity.ModuleDocumentQA, "question", header.Filename)
	respond(c, gin.H{"answer": answer})
}

// handleAirports handles GET /api/v1/lookup/airports
func (s *Server) handleAirports(c *gin.Context) {
	airports, err := s.airports.FetchAirports(c.Request.Context())
	if errors.Is(err, lookup.ErrLookupUnavailable) {
		fail(c, http.StatusServiceUnavailable, err)
		return
	}
	if err != nil {
		fail(c, http.StatusBadGateway, err)
		return
	}
	respond(c, airports)
}

// handleApproverLevel handles GET /api/v1/lookup/approvers/:level
func (s *Server) handleApproverLevel(c *gin.Context) {
	level, err := strconv.Atoi(c.Param("level"))
	if err != nil || level < 1 || level > 3 {
		fail(c, http.StatusBadRequest, errors.New("level must be 1, 2 or 3"))
		return
	}

	approvers, err := s.approvers.FetchApprovers(c.Request.Context(), level)
	if err != nil {
		fail(c, http.StatusBadGateway, err)
		return
	}
	respond(c, approvers)
}

// handleListUsers handles GET /api/v1/admin/users
func (s *Server) handleListUsers(c *gin.Context) {
	users, err := s.users.ListUsers(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	respond(c, users)
}

type createUserRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	IsAdmin  bool   `json:"is_admin"`
}

// handleCreateUser handles POST /api/v1/admin/users
func (s *Server) handleCreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	session := currentSession(c)
	user, err := s.sessions.CreateUser(c.Request.Context(), session.User.Username, req.Username, req.Password, req.IsAdmin)
	switch {
	case errors.Is(err, auth.ErrPasswordTooShort), errors.Is(err, auth.ErrInvalidUsername):
		fail(c, http.StatusBadRequest, err)
		return
	case errors.Is(err, store.ErrDuplicateUsername):
		fail(c, http.StatusConflict, err)
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: user})
}

// handleToggleActive handles POST /api/v1/admin/users/:id/toggle-active
func (s *Server) handleToggleActive(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	user, err := s.users.ToggleActive(c.Request.Context(), id)
	if err != nil {
		s.replyStoreError(c, err)
		return
	}
	s.logActivity(c, entity.ModuleAdmin, "toggle_active", user.Username)
	respond(c, user)
}

// handleToggleAdmin handles POST /api/v1/admin/users/:id/toggle-admin
func (s *Server) handleToggleAdmin(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	user, err := s.users.ToggleAdmin(c.Request.Context(), id)
	if err != nil {
		s.replyStoreError(c, err)
		return
	}
	s.logActivity(c, entity.ModuleAdmin, "toggle_admin", user.Username)
	respond(c, user)
}

// handleDeleteUser handles DELETE /api/v1/admin/users/:id. Deleting your
// own account or the last administrator is refused.
func (s *Server) handleDeleteUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	session := currentSession(c)
	if session.User.ID == id {
		fail(c, http.StatusBadRequest, errors.New("you cannot delete your own account"))
		return
	}

	if err := s.users.DeleteUser(c.Request.Context(), id); err != nil {
		s.replyStoreError(c, err)
		return
	}
	s.logActivity(c, entity.ModuleAdmin, "user_deleted", strconv.FormatInt(id, 10))
	respond(c, nil)
}

// handleActivity handles GET /api/v1/admin/activity
func (s *Server) handleActivity(c *gin.Context) {
	entries, err := s.users.ListActivity(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	respond(c, entries)
}

func (s *Server) replyStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrUserNotFound):
		fail(c, http.StatusNotFound, err)
	case errors.Is(err, store.ErrCannotDeleteLastAdmin):
		fail(c, http.StatusBadRequest, err)
	default:
		s.logger.Error("account operation failed", zap.Error(err))
		fail(c, http.StatusInternalServerError, err)
	}
}

func (s *Server) logActivity(c *gin.Context, module, action, subject string) {
	session := currentSession(c)
	if session == nil || s.activity == nil {
		return
	}
	if err := s.activity.AppendActivity(session.User.Username, module, action, subject); err != nil {
		s.logger.Warn("failed to append activity entry",
			zap.String("action", action),
			zap.Error(err))
	}
}

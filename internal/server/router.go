package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/codenotes/internal/autosave"
	"github.com/MarcoPoloResearchLab/codenotes/internal/notes"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultAppName           = "code-notes"
	defaultHeartbeatInterval = 25 * time.Second
	defaultMaxImportBytes    = 16 << 20
)

var (
	errMissingNotesStore = errors.New("notes store dependency required")
	errMissingAutosave   = errors.New("autosave dependency required")
)

type Dependencies struct {
	Store    *notes.Store
	Autosave *autosave.Debouncer
	// Realtime is created and subscribed to Store when nil.
	Realtime          *RealtimeDispatcher
	AppName           string
	Clock             func() time.Time
	HeartbeatInterval time.Duration
	MaxImportBytes    int64
	Logger            *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Store == nil {
		return nil, errMissingNotesStore
	}
	if deps.Autosave == nil {
		return nil, errMissingAutosave
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	appName := strings.TrimSpace(deps.AppName)
	if appName == "" {
		appName = defaultAppName
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}
	maxImportBytes := deps.MaxImportBytes
	if maxImportBytes <= 0 {
		maxImportBytes = defaultMaxImportBytes
	}
	realtime := deps.Realtime
	if realtime == nil {
		realtime = NewRealtimeDispatcher()
		deps.Store.Subscribe(NewChangePublisher(realtime, clock))
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	handler := &httpHandler{
		store:     deps.Store,
		autosave:  deps.Autosave,
		realtime:  realtime,
		appName:   appName,
		clock:     clock,
		heartbeat: heartbeat,
		maxImport: maxImportBytes,
		logger:    logger,
	}

	router.GET("/languages", handler.handleListLanguages)
	router.GET("/events", handler.handleEvents)

	notesGroup := router.Group("/notes")
	notesGroup.GET("", handler.handleListNotes)
	notesGroup.POST("", handler.handleCreateNote)
	notesGroup.GET("/export", handler.handleExport)
	notesGroup.POST("/import", handler.handleImport)
	notesGroup.GET("/:id", handler.handleGetNote)
	notesGroup.PATCH("/:id", handler.handleUpdateNote)
	notesGroup.PUT("/:id/autosave", handler.handleAutosave)
	notesGroup.DELETE("/:id", handler.handleDeleteNote)

	return router, nil
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders:  []string{"Content-Type", "Last-Event-ID"},
		ExposeHeaders: []string{"Content-Disposition"},
		MaxAge:        12 * time.Hour,
	})
}

type httpHandler struct {
	store     *notes.Store
	autosave  *autosave.Debouncer
	realtime  *RealtimeDispatcher
	appName   string
	clock     func() time.Time
	heartbeat time.Duration
	maxImport int64
	logger    *zap.Logger
}

type notePayload struct {
	Title    *string `json:"title"`
	Content  *string `json:"content"`
	Language *string `json:"language"`
}

type autosavePayload struct {
	Content *string `json:"content"`
}

type listNotesResponse struct {
	Notes []notes.Note `json:"notes"`
}

type importResponse struct {
	Added      int          `json:"added"`
	Duplicates int          `json:"duplicates"`
	Rejected   int          `json:"rejected"`
	Notes      []notes.Note `json:"notes"`
}

type languagePayload struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type realtimePayload struct {
	Kind      string   `json:"kind"`
	NoteIDs   []string `json:"noteIds"`
	Count     int      `json:"count"`
	Timestamp string   `json:"timestamp"`
	Source    string   `json:"source"`
}

func (h *httpHandler) handleListNotes(c *gin.Context) {
	c.JSON(http.StatusOK, listNotesResponse{Notes: h.store.Search(c.Query("q"))})
}

func (h *httpHandler) handleGetNote(c *gin.Context) {
	note, ok := h.store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "note_not_found"})
		return
	}
	c.JSON(http.StatusOK, note)
}

func (h *httpHandler) handleCreateNote(c *gin.Context) {
	var request notePayload
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&request); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
	}
	patch, ok := buildPatch(request)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_language"})
		return
	}

	note, err := h.store.Create(c.Request.Context())
	if err != nil {
		h.respondError(c, "failed to create note", err)
		return
	}
	if !patch.IsEmpty() {
		updated, _, err := h.store.Update(c.Request.Context(), note.ID, patch)
		if err != nil {
			h.respondError(c, "failed to apply fields to new note", err)
			return
		}
		note = updated
	}
	c.JSON(http.StatusCreated, note)
}

func (h *httpHandler) handleUpdateNote(c *gin.Context) {
	var request notePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	patch, ok := buildPatch(request)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_language"})
		return
	}

	note, found, err := h.store.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.respondError(c, "failed to update note", err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "note_not_found"})
		return
	}
	c.JSON(http.StatusOK, note)
}

func (h *httpHandler) handleAutosave(c *gin.Context) {
	var request autosavePayload
	if err := c.ShouldBindJSON(&request); err != nil || request.Content == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	id := c.Param("id")
	if _, ok := h.store.Get(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "note_not_found"})
		return
	}
	if !h.autosave.Schedule(id, *request.Content) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "autosave_stopped"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": id, "pending": true})
}

func (h *httpHandler) handleDeleteNote(c *gin.Context) {
	found, err := h.store.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "failed to delete note", err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "note_not_found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleExport(c *gin.Context) {
	payload, err := h.store.ExportAll()
	if err != nil {
		h.respondError(c, "failed to export notes", err)
		return
	}
	filename := notes.ExportFileName(h.appName, h.clock())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/json", payload)
}

func (h *httpHandler) handleImport(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxImport))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload_too_large", "limit": tooLarge.Limit})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	records, err := notes.DecodeImport(body)
	if err != nil {
		h.logger.Warn("rejected import payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_format"})
		return
	}
	result, err := h.store.ImportMany(c.Request.Context(), records)
	if err != nil {
		h.respondError(c, "failed to import notes", err)
		return
	}
	c.JSON(http.StatusOK, importResponse{
		Added:      len(result.Added),
		Duplicates: result.Duplicates,
		Rejected:   result.Rejected,
		Notes:      result.Added,
	})
}

func (h *httpHandler) handleListLanguages(c *gin.Context) {
	languages := notes.Languages()
	payload := make([]languagePayload, 0, len(languages))
	for _, language := range languages {
		payload = append(payload, languagePayload{ID: language.String(), Label: language.Label()})
	}
	c.JSON(http.StatusOK, gin.H{"languages": payload})
}

func (h *httpHandler) handleEvents(c *gin.Context) {
	ctx := c.Request.Context()
	stream, cleanup := h.realtime.Subscribe(ctx)
	defer cleanup()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent(realtimeEventReady, gin.H{"source": realtimeSourceBackend})
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Stream(func(_ io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case message, ok := <-stream:
			if !ok {
				return false
			}
			c.SSEvent(message.EventType, realtimePayload{
				Kind:      string(message.Kind),
				NoteIDs:   message.NoteIDs,
				Count:     message.Count,
				Timestamp: notes.FormatTimestamp(message.Timestamp),
				Source:    realtimeSourceBackend,
			})
			return true
		case <-ticker.C:
			c.SSEvent(realtimeEventHeartbeat, gin.H{"timestamp": notes.FormatTimestamp(h.clock())})
			return true
		}
	})
}

// respondError answers 500 and includes the service error code when there is one.
func (h *httpHandler) respondError(c *gin.Context, message string, err error) {
	h.logger.Error(message, zap.Error(err))
	response := gin.H{"error": "internal_error"}
	var serviceErr *notes.ServiceError
	if errors.As(err, &serviceErr) {
		response["code"] = serviceErr.Code()
	}
	c.JSON(http.StatusInternalServerError, response)
}

func buildPatch(request notePayload) (notes.Patch, bool) {
	patch := notes.Patch{Title: request.Title, Content: request.Content}
	if request.Language != nil {
		language, ok := notes.ParseLanguage(*request.Language)
		if !ok && strings.TrimSpace(*request.Language) != "" {
			return notes.Patch{}, false
		}
		patch.Language = &language
	}
	return patch, true
}

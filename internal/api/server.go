package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/AglarEdain/raspberryday/internal/models"
	"github.com/AglarEdain/raspberryday/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Server struct {
	router *gin.Engine
	queue  *services.QueueService
	relay  *services.CommandRelay
	hub    *ViewerHub
}

func NewServer(queue *services.QueueService, relay *services.CommandRelay, hub *ViewerHub) *Server {
	router := gin.Default()
	s := &Server{
		router: router,
		queue:  queue,
		relay:  relay,
		hub:    hub,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")
	{
		api.POST("/queue", s.enqueue)
		api.GET("/queue/next", s.nextItems)
		api.GET("/queue/stats", s.queueStats)
		api.POST("/queue/:id/displayed", s.markDisplayed)
		api.PUT("/queue/:id/position", s.reorderEntry)
		api.DELETE("/queue/history", s.cleanupQueue)
		api.POST("/media", s.registerMedia)
		api.GET("/media/:id", s.mediaInfo)
		api.DELETE("/media/:id", s.deleteMedia)
		api.POST("/remote/command", s.remoteCommand)
	}
	s.router.GET("/ws", s.viewerSocket)
}

func (s *Server) Start(addr string) error {
	return s.router.Run(addr)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, services.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type enqueueRequest struct {
	MediaID       int64      `json:"media_id" binding:"required"`
	ScheduledTime *time.Time `json:"scheduled_time"`
}

func (s *Server) enqueue(c *gin.Context) {
	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := s.queue.Enqueue(c.Request.Context(), req.MediaID, req.ScheduledTime)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	s.hub.Broadcast("queue.updated", gin.H{"action": "enqueued", "entry_id": entry.ID})
	c.JSON(http.StatusCreated, entry)
}

func (s *Server) nextItems(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	items, err := s.queue.NextItems(c.Request.Context(), limit)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) queueStats(c *gin.Context) {
	stats, err := s.queue.Stats(c.Request.Context())
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (s *Server) markDisplayed(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entry ID"})
		return
	}

	entry, err := s.queue.MarkDisplayed(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	s.hub.Broadcast("queue.updated", gin.H{"action": "displayed", "entry_id": entry.ID})
	c.JSON(http.StatusOK, entry)
}

type reorderRequest struct {
	Position *int `json:"position" binding:"required"`
}

func (s *Server) reorderEntry(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entry ID"})
		return
	}

	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	items, err := s.queue.Reorder(c.Request.Context(), id, *req.Position)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	s.hub.Broadcast("queue.updated", gin.H{"action": "reordered", "entry_id": id})
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) cleanupQueue(c *gin.Context) {
	maxAgeHours, err := strconv.Atoi(c.DefaultQuery("max_age_hours", "24"))
	if err != nil || maxAgeHours < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid max_age_hours"})
		return
	}

	deleted, err := s.queue.Cleanup(c.Request.Context(), time.Duration(maxAgeHours)*time.Hour)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

type registerMediaRequest struct {
	UserID       int64  `json:"user_id"`
	Filename     string `json:"filename" binding:"required"`
	OriginalName string `json:"original_name"`
	Type         string `json:"type" binding:"required"`
	Size         int64  `json:"size"`
	Caption      string `json:"caption"`
	CategoryID   *int64 `json:"category_id"`
}

func (s *Server) registerMedia(c *gin.Context) {
	var req registerMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	media, err := s.queue.RegisterMedia(c.Request.Context(), &models.Media{
		UserID:       req.UserID,
		Filename:     req.Filename,
		OriginalName: req.OriginalName,
		Type:         req.Type,
		Size:         req.Size,
		Caption:      req.Caption,
		CategoryID:   req.CategoryID,
	})
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, media)
}

func (s *Server) mediaInfo(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid media ID"})
		return
	}

	media, err := s.queue.MediaInfo(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, media)
}

func (s *Server) deleteMedia(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid media ID"})
		return
	}

	if err := s.queue.RemoveMedia(c.Request.Context(), id); err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	s.hub.Broadcast("queue.updated", gin.H{"action": "media_deleted", "media_id": id})
	c.JSON(http.StatusOK, gin.H{"message": "media deleted"})
}

type commandRequest struct {
	Command string `json:"command" binding:"required"`
}

func (s *Server) remoteCommand(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Unknown tokens are logged and dropped by the relay; the sender
	// always gets an accepted response.
	s.relay.HandleCommand(c.Request.Context(), req.Command)
	c.JSON(http.StatusAccepted, gin.H{"message": "command accepted"})
}

func (s *Server) viewerSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}

	sessionID := uuid.NewString()
	session := s.hub.Register(sessionID, conn)
	s.relay.Attach(c.Request.Context(), sessionID)

	go session.readPump(func() {
		s.relay.Detach(sessionID)
		s.hub.Unregister(sessionID)
	})
}

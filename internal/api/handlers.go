package api

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"studymate/internal/attendance"
	"studymate/internal/auth"
	"studymate/internal/chatbot"
	"studymate/internal/extract"
	"studymate/internal/ingest"
	"studymate/internal/models"
)

const maxUploadBytes = 10 << 20 // 10 MB

// Handler wires HTTP routes to the ingest, chatbot, and attendance services.
type Handler struct {
	auth       *auth.Service
	ingest     *ingest.Service
	chatbot    *chatbot.Service
	attendance *attendance.Service
	fileBase   string
}

// NewHandler constructs a Handler instance.
func NewHandler(authService *auth.Service, ingestService *ingest.Service, chatbotService *chatbot.Service, attendanceService *attendance.Service, fileBase string) *Handler {
	return &Handler{
		auth:       authService,
		ingest:     ingestService,
		chatbot:    chatbotService,
		attendance: attendanceService,
		fileBase:   fileBase,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.GET("/health", h.health)
	api.POST("/users/register", h.registerUser)
	api.POST("/users/login", h.loginUser)

	protected := api.Group("")
	protected.Use(h.auth.Middleware())
	protected.POST("/materials", h.uploadMaterial)
	protected.GET("/materials", h.listMaterials)
	protected.GET("/materials/:id/download", h.downloadMaterial)
	protected.POST("/materials/reprocess", h.reprocessMaterials)
	protected.POST("/chatbot/chat", h.chat)
	protected.POST("/attendance/mark", h.markAttendance)
	protected.GET("/attendance/records", h.attendanceRecords)
	protected.GET("/attendance/stats/:studentId", h.attendanceStats)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) authorizedUserID(c *gin.Context) (int64, bool) {
	userID, ok := auth.UserIDFromContext(c)
	if !ok || userID <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return 0, false
	}
	return userID, true
}

// User create&login interface
type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) registerUser(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := h.auth.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"created_at": user.CreatedAt,
	})
}

func (h *Handler) loginUser(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	authToken, err := h.auth.IssueToken(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"created_at": user.CreatedAt,
		"auth_token": authToken,
	})
}

// Material upload interface. The file extension is validated against the
// extractor table before any bytes are written to disk; extraction itself
// runs in the background after the response is sent.
func (h *Handler) uploadMaterial(c *gin.Context) {
	if _, ok := h.authorizedUserID(c); !ok {
		return
	}
	if err := c.Request.ParseMultipartForm(maxUploadBytes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if file.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	originalName := filepath.Base(file.Filename)
	if _, err := extract.ForExtension(filepath.Ext(originalName)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	semester, err := strconv.Atoi(c.PostForm("semester"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid semester"})
		return
	}
	category, err := models.ParseCategory(c.PostForm("category"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	destDir, destPath, storedName := h.getUniqueFilePath(string(category), originalName)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create directory failed"})
		return
	}
	if err := c.SaveUploadedFile(file, destPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save file failed"})
		return
	}

	material, err := h.ingest.CreateMaterial(c.Request.Context(), ingest.CreateParams{
		Title:        c.PostForm("title"),
		Description:  c.PostForm("description"),
		Category:     category,
		Subject:      c.PostForm("subject"),
		Semester:     semester,
		FileName:     storedName,
		OriginalName: originalName,
		StoredPath:   destPath,
	})
	if err != nil {
		_ = os.Remove(destPath)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// The upload response does not wait for extraction. A full queue leaves
	// the material pending for a later reprocess run.
	if _, err := h.ingest.Enqueue(material.ID); err != nil {
		log.Printf("enqueue extraction for material %d: %v", material.ID, err)
	}
	c.JSON(http.StatusCreated, gin.H{"material": material})
}

func (h *Handler) listMaterials(c *gin.Context) {
	if _, ok := h.authorizedUserID(c); !ok {
		return
	}
	var filter ingest.ListFilter
	if raw := c.Query("category"); raw != "" {
		category, err := models.ParseCategory(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filter.Category = category
	}
	filter.Subject = c.Query("subject")
	if raw := c.Query("semester"); raw != "" {
		semester, err := strconv.Atoi(raw)
		if err != nil || semester < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid semester"})
			return
		}
		filter.Semester = semester
	}
	materials, err := h.ingest.ListMaterials(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if materials == nil {
		materials = make([]models.Material, 0)
	}
	c.JSON(http.StatusOK, gin.H{"materials": materials})
}

func (h *Handler) downloadMaterial(c *gin.Context) {
	if _, ok := h.authorizedUserID(c); !ok {
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid material id"})
		return
	}
	material, err := h.ingest.GetMaterial(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "material not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.FileAttachment(material.StoredPath, material.OriginalName)
}

func (h *Handler) reprocessMaterials(c *gin.Context) {
	if _, ok := h.authorizedUserID(c); !ok {
		return
	}
	report, err := h.ingest.ReprocessAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report})
}

// Chat interface. A well-formed request always receives a reply; provider
// failures degrade to the deterministic fallback inside the service.
func (h *Handler) chat(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	var req struct {
		Message   string `json:"message"`
		SessionID string `json:"session_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}
	if req.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}
	resp := h.chatbot.Chat(c.Request.Context(), chatbot.ChatRequest{
		Message:   req.Message,
		SessionID: req.SessionID,
		UserID:    userID,
	})
	c.JSON(http.StatusOK, resp)
}

type markAttendanceRequest struct {
	Date    string                 `json:"date"` // YYYY-MM-DD
	Subject string                 `json:"subject"`
	Entries []attendance.MarkEntry `json:"attendance"`
}

func (h *Handler) markAttendance(c *gin.Context) {
	if _, ok := h.authorizedUserID(c); !ok {
		return
	}
	var req markAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
		return
	}
	if err := h.attendance.Mark(c.Request.Context(), date, req.Subject, req.Entries); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": len(req.Entries)})
}

func (h *Handler) attendanceRecords(c *gin.Context) {
	if _, ok := h.authorizedUserID(c); !ok {
		return
	}
	studentID, err := strconv.ParseInt(c.Query("student_id"), 10, 64)
	if err != nil || studentID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student id"})
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
	}
	records, err := h.attendance.Records(c.Request.Context(), studentID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if records == nil {
		records = make([]models.AttendanceRecord, 0)
	}
	c.JSON(http.StatusOK, gin.H{"attendance": records})
}

func (h *Handler) attendanceStats(c *gin.Context) {
	if _, ok := h.authorizedUserID(c); !ok {
		return
	}
	studentID, err := strconv.ParseInt(c.Param("studentId"), 10, 64)
	if err != nil || studentID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student id"})
		return
	}
	summary, err := h.attendance.Summarize(c.Request.Context(), studentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if summary == nil {
		c.JSON(http.StatusOK, gin.H{"stats": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": summary})
}

func (h *Handler) getFilePath(category, filename string) (string, string) {
	destDir := filepath.Join(h.fileBase, category)
	destPath := filepath.Join(destDir, filename)
	return destDir, destPath
}

// getUniqueFilePath avoids clobbering an existing upload with the same name.
func (h *Handler) getUniqueFilePath(category, filename string) (string, string, string) {
	destDir, destPath := h.getFilePath(category, filename)
	if _, err := os.Stat(destPath); os.IsNotExist(err) {
		return destDir, destPath, filename
	}
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	for idx := 1; idx <= 1000; idx++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, idx, ext)
		dir, path := h.getFilePath(category, candidate)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return dir, path, candidate
		}
	}
	fallback := fmt.Sprintf("%s-%d%s", base, time.Now().UnixNano(), ext)
	return destDir, filepath.Join(destDir, fallback), fallback
}

package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"editorimages/internal/models"
)

// uploadPrefix is the directory under storage_path that editor uploads
// land in; it is also part of every image URL.
const uploadPrefix = "editor_uploads"

// Store is the persistence surface the HTTP layer needs.
type Store interface {
	SaveImage(ctx context.Context, img *models.EditorImage) error
	GetImage(ctx context.Context, id int64) (*models.EditorImage, error)
	ListImages(ctx context.Context) ([]models.EditorImage, error)
	UpdateImage(ctx context.Context, img *models.EditorImage) error
	DeleteImage(ctx context.Context, id int64) error
	DeleteImageFile(ctx context.Context, img models.EditorImage) error
}

// Producer enqueues image ids for the thumbnail processor. Satisfied by
// *kafka.Writer.
type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Server struct {
	cfg      *models.Config
	router   *gin.Engine
	db       Store
	producer Producer
	log      *logrus.Logger
}

func NewServer(cfg *models.Config, db Store, producer Producer, log *logrus.Logger) *Server {
	r := gin.Default()
	r.Static(cfg.MediaURL, cfg.StoragePath)

	s := &Server{cfg: cfg, router: r, db: db, producer: producer, log: log}

	api := r.Group("/api")
	api.Use(AuthRequired(cfg.AuthSecret))
	api.POST("/upload", s.handleUpload)
	api.GET("/images", s.handleListImages)
	api.DELETE("/images/:id", s.handleDeleteImage)

	return s
}

func (s *Server) Start() error {
	return s.router.Run(s.cfg.ServerAddr)
}

func (s *Server) Stop() {
	// No shutdown needed for gin
}

// Router exposes the engine for httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleUpload(c *gin.Context) {
	const op = "server.handleUpload"

	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no image file provided"})
		return
	}

	if !strings.HasPrefix(file.Header.Get("Content-Type"), "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is not an image"})
		return
	}

	if file.Size > s.cfg.MaxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large"})
		return
	}

	name := uuid.New().String() + strings.ToLower(filepath.Ext(file.Filename))
	storedPath := filepath.Join(s.cfg.StoragePath, uploadPrefix, name)
	if err := os.MkdirAll(filepath.Dir(storedPath), 0755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	dst, err := os.Create(storedPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	defer dst.Close()

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	defer src.Close()

	if _, err := io.Copy(dst, src); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	img := models.EditorImage{
		FilePath:   storedPath,
		URL:        path.Join(s.cfg.MediaURL, uploadPrefix, name),
		Status:     models.StatusPending,
		UploadedBy: currentUser(c),
	}
	if err := s.db.SaveImage(c.Request.Context(), &img); err != nil {
		os.Remove(storedPath)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	// Thumbnailing is best effort; the upload already succeeded.
	msg := kafka.Message{Value: []byte(strconv.FormatInt(img.ID, 10))}
	if err := s.producer.WriteMessages(c.Request.Context(), msg); err != nil {
		s.log.WithField("image_id", img.ID).Warnf("could not enqueue image for processing: %v", err)
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "id": img.ID, "url": img.URL})
}

func (s *Server) handleListImages(c *gin.Context) {
	const op = "server.handleListImages"

	images, err := s.db.ListImages(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	if images == nil {
		images = []models.EditorImage{}
	}
	c.JSON(http.StatusOK, gin.H{"images": images})
}

func (s *Server) handleDeleteImage(c *gin.Context) {
	const op = "server.handleDeleteImage"

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image id"})
		return
	}

	img, err := s.db.GetImage(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	if err := s.db.DeleteImageFile(c.Request.Context(), *img); err != nil {
		s.log.WithField("image_id", id).Warnf("could not delete stored file: %v", err)
	}
	if err := s.db.DeleteImage(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	c.Status(http.StatusNoContent)
}

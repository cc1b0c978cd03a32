package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/risingstars/video-pipeline/internal/apperror"
	"github.com/risingstars/video-pipeline/internal/domain/entity"
	"github.com/risingstars/video-pipeline/internal/usecase"
	"go.uber.org/zap"
)

// multipartOverhead is the slack allowed on top of the file limit for form
// boundaries and the title field.
const multipartOverhead = 1 << 20

type Uploader interface {
	Execute(ctx context.Context, in usecase.UploadVideoInput) (*usecase.UploadVideoOutput, error)
}

type VideoManager interface {
	ListOwned(ctx context.Context, ownerID int64) ([]entity.VideoRecord, error)
	Get(ctx context.Context, ownerID, videoID int64) (*entity.VideoRecord, error)
	Delete(ctx context.Context, ownerID, videoID int64) error
	ListPublic(ctx context.Context) ([]entity.VideoRecord, error)
}

type Voter interface {
	Cast(ctx context.Context, userID, videoID int64) (int, error)
	Rankings(ctx context.Context, skip, limit int) ([]entity.RankingEntry, error)
}

type Handler struct {
	uploads       Uploader
	videos        VideoManager
	votes         Voter
	publicBaseURL string
	maxUpload     int64
	logger        *zap.Logger
}

type HandlerConfig struct {
	PublicBaseURL string
	MaxUploadSize int64
}

func NewHandler(uploads Uploader, videos VideoManager, votes Voter, logger *zap.Logger, cfg HandlerConfig) *Handler {
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = usecase.MaxUploadBytes
	}
	return &Handler{
		uploads:       uploads,
		videos:        videos,
		votes:         votes,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		maxUpload:     cfg.MaxUploadSize,
		logger:        logger,
	}
}

type videoResponse struct {
	ID           int64      `json:"video_id"`
	Title        string     `json:"title"`
	Status       string     `json:"status"`
	UploadedAt   time.Time  `json:"uploaded_at"`
	ProcessedAt  *time.Time `json:"processed_at"`
	ProcessedURL *string    `json:"processed_url"`
	Votes        int        `json:"votes"`
}

type rankingResponse struct {
	Position int    `json:"position"`
	Player   string `json:"player"`
	Votes    int64  `json:"votes"`
}

func (h *Handler) toResponse(v entity.VideoRecord) videoResponse {
	resp := videoResponse{
		ID:          v.ID,
		Title:       v.Title,
		Status:      string(v.Status),
		UploadedAt:  v.UploadedAt,
		ProcessedAt: v.ProcessedAt,
		Votes:       v.VotesCount,
	}
	if v.IsProcessed() {
		url := h.publicBaseURL + "/" + v.Filename
		resp.ProcessedURL = &url
	}
	return resp
}

func (h *Handler) toResponses(videos []entity.VideoRecord) []videoResponse {
	out := make([]videoResponse, 0, len(videos))
	for _, v := range videos {
		out = append(out, h.toResponse(v))
	}
	return out
}

// Upload accepts multipart fields "title" and "video_file". The title may
// also come as a query parameter.
func (h *Handler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+multipartOverhead)

	header, err := c.FormFile("video_file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(c, apperror.ErrFileTooLarge)
			return
		}
		h.respondError(c, apperror.Wrap(err, apperror.WithMessage(apperror.ErrBadRequest, "A video_file upload is required")))
		return
	}

	file, err := header.Open()
	if err != nil {
		h.respondError(c, apperror.Wrap(err, apperror.ErrInternal))
		return
	}
	defer file.Close()

	title := c.PostForm("title")
	if title == "" {
		title = c.Query("title")
	}

	out, err := h.uploads.Execute(c.Request.Context(), usecase.UploadVideoInput{
		Title:    title,
		Filename: header.Filename,
		Size:     header.Size,
		Content:  file,
		OwnerID:  userID(c),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Video uploaded. Processing in progress",
		"task_id": out.VideoID,
	})
}

func (h *Handler) ListMine(c *gin.Context) {
	videos, err := h.videos.ListOwned(c.Request.Context(), userID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.toResponses(videos))
}

func (h *Handler) Detail(c *gin.Context) {
	id, ok := h.videoID(c)
	if !ok {
		return
	}
	video, err := h.videos.Get(c.Request.Context(), userID(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.toResponse(*video))
}

func (h *Handler) Delete(c *gin.Context) {
	id, ok := h.videoID(c)
	if !ok {
		return
	}
	if err := h.videos.Delete(c.Request.Context(), userID(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Video deleted", "video_id": id})
}

func (h *Handler) ListPublic(c *gin.Context) {
	videos, err := h.videos.ListPublic(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.toResponses(videos))
}

func (h *Handler) Vote(c *gin.Context) {
	id, ok := h.videoID(c)
	if !ok {
		return
	}
	total, err := h.votes.Cast(c.Request.Context(), userID(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     "Vote registered",
		"video_id":    id,
		"total_votes": total,
	})
}

func (h *Handler) Rankings(c *gin.Context) {
	skip, err1 := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, err2 := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(usecase.DefaultRankingLimit)))
	if err := errors.Join(err1, err2); err != nil {
		h.respondError(c, apperror.Wrap(err, apperror.WithMessage(apperror.ErrBadRequest, "skip and limit must be integers")))
		return
	}

	entries, err := h.votes.Rankings(c.Request.Context(), skip, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	out := make([]rankingResponse, 0, len(entries))
	for i, e := range entries {
		out = append(out, rankingResponse{Position: skip + i + 1, Player: e.Player, Votes: e.Votes})
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) videoID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.respondError(c, apperror.WithMessage(apperror.ErrBadRequest, "Video id must be a positive integer"))
		return 0, false
	}
	return id, true
}

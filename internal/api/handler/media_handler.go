package handler

import (
	"Solace/internal/api/dto"
	"Solace/internal/pkg/minio"
	"Solace/internal/pkg/response"
	"Solace/internal/pkg/util"
	"Solace/internal/service"
	log "log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

const maxUploadSize = 20 << 20

type MediaHandler struct {
	storage minio.Storage
}

func NewMediaHandler(storage minio.Storage) *MediaHandler {
	return &MediaHandler{storage: storage}
}

// Upload 上传聊天附件，返回的 url 作为非文本消息的 content
func (s *MediaHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil || file.Size <= 0 || file.Size > maxUploadSize {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	reader, err := file.Open()
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	defer func() { _ = reader.Close() }()

	mimeType, err := util.GetSafeContentType(reader)
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	contentType := util.ChatContentType(mimeType)
	if contentType == "" {
		response.Error(c, service.ErrFileNotSupported)
		return
	}

	objectName := util.MediaObjectName(file.Filename, time.Now())
	url, err := s.storage.Upload(c.Request.Context(), objectName, reader, file.Size, mimeType)
	if err != nil {
		log.ErrorContext(c.Request.Context(), "MinIO upload failed", "err", err)
		response.Error(c, service.UnExpectedError)
		return
	}

	log.InfoContext(c.Request.Context(), "media upload success", "object", objectName, "type", contentType)
	response.Success(c, &dto.MediaUploadDTO{
		URL:         url,
		ContentType: contentType,
		Size:        file.Size,
	})
}

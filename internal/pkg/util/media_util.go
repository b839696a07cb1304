package util

import (
	"Solace/internal/pkg/consts"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// GetSafeContentType 按文件头嗅探 MIME 类型，读取后把游标复位
func GetSafeContentType(reader io.ReadSeeker) (string, error) {
	m, err := mimetype.DetectReader(reader)
	if err != nil {
		return "", err
	}
	if _, err = reader.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return m.String(), nil
}

// ChatContentType 由 MIME 类型推断聊天消息类型，不支持的返回空
func ChatContentType(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if base, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = base
	}
	switch {
	case strings.HasPrefix(mimeType, consts.MimePrefixImage+"/"):
		return consts.ContentTypeImage
	case strings.HasPrefix(mimeType, consts.MimePrefixAudio+"/"):
		return consts.ContentTypeAudio
	case mimeType == consts.MimePDF:
		return consts.ContentTypePDF
	default:
		return ""
	}
}

// MediaObjectName chat/YYYY/MM/DD/<uuid><ext>
func MediaObjectName(filename string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("chat/%s/%s%s", now.Format("2006/01/02"), uuid.NewString(), ext)
}

// MessagePreview 会话列表中展示的消息预览
func MessagePreview(contentType, content string) string {
	switch contentType {
	case consts.ContentTypeImage:
		return consts.PreviewImage
	case consts.ContentTypeAudio:
		return consts.PreviewAudio
	case consts.ContentTypePDF:
		return consts.PreviewPDF
	default:
		return content
	}
}

package dto

// MediaUploadDTO 上传结果，URL 作为非文本消息的 content 发送
type MediaUploadDTO struct {
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

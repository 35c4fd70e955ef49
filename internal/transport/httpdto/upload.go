package httpdto

type PresignUploadRequest struct {
	ChatID      string `json:"chat_id" binding:"required"`
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes" binding:"required"`
}

type PresignUploadResponse struct {
	ObjectKey string            `json:"object_key"`
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers,omitempty"`
}

type CompleteUploadRequest struct {
	ObjectKey string `json:"object_key" binding:"required"`
}

type CompleteUploadResponse struct {
	ObjectKey string `json:"object_key"`
	URL       string `json:"url"`
}

type DownloadURLResponse struct {
	URL string `json:"url"`
}

package httpdto

// WebhookFileUploadRequest is the payload VitroCAD posts on a file upload.
type WebhookFileUploadRequest struct {
	FileID     string `json:"file_id" binding:"required"`
	FileName   string `json:"file_name" binding:"required"`
	ListID     string `json:"list_id"`
	ParentID   string `json:"parent_id"`
	UploaderID string `json:"uploader_id" binding:"required"`
	Token      string `json:"token"`
}

type WebhookBulkRequest struct {
	Files []WebhookFileUploadRequest `json:"files" binding:"required"`
}

type FileEventResultDTO struct {
	ChatID       string `json:"chat_id"`
	Created      bool   `json:"created"`
	AddedMembers int    `json:"added_members"`
}

type BulkItemResultDTO struct {
	FileID  string `json:"file_id"`
	ChatID  string `json:"chat_id,omitempty"`
	Created bool   `json:"created"`
	Error   string `json:"error,omitempty"`
}

type SyncUserRequest struct {
	ID            string            `json:"id" binding:"required"`
	Login         string            `json:"login"`
	FieldValueMap map[string]string `json:"field_value_map"`
	GroupIDs      []string          `json:"group_ids"`
}

type MonitorStatsDTO struct {
	IsMonitoring  bool   `json:"is_monitoring"`
	LastCheckTime string `json:"last_check_time,omitempty"`
	IntervalMs    int    `json:"interval_ms"`
}

type MonitorControlRequest struct {
	IntervalMs int `json:"interval_ms"`
}

package api

// UploadResponse is the body of the async upload endpoint.
type UploadResponse struct {
	Success   bool   `json:"success"`
	PictureID int    `json:"pictureId,omitempty"`
	ImageURL  string `json:"imageUrl,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ConfigResponse reports the active encode quality and the allowed presets.
type ConfigResponse struct {
	Quality            int   `json:"quality"`
	AvailableQualities []int `json:"availableQualities"`
}

// ConfigRequest updates the encode quality.
type ConfigRequest struct {
	Quality int `json:"quality" binding:"required"`
}

// MutationResponse summarizes a format mutation run.
type MutationResponse struct {
	FilesConverted int `json:"filesConverted"`
	RowsConverted  int `json:"rowsConverted"`
	FailedFiles    int `json:"failedFiles"`
	FailedRows     int `json:"failedRows"`
}

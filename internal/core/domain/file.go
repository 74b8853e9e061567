package domain

import "time"

// UploadsBaseFolder is the storage folder holding every upload type.
const UploadsBaseFolder = "uploads"

// FileTypeVenueGPSTrace is the only upload type currently accepted.
const FileTypeVenueGPSTrace = "venue_gps_trace"

var allowedFileTypes = map[string]struct{}{
	FileTypeVenueGPSTrace: {},
}

// IsAllowedFileType reports whether uploads of fileType are accepted.
func IsAllowedFileType(fileType string) bool {
	_, ok := allowedFileTypes[fileType]
	return ok
}

// UploadFolder returns the storage folder for a file type.
func UploadFolder(fileType string) string {
	return UploadsBaseFolder + "/" + fileType
}

// FileInfo describes a stored file.
type FileInfo struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"last_modified"`
}

package model

import "errors"

// Photo storage constants. Photos live in R2 under the `collections` folder;
// collected-stamp documents store only the object keys.
const (
	PhotoFolder       = "collections"
	MaxPhotoSizeBytes = 10 * 1024 * 1024 // 10MB per photo
)

// Supported image content types for presign validation
const (
	ContentTypeJPEG = "image/jpeg"
	ContentTypePNG  = "image/png"
	ContentTypeWebP = "image/webp"
)

var allowedImageTypes = map[string]struct{}{
	ContentTypeJPEG: {},
	ContentTypePNG:  {},
	ContentTypeWebP: {},
}

// Error codes for HTTP responses
const (
	CodeFileTooLarge     = "FILE_TOO_LARGE"
	CodeInvalidImageType = "INVALID_IMAGE_TYPE"
)

// Domain errors for media operations
var (
	ErrFileTooLarge     = errors.New("file too large")
	ErrInvalidImageType = errors.New("invalid image type")
)

// PresignPhotoRequest requests a presigned URL for uploading a collection
// photo directly to R2. The returned key goes into CollectRequest.PhotoKeys.
type PresignPhotoRequest struct {
	ContentType string `json:"content_type"`
	FileSize    int64  `json:"file_size"`
}

// PresignPhotoResponse returns upload details for direct-to-R2 uploads.
type PresignPhotoResponse struct {
	UploadURL  string `json:"upload_url"`
	Key        string `json:"key"`
	ExpiresInS int    `json:"expires_in"`
}

// IsAllowedImageType reports if the provided content type is supported
func IsAllowedImageType(contentType string) bool {
	_, ok := allowedImageTypes[contentType]
	return ok
}

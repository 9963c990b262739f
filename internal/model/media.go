package model

import "errors"

// Avatar upload constraints. Avatars are normalized to a square JPEG before
// being stored, so the original format only needs to be decodable.
const (
	MaxAvatarSizeBytes = 5 * 1024 * 1024
	AvatarWidth        = 200
	AvatarHeight       = 200
	AvatarFolder       = "avatars"
	AvatarExt          = ".jpg"
	AvatarCacheControl = "public, max-age=31536000"
	ContentTypeJPEG    = "image/jpeg"
)

// UploadResult is the stored object's public URL and storage key.
type UploadResult struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

// Media errors
var (
	ErrFileTooLarge       = errors.New("file exceeds maximum size")
	ErrUnsupportedMedia   = errors.New("unsupported media type")
	ErrMediaNotConfigured = errors.New("object storage not configured")
)

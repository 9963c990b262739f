package handler

import (
	"errors"
	"log"
	"net/http"

	"templora_comments/internal/httputil"
	"templora_comments/internal/model"
	"templora_comments/internal/service"
	"templora_comments/internal/transport/http/middleware"
)

type MediaHandler struct {
	mediaService *service.MediaService
}

func NewMediaHandler(mediaService *service.MediaService) *MediaHandler {
	return &MediaHandler{mediaService: mediaService}
}

// UploadAvatar handles POST /media/avatar
// Accepts a multipart upload, resizes it, stores it in R2, and updates the
// caller's profile.
func (h *MediaHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	if h.mediaService == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "MEDIA_UNAVAILABLE", "Media storage is not configured")
		return
	}

	maxFormSize := int64(model.MaxAvatarSizeBytes) + 1024*1024 // allow form overhead
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			httputil.WriteBadRequest(w, "Content-Type must be multipart/form-data")
			return
		}
		httputil.WriteBadRequest(w, "Avatar exceeds 5MB limit")
		return
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		httputil.WriteBadRequest(w, "avatar file is required")
		return
	}
	defer file.Close()

	upload, err := h.mediaService.UploadAvatar(r.Context(), user.ID, file, header)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrFileTooLarge):
			httputil.WriteBadRequest(w, "Avatar exceeds 5MB limit")
		case errors.Is(err, model.ErrUnsupportedMedia):
			httputil.WriteBadRequest(w, "Unsupported image type. Allowed: jpeg, png, gif, webp")
		default:
			log.Printf("[ERROR] Upload avatar: user=%d err=%v", user.ID, err)
			httputil.WriteInternalError(w, "Failed to upload avatar")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, upload)
}

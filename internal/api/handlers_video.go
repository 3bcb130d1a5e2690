package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/benardngware/somanamimi2/internal/domain"
	"github.com/benardngware/somanamimi2/internal/store"
)

// ListVideosHandler handles GET /videos (public).
func (h *Handlers) ListVideosHandler(w http.ResponseWriter, r *http.Request) {
	videos, err := h.repo.ListVideos(r.Context())
	if err != nil {
		log.Printf("level=error component=api endpoint=list_videos msg=\"catalog query failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to fetch videos")
		return
	}
	if videos == nil {
		videos = []domain.Video{}
	}
	h.writeJSON(w, http.StatusOK, videos)
}

// CreateVideoHandler handles POST /videos (admin).
func (h *Handlers) CreateVideoHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.VideoUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	video := videoFromRequest(req)
	videoID, err := h.repo.CreateVideo(r.Context(), video)
	if err != nil {
		log.Printf("level=error component=api endpoint=create_video msg=\"insert failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to add video")
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Video added successfully",
		"videoId": videoID,
	})
}

// UpdateVideoHandler handles PUT /videos/{id} (admin).
func (h *Handlers) UpdateVideoHandler(w http.ResponseWriter, r *http.Request) {
	videoID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid video id")
		return
	}

	var req domain.VideoUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.repo.UpdateVideo(r.Context(), videoID, videoFromRequest(req)); err != nil {
		if errors.Is(err, store.ErrVideoNotFound) {
			h.writeError(w, http.StatusNotFound, "Video not found")
			return
		}
		log.Printf("level=error component=api endpoint=update_video msg=\"update failed\" video_id=%d err=%v", videoID, err)
		h.writeError(w, http.StatusInternalServerError, "Failed to update video")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Video updated successfully"})
}

// DeleteVideoHandler handles DELETE /videos/{id} (admin).
func (h *Handlers) DeleteVideoHandler(w http.ResponseWriter, r *http.Request) {
	videoID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid video id")
		return
	}

	if err := h.repo.DeleteVideo(r.Context(), videoID); err != nil {
		if errors.Is(err, store.ErrVideoNotFound) {
			h.writeError(w, http.StatusNotFound, "Video not found")
			return
		}
		log.Printf("level=error component=api endpoint=delete_video msg=\"delete failed\" video_id=%d err=%v", videoID, err)
		h.writeError(w, http.StatusInternalServerError, "Failed to remove video")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Video removed successfully"})
}

func videoFromRequest(req domain.VideoUpsertRequest) *domain.Video {
	return &domain.Video{
		Title:        req.Title,
		Description:  req.Description,
		URL:          req.URL,
		Category:     req.Category,
		ThumbnailURL: req.ThumbnailURL,
		IsFree:       req.IsFree,
	}
}

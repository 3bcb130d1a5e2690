package domain

import "time"

// Video maps to the `videos` table. Free videos are visible to everyone;
// the rest are gated behind the subscription flag on the client.
type Video struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	URL          string    `json:"url"`
	Category     string    `json:"category"`
	ThumbnailURL string    `json:"thumbnail_url"`
	IsFree       bool      `json:"is_free"`
	CreatedAt    time.Time `json:"created_at"`
}

// VideoUpsertRequest is the DTO for creating and updating videos (admin only).
type VideoUpsertRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	URL          string `json:"url"`
	Category     string `json:"category"`
	ThumbnailURL string `json:"thumbnail_url"`
	IsFree       bool   `json:"is_free"`
}

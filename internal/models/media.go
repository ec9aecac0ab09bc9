package models

import "time"

type Media struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"original_name"`
	Type         string    `json:"type"` // "image" or "video"
	Size         int64     `json:"size"`
	Caption      string    `json:"caption"`
	CategoryID   *int64    `json:"category_id"`
	DisplayCount int       `json:"display_count"`
	IsFavorite   bool      `json:"is_favorite"`
	URLs         MediaURLs `json:"urls"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type MediaURLs struct {
	Original  string `json:"original"`
	Thumbnail string `json:"thumbnail"`
	Optimized string `json:"optimized"`
}

// GenerateURLs builds the public paths for the stored variants of a media
// file.
func GenerateURLs(filename string) MediaURLs {
	return MediaURLs{
		Original:  "/media/original/" + filename,
		Thumbnail: "/media/thumbnails/" + filename,
		Optimized: "/media/optimized/" + filename,
	}
}

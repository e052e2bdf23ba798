// Package sketchfab implements the search-retrieval provider and search
// client against the Sketchfab content index: find an existing model that
// matches the prompt instead of generating one.
package sketchfab

import (
	"strings"
	"time"
)

// Model is a parsed entry from the content index.
type Model struct {
	UID          string   `json:"uid"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Author       string   `json:"author"`
	AuthorURL    string   `json:"author_url,omitempty"`
	License      string   `json:"license,omitempty"`
	LicenseLabel string   `json:"license_label,omitempty"`
	FaceCount    int      `json:"face_count,omitempty"`
	VertexCount  int      `json:"vertex_count,omitempty"`
	Animated     bool     `json:"animated"`
	Rigged       bool     `json:"rigged"`
	ViewCount    int      `json:"view_count"`
	LikeCount    int      `json:"like_count"`
	Downloadable bool     `json:"downloadable"`
	ThumbnailURL string   `json:"thumbnail_url,omitempty"`
	ViewerURL    string   `json:"viewer_url,omitempty"`
	EmbedURL     string   `json:"embed_url,omitempty"`
	Categories   []string `json:"categories,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}

// PreviewRef returns the best non-downloadable reference for the model:
// the interactive viewer when available, the embed URL otherwise.
func (m *Model) PreviewRef() string {
	if m.ViewerURL != "" {
		return m.ViewerURL
	}
	return m.EmbedURL
}

// SearchQuery names the supported search filters. Zero values mean
// "no filter" except Query, which is required.
type SearchQuery struct {
	Query        string
	Category     string
	License      string
	Animated     *bool
	Rigged       *bool
	Downloadable bool
	MinFaceCount int
	MaxFaceCount int
	StaffPicked  bool
	SortBy       string // relevance (default), likes, views, recent
	Page         int
	PerPage      int
}

// SearchPage is one page of search results.
type SearchPage struct {
	Query      string  `json:"query"`
	TotalCount int     `json:"total_count"`
	Page       int     `json:"page"`
	PerPage    int     `json:"per_page"`
	TotalPages int     `json:"total_pages"`
	Models     []Model `json:"models"`
}

// Category is one browsable model category from the content index.
type Category struct {
	Slug  string `json:"slug"`
	Name  string `json:"name"`
	Count int    `json:"count,omitempty"`
}

// DownloadLink is a short-lived signed URL for one archive format.
type DownloadLink struct {
	URL       string    `json:"url"`
	Format    string    `json:"format"`
	Size      int64     `json:"size,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// downloadFormats is the preference order when resolving a download link.
var downloadFormats = []string{"gltf", "source", "usdz"}

// LicenseFlags derives attribution obligations from a license slug.
// Unknown licenses get the conservative defaults: attribution required,
// no commercial use.
func LicenseFlags(license string) (attributionRequired, commercialUse bool) {
	license = strings.ToLower(license)
	switch {
	case license == "":
		return true, false
	case strings.Contains(license, "cc0"):
		return false, true
	case strings.Contains(license, "by-nc"):
		return true, false
	case strings.Contains(license, "by"):
		return true, true
	default:
		return true, false
	}
}

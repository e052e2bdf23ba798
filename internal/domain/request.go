package domain

import (
	"errors"
	"strings"
)

// ModelStyle controls the artistic style of a generated model.
type ModelStyle string

// Supported model styles.
const (
	StyleRealistic     ModelStyle = "realistic"
	StyleCartoon       ModelStyle = "cartoon"
	StyleLowPoly       ModelStyle = "low_poly"
	StyleAbstract      ModelStyle = "abstract"
	StyleArchitectural ModelStyle = "architectural"
)

// GenerationMode selects the kind of input the generation starts from.
type GenerationMode string

// Supported generation modes.
const (
	ModeTextTo3D   GenerationMode = "text_to_3d"
	ModeImageTo3D  GenerationMode = "image_to_3d"
	ModeSketchTo3D GenerationMode = "sketch_to_3d"
)

// Common validation errors for GenerateRequest
var (
	ErrEmptyPrompt       = errors.New("prompt cannot be empty")
	ErrPromptTooLong     = errors.New("prompt exceeds maximum length")
	ErrInvalidStyle      = errors.New("invalid model style")
	ErrInvalidMode       = errors.New("invalid generation mode")
	ErrMissingImageURL   = errors.New("image URL is required for image_to_3d mode")
	ErrInvalidResolution = errors.New("resolution must be between 256 and 2048")
	ErrUnsupportedFormat = errors.New("unsupported output format")
	ErrInvalidQuality    = errors.New("quality must be one of low, medium, high")
)

// maxPromptLength bounds prompt size the same way the public API does.
const maxPromptLength = 1000

// supportedOutputFormats lists the artifact formats the service can emit.
var supportedOutputFormats = map[string]bool{
	"obj": true,
	"glb": true,
	"ply": true,
	"stl": true,
	"fbx": true,
}

// GenerateRequest describes one model generation request. The zero values of
// optional fields are filled in by Normalize before the request enters the
// pipeline, so two requests that spell the same defaults differently hash to
// the same cache fingerprint.
type GenerateRequest struct {
	Prompt string         `json:"prompt"`
	Style  ModelStyle     `json:"style"`
	Mode   GenerationMode `json:"mode"`

	ImageURL       string `json:"image_url,omitempty"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Quality        string `json:"quality"`
	Resolution     int    `json:"resolution"`

	Seed          *int64  `json:"seed,omitempty"`
	Steps         int     `json:"steps"`
	GuidanceScale float64 `json:"guidance_scale"`

	OutputFormat     string `json:"output_format"`
	IncludeTexture   bool   `json:"include_texture"`
	IncludeAnimation bool   `json:"include_animation"`

	// Caller identity. Neither field influences the generated artifact.
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	// Provider optionally overrides the configured default provider for
	// this request. Empty means "use the default".
	Provider string `json:"provider,omitempty"`
}

// Normalize fills in defaults and trims whitespace. It must be called before
// Validate or fingerprinting so equivalent requests compare equal.
func (r *GenerateRequest) Normalize() {
	r.Prompt = strings.TrimSpace(r.Prompt)
	if r.Style == "" {
		r.Style = StyleRealistic
	}
	if r.Mode == "" {
		r.Mode = ModeTextTo3D
	}
	if r.Quality == "" {
		r.Quality = "medium"
	}
	if r.Resolution == 0 {
		r.Resolution = 512
	}
	if r.Steps == 0 {
		r.Steps = 50
	}
	if r.GuidanceScale == 0 {
		r.GuidanceScale = 7.5
	}
	if r.OutputFormat == "" {
		r.OutputFormat = "obj"
	}
	r.OutputFormat = strings.ToLower(r.OutputFormat)
}

// Validate checks the request against the constraints the public API
// documents. Returns a sentinel error for the first violation found.
func (r *GenerateRequest) Validate() error {
	if r.Prompt == "" {
		return ErrEmptyPrompt
	}
	if len(r.Prompt) > maxPromptLength {
		return ErrPromptTooLong
	}
	if !isValidStyle(r.Style) {
		return ErrInvalidStyle
	}
	if !isValidMode(r.Mode) {
		return ErrInvalidMode
	}
	if r.Mode == ModeImageTo3D && r.ImageURL == "" {
		return ErrMissingImageURL
	}
	if r.Resolution < 256 || r.Resolution > 2048 {
		return ErrInvalidResolution
	}
	switch r.Quality {
	case "low", "medium", "high":
	default:
		return ErrInvalidQuality
	}
	if !supportedOutputFormats[r.OutputFormat] {
		return ErrUnsupportedFormat
	}
	return nil
}

func isValidStyle(s ModelStyle) bool {
	switch s {
	case StyleRealistic, StyleCartoon, StyleLowPoly, StyleAbstract, StyleArchitectural:
		return true
	}
	return false
}

func isValidMode(m GenerationMode) bool {
	switch m {
	case ModeTextTo3D, ModeImageTo3D, ModeSketchTo3D:
		return true
	}
	return false
}

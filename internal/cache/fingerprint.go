package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/formaworks/forma-api/internal/domain"
)

// KeyPrefix namespaces every cache key written by this service, so a shared
// store can be cleared without touching unrelated keys.
const KeyPrefix = "model:"

// fingerprintFields is the normalized set of semantically significant
// request fields. Fields with no bearing on the produced artifact (user id,
// session id, sampler tuning) are deliberately excluded so requests that
// differ only in those fields share a cache entry. The struct marshals with
// a fixed field order, which makes the serialization stable.
type fingerprintFields struct {
	Prompt         string                `json:"prompt"`
	Style          domain.ModelStyle     `json:"style"`
	Mode           domain.GenerationMode `json:"mode"`
	Quality        string                `json:"quality"`
	Resolution     int                   `json:"resolution"`
	OutputFormat   string                `json:"output_format"`
	IncludeTexture bool                  `json:"include_texture"`
	NegativePrompt string                `json:"negative_prompt"`
	Seed           *int64                `json:"seed"`
	ImageURL       string                `json:"image_url,omitempty"`
}

// Fingerprint derives the deterministic cache key for a generation request.
// It is pure: equal normalized requests always produce equal keys, and any
// change to a significant field changes the key.
func Fingerprint(req domain.GenerateRequest) string {
	fields := fingerprintFields{
		Prompt:         req.Prompt,
		Style:          req.Style,
		Mode:           req.Mode,
		Quality:        req.Quality,
		Resolution:     req.Resolution,
		OutputFormat:   req.OutputFormat,
		IncludeTexture: req.IncludeTexture,
		NegativePrompt: req.NegativePrompt,
		Seed:           req.Seed,
		ImageURL:       req.ImageURL,
	}

	// Marshal of a plain struct cannot fail.
	data, _ := json.Marshal(fields)
	sum := sha256.Sum256(data)
	return KeyPrefix + hex.EncodeToString(sum[:])
}

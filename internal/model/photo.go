package model

import (
	"time"

	"github.com/google/uuid"
)

// PhotoAsset references an original or processed photo on disk.
type PhotoAsset struct {
	ID            string        `json:"id"`
	OriginalURL   *string       `json:"original_url,omitempty"`
	CleanedURL    *string       `json:"cleaned_url,omitempty"`
	ThumbnailData []byte        `json:"thumbnail_data,omitempty"`
	Metadata      PhotoMetadata `json:"metadata"`
}

// PhotoMetadata holds capture details and the background removal confidence.
type PhotoMetadata struct {
	CaptureDate          *time.Time `json:"capture_date,omitempty"`
	ISO                  *float64   `json:"iso,omitempty"`
	ShutterSpeed         *float64   `json:"shutter_speed,omitempty"`
	ExposureBias         *float64   `json:"exposure_bias,omitempty"`
	BackgroundConfidence float64    `json:"background_confidence"`
}

// NewPhotoAsset creates a photo asset for a processed image.
func NewPhotoAsset(cleanedURL string, backgroundConfidence float64) PhotoAsset {
	return PhotoAsset{
		ID:         uuid.New().String(),
		CleanedURL: &cleanedURL,
		Metadata:   PhotoMetadata{BackgroundConfidence: backgroundConfidence},
	}
}

func clonePhotos(in []PhotoAsset) []PhotoAsset {
	if in == nil {
		return nil
	}
	out := make([]PhotoAsset, len(in))
	for i, p := range in {
		p.OriginalURL = clonePtr(p.OriginalURL)
		p.CleanedURL = clonePtr(p.CleanedURL)
		p.ThumbnailData = cloneSlice(p.ThumbnailData)
		p.Metadata.CaptureDate = clonePtr(p.Metadata.CaptureDate)
		p.Metadata.ISO = clonePtr(p.Metadata.ISO)
		p.Metadata.ShutterSpeed = clonePtr(p.Metadata.ShutterSpeed)
		p.Metadata.ExposureBias = clonePtr(p.Metadata.ExposureBias)
		out[i] = p
	}
	return out
}

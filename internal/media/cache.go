package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/raine/listlift/internal/storage"
)

const ocrCachePrefix = "ocr:"

// CachedRecognizer wraps a TextRecognizer with a result cache keyed by the
// image hash.
type CachedRecognizer struct {
	inner TextRecognizer
	cache storage.Backend
}

// NewCachedRecognizer creates a cached recognizer. A nil cache disables caching.
func NewCachedRecognizer(inner TextRecognizer, cache storage.Backend) *CachedRecognizer {
	return &CachedRecognizer{inner: inner, cache: cache}
}

func hashImage(image []byte) string {
	sum := sha256.Sum256(image)
	return hex.EncodeToString(sum[:])
}

func (c *CachedRecognizer) Recognize(ctx context.Context, image []byte) ([]TextObservation, error) {
	key := ocrCachePrefix + hashImage(image)

	if c.cache != nil {
		raw, err := c.cache.Get(ctx, key)
		if err != nil {
			log.Warn().Err(err).Msg("failed to check ocr cache")
		} else if raw != nil {
			var cached []TextObservation
			if err := json.Unmarshal(raw, &cached); err == nil {
				log.Debug().Str("hash", key[len(ocrCachePrefix):][:16]).Msg("ocr cache hit")
				return cached, nil
			}
			log.Warn().Err(err).Msg("discarding unreadable ocr cache entry")
		}
	}

	result, err := c.inner.Recognize(ctx, image)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		data, err := json.Marshal(result)
		if err == nil {
			err = c.cache.Put(ctx, key, data)
		}
		if err != nil {
			log.Warn().Err(err).Msg("failed to cache ocr result")
		} else {
			log.Debug().Str("hash", key[len(ocrCachePrefix):][:16]).Msg("cached ocr result")
		}
	}

	return result, nil
}

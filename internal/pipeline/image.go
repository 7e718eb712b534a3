package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/JakeFAU/player-dossier/internal/render"
)

// DefaultImageCDN is the fallback portrait location; %s is the name slug.
const DefaultImageCDN = "https://img1.hscicdn.com/image/upload/f_auto,q_auto/lsci/db/PICTURES/CMS/%s.jpg"

// imageCandidates lists portrait URLs to try in order: the encyclopedia
// thumbnail, then the CDN guess built from the name.
func imageCandidates(pageImage, name, cdn string) []string {
	var out []string
	if pageImage != "" {
		out = append(out, pageImage)
	}
	if cdn != "" && strings.TrimSpace(name) != "" {
		out = append(out, fmt.Sprintf(cdn, imageSlug(name)))
	}
	return out
}

func imageSlug(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}

// downloadImage returns the first candidate that downloads and decodes,
// normalized to JPEG.
func (r *Runner) downloadImage(ctx context.Context, candidates []string) ([]byte, error) {
	var lastErr error
	for _, u := range candidates {
		raw, err := r.fetcher.Fetch(ctx, u, nil)
		if err != nil {
			lastErr = err
			continue
		}
		jpeg, _, err := render.NormalizeImage(raw)
		if err != nil {
			lastErr = fmt.Errorf("image %s: %w", u, err)
			continue
		}
		return jpeg, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no image source")
	}
	return nil, lastErr
}

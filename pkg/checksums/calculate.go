package checksums

import (
	"context"
	"fmt"
	"sync"

	"github.com/apex/log"
	"github.com/core-coin/yvm/pkg/fetch"
	"github.com/core-coin/yvm/pkg/platform"
	"github.com/core-coin/yvm/pkg/verify"
)

// calculateChecksums downloads the artifact of every platform concurrently
// and hashes it
func (g *Generator) calculateChecksums(ctx context.Context) ([]Entry, error) {
	fetcher := g.Fetcher
	if fetcher == nil {
		fetcher = fetch.New()
	}

	platforms := g.platforms()

	// Use a wait group to process platforms concurrently
	var wg sync.WaitGroup
	resultCh := make(chan Entry, len(platforms))

	for _, p := range platforms {
		wg.Add(1)
		go func(p platform.Platform) {
			defer wg.Done()

			artifact := ArtifactName(p, g.Version)
			assetURL := fetch.ArtifactURL(fetcher.BaseURL, g.Version, artifact)

			log.Infof("Downloading %s", assetURL)
			data, err := fetcher.Get(ctx, assetURL)
			if err != nil {
				// Just log the error but don't fail the entire process
				log.Warnf("Failed to download artifact %s: %v", assetURL, err)
				return
			}

			resultCh <- Entry{
				Platform: p,
				Artifact: artifact,
				SHA256:   verify.Sum(data),
			}
		}(p)
	}

	// Wait for all downloads and hash calculations to finish
	wg.Wait()
	close(resultCh)

	var entries []Entry
	for result := range resultCh {
		entries = append(entries, result)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("failed to calculate any checksums")
	}

	return entries, nil
}

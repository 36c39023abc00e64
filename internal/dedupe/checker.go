package dedupe

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"
)

// Duplicate verdict reasons.
const (
	ReasonURL         = "url"
	ReasonContentHash = "content_hash"
)

// checkConcurrency bounds parallel store lookups in a batch.
const checkConcurrency = 8

// Store is the existence-check surface the checker needs.
type Store interface {
	ExistsByURL(url string) (bool, error)
	ExistsByFingerprint(fingerprint string) (bool, error)
}

// Item is one candidate for a duplicate check.
type Item struct {
	URL         string
	Title       string
	Description string
}

// Verdict is the outcome of one duplicate check.
type Verdict struct {
	Duplicate  bool
	Reason     string // ReasonURL or ReasonContentHash when Duplicate
	MatchedURL string
	// CheckFailed marks a store error that degraded to not-duplicate.
	// The insert's uniqueness constraint is the backstop in that case.
	CheckFailed bool
}

// Checker classifies feed items as new or duplicate against the store.
type Checker struct {
	store Store
}

// NewChecker creates a Checker backed by the given store.
func NewChecker(store Store) *Checker {
	return &Checker{store: store}
}

// Check classifies a single item. The normalized URL is tried first; only
// when it is unknown is the content fingerprint computed and checked.
func (c *Checker) Check(ctx context.Context, url, title, description string) (Verdict, error) {
	if err := ctx.Err(); err != nil {
		return Verdict{}, err
	}

	normalized := NormalizeURL(url)
	exists, err := c.store.ExistsByURL(normalized)
	if err != nil {
		return Verdict{}, err
	}
	if exists {
		return Verdict{Duplicate: true, Reason: ReasonURL, MatchedURL: normalized}, nil
	}

	fp := Fingerprint(title, description)
	exists, err = c.store.ExistsByFingerprint(fp)
	if err != nil {
		return Verdict{}, err
	}
	if exists {
		return Verdict{Duplicate: true, Reason: ReasonContentHash}, nil
	}

	return Verdict{}, nil
}

// CheckBatch runs duplicate checks for all items concurrently and returns
// one verdict per item, in input order. A check that errors degrades to
// not-duplicate with CheckFailed set; the batch itself never fails.
func (c *Checker) CheckBatch(ctx context.Context, items []Item) []Verdict {
	verdicts := make([]Verdict, len(items))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(checkConcurrency)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			v, err := c.Check(gCtx, item.URL, item.Title, item.Description)
			if err != nil {
				log.Printf("Duplicate check failed for %s, assuming new: %v", item.URL, err)
				verdicts[i] = Verdict{CheckFailed: true}
				return nil
			}
			verdicts[i] = v
			return nil
		})
	}
	g.Wait() //nolint:errcheck // goroutines never return errors

	return verdicts
}

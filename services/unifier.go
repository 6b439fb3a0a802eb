package services

import (
	"fmt"

	"carhist/models"
	"carhist/utils"
)

// Unifier merges the partition sheets of one run into a single snapshot.
type Unifier struct {
	logger *utils.Logger
}

// NewUnifier creates a Unifier with the given logger.
func NewUnifier(logger *utils.Logger) *Unifier {
	return &Unifier{logger: logger}
}

// UnifiedSnapshot is the de-duplicated raw data of one run.
type UnifiedSnapshot struct {
	Records      []*models.RawListing
	Contributing int
	Duplicates   int
	FallbackIDs  int
}

// Unify canonicalizes column names, resolves identities and drops duplicate
// identities (first occurrence wins). Nil or empty partitions are skipped;
// ErrEmptyInput is returned when no partition carried data.
func (u *Unifier) Unify(partitions []*models.Partition) (*UnifiedSnapshot, error) {
	out := &UnifiedSnapshot{}
	seen := make(map[string]struct{})

	for _, p := range partitions {
		if p == nil || len(p.Records) == 0 {
			if p != nil {
				u.logger.Warn("[unifier] Partition %q is empty, skipping", p.Name)
			}
			continue
		}
		out.Contributing++
		u.logger.Info("[unifier] Partition %q: %d listings", p.Name, len(p.Records))

		for _, rec := range p.Records {
			raw := RawListingFromRecord(CanonicalRecord(rec))
			id, fromURL := resolveID(raw)
			raw.ID = id
			if !fromURL {
				out.FallbackIDs++
				u.logger.Warn("[unifier] Listing without URL (%s %s, %s), using fallback identity %s",
					raw.Brand, raw.Model, raw.Seller, id)
			}

			if _, dup := seen[id]; dup {
				out.Duplicates++
				u.logger.Debug("[unifier] Duplicate listing %s skipped", id)
				continue
			}
			seen[id] = struct{}{}
			out.Records = append(out.Records, raw)
		}
	}

	if out.Contributing == 0 || len(out.Records) == 0 {
		return nil, fmt.Errorf("unify %d partitions: %w", len(partitions), ErrEmptyInput)
	}

	u.logger.Info("[unifier] Unified %d listings from %d partitions (%d duplicates dropped)",
		len(out.Records), out.Contributing, out.Duplicates)
	return out, nil
}

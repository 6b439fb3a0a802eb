package services

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"carhist/models"
)

const idLength = 12

// ResolveID derives the stable identifier of a listing. The canonical URL is
// the durable key; without one, the seller/brand/model/mileage composite is
// used, which can collide for identical adverts. When every input is missing
// the ID is random and cannot be matched on a later run.
func ResolveID(r *models.RawListing) string {
	id, _ := resolveID(r)
	return id
}

// resolveID also reports whether the URL path was taken.
func resolveID(r *models.RawListing) (string, bool) {
	if url := strings.TrimSpace(r.URL); isPresent(url) {
		return shortHash(url), true
	}

	parts := []string{
		strings.TrimSpace(r.Seller),
		strings.TrimSpace(r.Brand),
		strings.TrimSpace(r.Model),
		strings.TrimSpace(r.Mileage),
	}
	for _, p := range parts {
		if isPresent(p) {
			return shortHash(strings.Join(parts, "_")), false
		}
	}

	seed := strconv.FormatInt(time.Now().UnixNano(), 10) + uuid.NewString()
	return shortHash(seed), false
}

// URLID is the identifier a URL resolves to.
func URLID(url string) string {
	return shortHash(strings.TrimSpace(url))
}

func shortHash(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:idLength]
}

func isPresent(s string) bool {
	return s != "" && s != models.NotSpecified
}

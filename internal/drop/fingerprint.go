package drop

import (
	"encoding/hex"
	"sort"

	"github.com/goccy/go-json"
	"github.com/zeebo/xxh3"
)

// canonicalBucket is the serialized shape of one bucket. Map keys are emitted
// sorted by the encoder, so labels and folder names are order-independent.
type canonicalBucket struct {
	Files   []string            `json:"files"`
	Folders map[string][]string `json:"folders"`
}

// CanonicalJSON serializes inv so that structurally identical inventories
// always produce identical bytes regardless of listing order. Only names and
// structure participate; sizes and timestamps do not.
func CanonicalJSON(inv *Inventory) ([]byte, error) {
	doc := make(map[string]canonicalBucket, len(inv.Buckets))
	for _, b := range inv.Buckets {
		cb := canonicalBucket{
			Files:   make([]string, 0, len(b.Files)),
			Folders: make(map[string][]string, len(b.Folders)),
		}
		for _, f := range b.Files {
			cb.Files = append(cb.Files, f.Name)
		}
		sort.Strings(cb.Files)
		for _, f := range b.Folders {
			files := append([]string{}, f.Files...)
			sort.Strings(files)
			cb.Folders[f.Name] = files
		}
		doc[b.Label] = cb
	}
	return json.Marshal(doc)
}

// Fingerprint returns a hex-encoded 128-bit xxh3 digest of the canonical
// serialization of inv. Digests are compared for equality only.
func Fingerprint(inv *Inventory) (string, error) {
	data, err := CanonicalJSON(inv)
	if err != nil {
		return "", err
	}
	sum := xxh3.Hash128(data).Bytes()
	return hex.EncodeToString(sum[:]), nil
}

// UpdateStatus is the answer to a change poll.
type UpdateStatus struct {
	Updated bool   `json:"updated"`
	Hash    string `json:"hash"`
}

// CompareFingerprint reports whether prior differs from current.
func CompareFingerprint(prior, current string) UpdateStatus {
	return UpdateStatus{Updated: prior != current, Hash: current}
}

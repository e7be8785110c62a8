package ocflstore

import (
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// StorageSimple disperses every object into a flat directory named by its
	// storage id.
	StorageSimple = "storage_simple"
	// StoragePairTree disperses objects through a pair-tree of two-character
	// directory segments, bounding per-directory fanout.
	StoragePairTree = "storage_pair_tree"
)

// Layout resolves a storage id to an object directory relative to the
// storage root.
type Layout interface {
	Name() string
	Resolve(storageID string) (string, error)
}

// NewLayout returns the layout for the named storage scheme, or
// ErrUnknownScheme.
func NewLayout(scheme string) (Layout, error) {
	switch scheme {
	case StorageSimple:
		return layoutSimple{}, nil
	case StoragePairTree:
		return layoutPairTree{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
}

// StorageID derives the internal storage id for an object id: the digest of
// the id's UTF-8 bytes under alg, as lowercase hex.
func StorageID(alg string, objID string) (string, error) {
	h, err := NewHash(alg)
	if err != nil {
		return "", err
	}
	h.Write([]byte(objID))
	return hex.EncodeToString(h.Sum(nil)), nil
}

type layoutSimple struct{}

func (layoutSimple) Name() string { return StorageSimple }

func (layoutSimple) Resolve(storageID string) (string, error) {
	if storageID == "" {
		return "", fmt.Errorf("%s: empty storage id", StorageSimple)
	}
	return storageID, nil
}

type layoutPairTree struct{}

func (layoutPairTree) Name() string { return StoragePairTree }

// Resolve splits storageID into two-character segments, each a directory
// level, with the full storage id as the terminal segment. A trailing odd
// character becomes its own segment.
func (layoutPairTree) Resolve(storageID string) (string, error) {
	if storageID == "" {
		return "", fmt.Errorf("%s: empty storage id", StoragePairTree)
	}
	var segments []string
	for i := 0; i < len(storageID); i += 2 {
		end := i + 2
		if end > len(storageID) {
			end = len(storageID)
		}
		segments = append(segments, storageID[i:end])
	}
	segments = append(segments, storageID)
	return strings.Join(segments, "/"), nil
}

package ocflstore

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	inventoryType = "Object"
	createdFormat = "2006-01-02T15:04:05Z"
)

var ErrVersionNotFound = errors.New("version not found in inventory")

// Inventory is the in-memory representation of an object's inventory.json.
// Fields are declared in the order their JSON keys sort, so canonical
// serialization (sorted keys, 4-space indent) falls out of Marshal.
type Inventory struct {
	DigestAlgorithm string               `json:"digestAlgorithm"`
	Fixity          map[string]DigestMap `json:"fixity,omitempty"`
	Head            string               `json:"head"`
	ID              string               `json:"id"`
	Manifest        DigestMap            `json:"manifest"`
	Type            string               `json:"type"`
	Versions        map[string]*Version  `json:"versions"`
}

// Version is a version entry in an inventory.
type Version struct {
	Created string    `json:"created"`
	Message *string   `json:"message"`
	State   DigestMap `json:"state"`
}

// NewInventory returns the inventory scaffold for a new object: a single
// empty v1, a fresh id, and the default digest algorithm. Pass a non-empty id
// to override the generated one.
func NewInventory(id string) *Inventory {
	if id == "" {
		id = freshID()
	}
	return &Inventory{
		DigestAlgorithm: DefaultDigestAlgorithm,
		Head:            "v1",
		ID:              id,
		Manifest:        DigestMap{},
		Type:            inventoryType,
		Versions: map[string]*Version{
			"v1": {
				Created: nowUTC(),
				State:   DigestMap{},
			},
		},
	}
}

// ReadInventory decodes the inventory JSON from reader.
func ReadInventory(reader io.Reader) (*Inventory, error) {
	inv := &Inventory{}
	if err := json.NewDecoder(reader).Decode(inv); err != nil {
		return nil, fmt.Errorf("decoding inventory: %w", err)
	}
	return inv, nil
}

// Marshal returns inv's canonical serialization: keys sorted ascending,
// 4-space indentation.
func (inv *Inventory) Marshal() ([]byte, error) {
	return json.MarshalIndent(inv, "", "    ")
}

// Marshal returns v's canonical serialization, the format of a version
// directory's inventory.json.
func (v *Version) Marshal() ([]byte, error) {
	return json.MarshalIndent(v, "", "    ")
}

// VersionNums returns the version numbers present in inv, sorted ascending.
func (inv *Inventory) VersionNums() VNums {
	nums := make(VNums, 0, len(inv.Versions))
	for key := range inv.Versions {
		var vn VNum
		if err := ParseVNum(key, &vn); err != nil {
			continue
		}
		nums = append(nums, vn)
	}
	nums.Sort()
	return nums
}

// Version returns the version entry for number num, or nil if absent.
func (inv *Inventory) Version(num VNum) *Version {
	return inv.Versions[num.String()]
}

// VersionKey returns the version entry for key ("vN"), or nil if the key is
// absent or malformed.
func (inv *Inventory) VersionKey(key string) *Version {
	var vn VNum
	if err := ParseVNum(key, &vn); err != nil {
		return nil
	}
	return inv.Version(vn)
}

// UpdateVersionState replaces the state of version key, creating a fresh
// version entry with the current timestamp if the key is absent.
func (inv *Inventory) UpdateVersionState(key string, state DigestMap) {
	if v, ok := inv.Versions[key]; ok {
		v.State = state
		return
	}
	inv.Versions[key] = &Version{
		Created: nowUTC(),
		State:   state,
	}
}

// UpdateFixity merges fixity into inv's fixity records, replacing existing
// entries algorithm by algorithm.
func (inv *Inventory) UpdateFixity(fixity map[string]DigestMap) {
	if inv.Fixity == nil {
		inv.Fixity = map[string]DigestMap{}
	}
	for alg, digests := range fixity {
		inv.Fixity[alg] = digests
	}
}

// Head version entry, or nil if the head key is unset or missing.
func (inv *Inventory) HeadVersion() *Version {
	if inv.Head == "" {
		return nil
	}
	return inv.Versions[inv.Head]
}

// Consistency checks that inv's required values are present, that version
// names form a continuous sequence, and that every state digest appears in
// the manifest.
func (inv *Inventory) Consistency() error {
	if inv.ID == "" {
		return errors.New("missing inventory id")
	}
	if inv.Type != inventoryType {
		return fmt.Errorf("invalid inventory type: %q", inv.Type)
	}
	if inv.DigestAlgorithm == "" {
		return errors.New("missing digestAlgorithm")
	}
	if _, err := NewHash(inv.DigestAlgorithm); err != nil {
		return err
	}
	if inv.Manifest == nil {
		return errors.New("missing manifest")
	}
	if inv.Versions == nil {
		return errors.New("missing versions")
	}
	if err := inv.VersionNums().Valid(); err != nil {
		return err
	}
	for key, v := range inv.Versions {
		for digest := range v.State {
			if !inv.Manifest.HasDigest(digest) {
				return fmt.Errorf("digest in %s state missing from manifest: %s", key, digest)
			}
		}
	}
	return nil
}

// readInventoryFile reads and decodes the inventory at name in fsys.
func readInventoryFile(ctx context.Context, fsys FS, name string) (*Inventory, error) {
	f, err := fsys.OpenFile(ctx, name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadInventory(f)
}

// readSidecarDigest reads the digest value from an inventory sidecar file,
// tolerating surrounding whitespace and a trailing newline.
func readSidecarDigest(ctx context.Context, fsys FS, name string) (string, error) {
	f, err := fsys.OpenFile(ctx, name)
	if err != nil {
		return "", err
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// validateInventorySidecar recomputes the digest of the inventory at name and
// compares it to the sidecar's recorded value.
func validateInventorySidecar(ctx context.Context, fsys FS, name string, alg string) error {
	expected, err := readSidecarDigest(ctx, fsys, name+"."+alg)
	if err != nil {
		return fmt.Errorf("reading inventory sidecar: %w", err)
	}
	sum, err := Checksum(ctx, fsys, name, alg)
	if err != nil {
		return err
	}
	if !strings.EqualFold(sum, expected) {
		return &DigestError{Name: name, Alg: alg, Got: sum, Expected: expected}
	}
	return nil
}

func nowUTC() string {
	return time.Now().UTC().Format(createdFormat)
}

func freshID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

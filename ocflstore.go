// Package ocflstore implements a content-addressed, versioned object store
// following Oxford Common Filesystem Layout (OCFL) conventions over a plain
// hierarchical filesystem. A storage root holds many objects; each object
// keeps every historical version and deduplicates identical content across
// versions through a digest manifest (forward-delta reconciliation).
package ocflstore

const (
	// RootConformance is the NAMASTE type for storage root declarations.
	RootConformance = "ocfl"
	// ObjectConformance is the NAMASTE type for object declarations.
	ObjectConformance = "ocfl_object"

	inventoryFile = "inventory.json"
	contentDir    = "content"

	// DefaultDigestAlgorithm is used for manifests, version states, and
	// inventory sidecars unless configured otherwise.
	DefaultDigestAlgorithm = MD5
	// DefaultFixityAlgorithm is used for fixity records unless configured
	// otherwise.
	DefaultFixityAlgorithm = MD5
	// DefaultIDAlgorithm is used to derive storage ids from object ids.
	DefaultIDAlgorithm = MD5
)

// DefaultSpec is the conformance version written in new declarations.
var DefaultSpec = Spec{1, 0}

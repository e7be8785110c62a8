package ocflstore

import (
	"context"
	"errors"
	"path"

	"golang.org/x/exp/slices"
)

// FixityConf holds optional settings for CalcFixity and CheckFixity.
type FixityConf struct {
	// Algorithm names the fixity digest algorithm; defaults to the object's
	// configured fixity algorithm.
	Algorithm string
	// UseManifestDigest records or checks the manifest itself, under its own
	// algorithm, instead of recomputing digests.
	UseManifestDigest bool
	// SkipUpdate leaves the computed fixity out of the inventory.
	SkipUpdate bool
}

// FixityResult reports the outcome of a fixity check. Discrepancies are
// data, not errors.
type FixityResult struct {
	// Algorithm is the digest algorithm that was checked.
	Algorithm string
	// NoFixity is true when the inventory has no fixity block for Algorithm.
	NoFixity bool
	// Failures maps digests to the recorded paths that are missing or no
	// longer produce the digest.
	Failures map[string][]string
}

// OK returns true if fixity was checked and no discrepancies were found.
func (r *FixityResult) OK() bool {
	return !r.NoFixity && len(r.Failures) == 0
}

// CalcFixity computes the object's fixity record: every file under every
// version's content tree digested with the fixity algorithm, paths relative
// to the object root. With UseManifestDigest the manifest is recorded
// verbatim under its own algorithm, avoiding any recomputation. Unless
// SkipUpdate is set, the result is merged into the inventory and the
// inventories are rewritten (without reconciling).
func (o *Object) CalcFixity(ctx context.Context, conf *FixityConf) (map[string]DigestMap, error) {
	if conf == nil {
		conf = &FixityConf{}
	}
	if o.inv == nil {
		return nil, errors.New("object has no inventory")
	}
	var fixity map[string]DigestMap
	if conf.UseManifestDigest {
		fixity = map[string]DigestMap{
			o.inv.DigestAlgorithm: o.inv.Manifest.Copy(),
		}
	} else {
		alg := conf.Algorithm
		if alg == "" {
			alg = o.fixityAlg
		}
		full := o.FullPath()
		digests := DigestMap{}
		for _, v := range o.inv.VersionNums() {
			vDigests, err := DirDigests(ctx, o.FS(), path.Join(full, v.String(), contentDir), alg, full)
			if err != nil {
				return nil, err
			}
			for digest, paths := range vDigests {
				for _, p := range paths {
					digests.Add(digest, p)
				}
			}
		}
		digests.Normalize()
		fixity = map[string]DigestMap{alg: digests}
	}
	if !conf.SkipUpdate {
		o.inv.UpdateFixity(fixity)
		if err := o.Update(ctx, WithoutReconcile()); err != nil {
			return nil, err
		}
	}
	return fixity, nil
}

// CheckFixity compares the inventory's recorded fixity against freshly
// computed digests and reports per-file discrepancies.
func (o *Object) CheckFixity(ctx context.Context, conf *FixityConf) (*FixityResult, error) {
	if conf == nil {
		conf = &FixityConf{}
	}
	if o.inv == nil {
		return nil, errors.New("object has no inventory")
	}
	alg := conf.Algorithm
	switch {
	case conf.UseManifestDigest:
		alg = o.inv.DigestAlgorithm
	case alg == "":
		alg = o.fixityAlg
	}
	result := &FixityResult{Algorithm: alg}
	expected := o.inv.Fixity[alg]
	if expected == nil {
		result.NoFixity = true
		return result, nil
	}
	observed, err := o.CalcFixity(ctx, &FixityConf{
		Algorithm:         alg,
		UseManifestDigest: conf.UseManifestDigest,
		SkipUpdate:        true,
	})
	if err != nil {
		return nil, err
	}
	observedAlg := observed[alg]
	result.Failures = map[string][]string{}
	for _, digest := range expected.Digests() {
		files := expected.Paths(digest)
		observedFiles, ok := observedAlg[digest]
		if !ok {
			result.Failures[digest] = append(result.Failures[digest], files...)
			continue
		}
		for _, f := range files {
			if !slices.Contains(observedFiles, f) {
				result.Failures[digest] = append(result.Failures[digest], f)
			}
		}
	}
	if len(result.Failures) == 0 {
		result.Failures = nil
	}
	return result, nil
}

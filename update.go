package ocflstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
)

// UpdateOption configures Object.Update.
type UpdateOption func(*updateConf)

type updateConf struct {
	writeInventories bool
	reconcileDeltas  bool
	calcFixity       bool
}

// WithoutInventories skips the inventory rewrite.
func WithoutInventories() UpdateOption {
	return func(c *updateConf) {
		c.writeInventories = false
	}
}

// WithoutReconcile skips forward-delta reconciliation.
func WithoutReconcile() UpdateOption {
	return func(c *updateConf) {
		c.reconcileDeltas = false
	}
}

// WithCalcFixity also recalculates fixity with the object's fixity algorithm.
func WithCalcFixity() UpdateOption {
	return func(c *updateConf) {
		c.calcFixity = true
	}
}

// Update runs the object's maintenance sequence: inventories are written
// first, then forward-delta duplicates are pruned. The reconciler reads the
// version states the inventory pass just produced, so the order is fixed.
func (o *Object) Update(ctx context.Context, opts ...UpdateOption) error {
	conf := updateConf{
		writeInventories: true,
		reconcileDeltas:  true,
	}
	for _, opt := range opts {
		opt(&conf)
	}
	if conf.writeInventories {
		if err := o.WriteInventories(ctx); err != nil {
			return fmt.Errorf("writing inventories: %w", err)
		}
	}
	if conf.reconcileDeltas {
		if err := o.ReconcileDeltas(ctx); err != nil {
			return fmt.Errorf("reconciling deltas: %w", err)
		}
	}
	if conf.calcFixity {
		if _, err := o.CalcFixity(ctx, &FixityConf{Algorithm: o.fixityAlg}); err != nil {
			return fmt.Errorf("calculating fixity: %w", err)
		}
	}
	return nil
}

// WriteInventories recomputes the object's manifest and version states from
// the filesystem and serializes the root and per-version inventories with
// their sidecar checksums.
func (o *Object) WriteInventories(ctx context.Context) error {
	if o.inv == nil {
		return errors.New("object has no inventory")
	}
	full := o.FullPath()
	alg := o.DigestAlgorithm()
	nums, err := o.VersionDirs(ctx)
	if err != nil {
		return err
	}
	// the manifest is replaced wholesale: digests of every file under every
	// version's content tree, paths relative to the object root
	manifest := DigestMap{}
	for _, v := range nums {
		vDigests, err := DirDigests(ctx, o.FS(), path.Join(full, v.String(), contentDir), alg, full)
		if err != nil {
			return err
		}
		for digest, paths := range vDigests {
			for _, p := range paths {
				manifest.Add(digest, p)
			}
		}
	}
	manifest.Normalize()
	o.inv.Manifest = manifest
	// each version's state uses logical paths, relative to its content tree.
	// Logical entries whose physical copies were pruned by an earlier
	// reconciliation are carried over from the recorded state: versions are
	// append-only and their logical contents never shrink.
	for _, v := range nums {
		contentPath := path.Join(full, v.String(), contentDir)
		state, err := DirDigests(ctx, o.FS(), contentPath, alg, contentPath)
		if err != nil {
			return err
		}
		if prev := o.inv.Version(v); prev != nil {
			mergeVersionState(state, prev.State)
		}
		o.inv.UpdateVersionState(v.String(), state)
	}
	if head := nums.Head(); head > 0 {
		o.inv.Head = head.String()
	}
	if err := o.writeRootInventory(ctx); err != nil {
		return err
	}
	for key, version := range o.inv.Versions {
		b, err := version.Marshal()
		if err != nil {
			return err
		}
		if err := o.writeInventoryFile(ctx, path.Join(full, key, inventoryFile), b); err != nil {
			return err
		}
	}
	return nil
}

// mergeVersionState adds recorded logical entries to state when their paths
// are not physically present. A path that exists on disk keeps its freshly
// computed digest.
func mergeVersionState(state DigestMap, recorded DigestMap) {
	present := map[string]bool{}
	for _, paths := range state {
		for _, p := range paths {
			present[p] = true
		}
	}
	for digest, paths := range recorded {
		for _, p := range paths {
			if !present[p] {
				state.Add(digest, p)
			}
		}
	}
	state.Normalize()
}

// ReconcileDeltas prunes forward-delta duplicates: any file in a version
// whose digest already appears in an ancestor version's state is deleted,
// along with directories left empty. The manifest keeps only surviving
// physical paths and the root inventory is rewritten when anything changed.
func (o *Object) ReconcileDeltas(ctx context.Context) error {
	if o.inv == nil {
		return errors.New("object has no inventory")
	}
	wfs, ok := o.FS().(WriteFS)
	if !ok {
		return errors.New("backend is read-only")
	}
	nums := o.inv.VersionNums()
	if len(nums) <= 1 {
		return nil
	}
	full := o.FullPath()
	removed := map[string]bool{}
	// v1 is the baseline; work forward from v2
	for _, v := range nums[1:] {
		entry := o.inv.Version(v)
		if entry == nil {
			return fmt.Errorf("%s: %w", v, ErrVersionNotFound)
		}
		for _, digest := range entry.State.Digests() {
			// scan ancestors nearest-first
			for ancestor := v - 1; ancestor >= 1; ancestor-- {
				ancestorEntry := o.inv.Version(ancestor)
				if ancestorEntry == nil || !ancestorEntry.State.HasDigest(digest) {
					continue
				}
				for _, logical := range entry.State.Paths(digest) {
					name := path.Join(full, v.String(), contentDir, logical)
					if err := wfs.Remove(ctx, name); err != nil {
						if errors.Is(err, fs.ErrNotExist) {
							continue // pruned by an earlier pass
						}
						return err
					}
					o.log.V(1).Info("removed forward-delta duplicate", "path", name)
					removed[path.Join(v.String(), contentDir, logical)] = true
				}
				break
			}
		}
		if err := o.removeEmptyDirs(ctx, wfs, path.Join(full, v.String(), contentDir)); err != nil {
			return err
		}
	}
	if len(removed) == 0 {
		return nil
	}
	// drop pruned physical paths from the manifest and rewrite it
	for digest, paths := range o.inv.Manifest {
		kept := paths[:0]
		for _, p := range paths {
			if !removed[p] {
				kept = append(kept, p)
			}
		}
		if len(kept) == 0 {
			delete(o.inv.Manifest, digest)
			continue
		}
		o.inv.Manifest[digest] = kept
	}
	return o.writeRootInventory(ctx)
}

// removeEmptyDirs removes directories under dir, bottom-up, that have become
// empty. dir itself is kept.
func (o *Object) removeEmptyDirs(ctx context.Context, wfs WriteFS, dir string) error {
	entries, err := wfs.ReadDir(ctx, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sub := path.Join(dir, e.Name())
		if err := o.removeEmptyDirs(ctx, wfs, sub); err != nil {
			return err
		}
		remaining, err := wfs.ReadDir(ctx, sub)
		if err != nil {
			continue // blob backends have no empty directories
		}
		if len(remaining) == 0 {
			o.log.V(1).Info("removing empty directory", "path", sub)
			if err := wfs.Remove(ctx, sub); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeRootInventory serializes the root inventory.json and its sidecar.
func (o *Object) writeRootInventory(ctx context.Context) error {
	b, err := o.inv.Marshal()
	if err != nil {
		return err
	}
	return o.writeInventoryFile(ctx, path.Join(o.FullPath(), inventoryFile), b)
}

// writeInventoryFile writes serialized inventory bytes and the matching
// sidecar checksum file.
func (o *Object) writeInventoryFile(ctx context.Context, name string, b []byte) error {
	wfs, ok := o.FS().(WriteFS)
	if !ok {
		return errors.New("backend is read-only")
	}
	if _, err := wfs.Write(ctx, name, bytes.NewReader(b)); err != nil {
		return err
	}
	alg := o.DigestAlgorithm()
	digester, err := NewDigester(alg)
	if err != nil {
		return err
	}
	if _, err := digester.Write(b); err != nil {
		return err
	}
	sidecar := name + "." + alg
	if _, err := wfs.Write(ctx, sidecar, bytes.NewReader([]byte(digester.String()))); err != nil {
		return err
	}
	return nil
}

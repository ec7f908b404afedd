// Package metainfo implements read/modify/write access to the
// region-to-blob version map held in the superblock: the metadata the
// replication layer uses to know what state a shard's sub-regions are in.
package metainfo

import (
	"fmt"

	"github.com/kvshard/core/btree"
	"github.com/kvshard/core/internal/debugflag"
	"github.com/kvshard/core/region"
)

// Map is the decoded region->blob metainfo map.
type Map = region.Map[[]byte]

// Get acquires tree's current metainfo, decoding every (region-key, blob)
// pair from the superblock into a Map that tiles the universe region.
func Get(tree btree.BTree, txn btree.Txn) (Map, error) {
	raw, err := tree.MetaGet(txn)
	if err != nil {
		return Map{}, fmt.Errorf("metainfo: reading superblock: %w", err)
	}

	var pieces []region.Entry[[]byte]
	for regionKey, blob := range raw {
		r, err := region.DecodeKey([]byte(regionKey))
		if err != nil {
			return Map{}, fmt.Errorf("metainfo: decoding region key: %w", err)
		}
		pieces = append(pieces, region.Entry[[]byte]{Region: r, Value: blob})
	}
	if len(pieces) == 0 {
		pieces = []region.Entry[[]byte]{{Region: region.Universe(), Value: nil}}
	}
	return region.NewMap(pieces), nil
}

// Set merges new into the current metainfo map (new's domain overwrites,
// elsewhere is preserved), then rewrites the superblock's metainfo block
// from scratch: clear, then write every entry of the merged map.
func Set(tree btree.BTree, txn btree.Txn, new Map) error {
	current, err := Get(tree, txn)
	if err != nil {
		return err
	}
	merged := current.Update(new)

	if err := tree.MetaClear(txn); err != nil {
		return fmt.Errorf("metainfo: clearing superblock: %w", err)
	}

	kv := make(map[string][]byte, len(merged.Entries()))
	for _, e := range merged.Entries() {
		kv[string(region.EncodeKey(e.Region))] = e.Value
	}
	if err := tree.MetaSet(txn, kv); err != nil {
		return fmt.Errorf("metainfo: writing superblock: %w", err)
	}
	return nil
}

// Check asserts that current.Mask(expected.Domain()) equals expected and
// returns current. This is a debug-only assertion per the design notes:
// it panics (ProgrammingError-class) rather than returning an error, since
// a mismatch means a caller's view of metadata is stale in a way the
// store's ordering guarantees should have prevented.
func Check(tree btree.BTree, txn btree.Txn, expected Map) (Map, error) {
	current, err := Get(tree, txn)
	if err != nil {
		return Map{}, err
	}
	if !debugflag.Enabled() {
		return current, nil
	}
	masked := current.Mask(expected.Domain())
	if !mapsEqual(masked, expected) {
		panic(fmt.Sprintf("metainfo: check_metainfo mismatch: current %v expected %v", masked.Entries(), expected.Entries()))
	}
	return current, nil
}

// CheckAndUpdate performs Check followed by Set within the same write
// transaction.
func CheckAndUpdate(tree btree.BTree, txn btree.Txn, expected, new Map) error {
	if _, err := Check(tree, txn, expected); err != nil {
		return err
	}
	return Set(tree, txn, new)
}

func mapsEqual(a, b Map) bool {
	ae, be := a.Entries(), b.Entries()
	if len(ae) != len(be) {
		return false
	}
	for i := range ae {
		if !region.Equals(ae[i].Region, be[i].Region) {
			return false
		}
		if string(ae[i].Value) != string(be[i].Value) {
			return false
		}
	}
	return true
}

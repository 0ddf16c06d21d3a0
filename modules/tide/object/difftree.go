// Copyright 2018 Sourced Technologies, S.L.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"context"
	"sort"

	"github.com/antgroup/tide/modules/plumbing"
)

// TreeChanges compares two trees and returns the path-level changes between
// them. A nil from stands for the empty tree, so every entry of to surfaces
// as an add. When a rename detector is given, matching delete/add pairs are
// rewritten into renames or copies.
func TreeChanges(ctx context.Context, b Backend, from, to *Tree, detector *RenameDetector) (Changes, error) {
	changes, err := treeDiff(ctx, b, "", from, to, 0)
	if err != nil {
		return nil, err
	}
	if detector != nil {
		if changes, err = detector.Detect(ctx, changes); err != nil {
			return nil, err
		}
	}
	sort.Sort(changes)
	return changes, nil
}

// TreeChangesForMerge diffs a merge commit's tree against every parent tree
// in declared order, one Changes list per parent.
func TreeChangesForMerge(ctx context.Context, b Backend, parents []*Tree, to *Tree, detector *RenameDetector) ([]Changes, error) {
	all := make([]Changes, 0, len(parents))
	for _, parent := range parents {
		changes, err := TreeChanges(ctx, b, parent, to, detector)
		if err != nil {
			return nil, err
		}
		all = append(all, changes)
	}
	return all, nil
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

func treeDiff(ctx context.Context, b Backend, prefix string, from, to *Tree, depth int) (Changes, error) {
	if depth > maxTreeDepth {
		return nil, ErrMaxTreeDepth
	}
	var fromEntries, toEntries []*TreeEntry
	if from != nil {
		fromEntries = from.Entries
	}
	if to != nil {
		toEntries = to.Entries
	}

	var changes Changes
	i, j := 0, 0
	for i < len(fromEntries) || j < len(toEntries) {
		switch {
		case j >= len(toEntries) || (i < len(fromEntries) && fromEntries[i].Name < toEntries[j].Name):
			removed, err := expandEntry(ctx, b, prefix, fromEntries[i], depth, ChangeDelete)
			if err != nil {
				return nil, err
			}
			changes = append(changes, removed...)
			i++
		case i >= len(fromEntries) || (j < len(toEntries) && toEntries[j].Name < fromEntries[i].Name):
			added, err := expandEntry(ctx, b, prefix, toEntries[j], depth, ChangeAdd)
			if err != nil {
				return nil, err
			}
			changes = append(changes, added...)
			j++
		default:
			sub, err := entryDiff(ctx, b, prefix, fromEntries[i], toEntries[j], depth)
			if err != nil {
				return nil, err
			}
			changes = append(changes, sub...)
			i++
			j++
		}
	}
	return changes, nil
}

func entryDiff(ctx context.Context, b Backend, prefix string, from, to *TreeEntry, depth int) (Changes, error) {
	if from.Equal(to) {
		return nil, nil
	}
	name := joinPath(prefix, from.Name)
	switch {
	case from.IsDir() && to.IsDir():
		fromTree, err := resolveTree(ctx, b, from.Hash)
		if err != nil {
			return nil, err
		}
		toTree, err := resolveTree(ctx, b, to.Hash)
		if err != nil {
			return nil, err
		}
		return treeDiff(ctx, b, name, fromTree, toTree, depth+1)
	case from.IsDir() != to.IsDir():
		// A path flipped between directory and file; the old side drops
		// entirely before the new side appears.
		removed, err := expandEntry(ctx, b, prefix, from, depth, ChangeDelete)
		if err != nil {
			return nil, err
		}
		added, err := expandEntry(ctx, b, prefix, to, depth, ChangeAdd)
		if err != nil {
			return nil, err
		}
		return append(removed, added...), nil
	}
	return Changes{{
		Type: ChangeModify,
		From: ChangeEntry{Path: name, Mode: from.Mode, Hash: from.Hash},
		To:   ChangeEntry{Path: name, Mode: to.Mode, Hash: to.Hash},
	}}, nil
}

// expandEntry emits one change per file under entry; directories are
// expanded recursively so the diff always speaks in file paths.
func expandEntry(ctx context.Context, b Backend, prefix string, entry *TreeEntry, depth int, kind ChangeType) (Changes, error) {
	if depth > maxTreeDepth {
		return nil, ErrMaxTreeDepth
	}
	name := joinPath(prefix, entry.Name)
	if !entry.IsDir() {
		ce := ChangeEntry{Path: name, Mode: entry.Mode, Hash: entry.Hash}
		c := &Change{Type: kind}
		if kind == ChangeDelete {
			c.From = ce
		} else {
			c.To = ce
		}
		return Changes{c}, nil
	}
	tree, err := resolveTree(ctx, b, entry.Hash)
	if err != nil {
		return nil, err
	}
	var changes Changes
	for _, e := range tree.Entries {
		sub, err := expandEntry(ctx, b, name, e, depth+1, kind)
		if err != nil {
			return nil, err
		}
		changes = append(changes, sub...)
	}
	return changes, nil
}

// blobBytes loads a blob's content for similarity scoring.
func blobBytes(ctx context.Context, b Backend, oid plumbing.Hash) ([]byte, error) {
	blob, err := b.Blob(ctx, oid)
	if err != nil {
		return nil, err
	}
	return blob.Content, nil
}

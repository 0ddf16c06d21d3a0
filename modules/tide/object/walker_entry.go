// Copyright 2018 Sourced Technologies, S.L.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"context"
	"fmt"
)

// WalkEntry is a single result from a walk: a commit plus its tree-level
// changes, computed lazily and at most once.
type WalkEntry struct {
	Commit *Commit

	w            *Walker
	changes      Changes
	mergeChanges []Changes
	computed     bool
}

func newWalkEntry(w *Walker, c *Commit) *WalkEntry {
	return &WalkEntry{Commit: c, w: w}
}

func (e *WalkEntry) compute(ctx context.Context) error {
	if e.computed {
		return nil
	}
	c := e.Commit
	b := e.w.b
	parents := e.w.getParents(c)
	root, err := resolveTree(ctx, b, c.Tree)
	if err != nil {
		return err
	}
	switch len(parents) {
	case 0:
		if e.changes, err = TreeChanges(ctx, b, nil, root, e.w.renameDetector); err != nil {
			return err
		}
	case 1:
		parent, err := b.Commit(ctx, parents[0])
		if err != nil {
			return err
		}
		parentTree, err := resolveTree(ctx, b, parent.Tree)
		if err != nil {
			return err
		}
		if e.changes, err = TreeChanges(ctx, b, parentTree, root, e.w.renameDetector); err != nil {
			return err
		}
	default:
		trees := make([]*Tree, 0, len(parents))
		for _, p := range parents {
			parent, err := b.Commit(ctx, p)
			if err != nil {
				return err
			}
			parentTree, err := resolveTree(ctx, b, parent.Tree)
			if err != nil {
				return err
			}
			trees = append(trees, parentTree)
		}
		if e.mergeChanges, err = TreeChangesForMerge(ctx, b, trees, root, e.w.renameDetector); err != nil {
			return err
		}
	}
	e.computed = true
	return nil
}

// Changes returns the tree changes for a commit with at most one parent;
// for a parentless commit they are relative to the empty tree.
func (e *WalkEntry) Changes(ctx context.Context) (Changes, error) {
	if err := e.compute(ctx); err != nil {
		return nil, err
	}
	return e.changes, nil
}

// MergeChanges returns the per-parent change lists of a merge commit, one
// list per parent in declared order.
func (e *WalkEntry) MergeChanges(ctx context.Context) ([]Changes, error) {
	if err := e.compute(ctx); err != nil {
		return nil, err
	}
	return e.mergeChanges, nil
}

func (e *WalkEntry) String() string {
	return fmt.Sprintf("<WalkEntry commit=%s>", e.Commit.Hash)
}

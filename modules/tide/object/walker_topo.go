// Copyright 2018 Sourced Technologies, S.L.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"container/list"
	"context"
	"io"

	"github.com/antgroup/tide/modules/plumbing"
)

// topoReorder turns an almost-topologically-ordered stream (commit time
// order is one) into a strict child-before-parent order. A parent is held
// in pending until the last of its recorded children has been yielded, then
// jumps the queue. Entries whose parents never appear in the input (pruned
// by bounds or exclusion) pass through untouched.
type topoReorder struct {
	source      func(ctx context.Context) (*WalkEntry, error)
	getParents  func(*Commit) []plumbing.Hash
	todo        *list.List
	pending     map[plumbing.Hash]*WalkEntry
	numChildren map[plumbing.Hash]int
	ingested    bool
}

func newTopoReorder(source func(ctx context.Context) (*WalkEntry, error), getParents func(*Commit) []plumbing.Hash) *topoReorder {
	return &topoReorder{
		source:      source,
		getParents:  getParents,
		todo:        list.New(),
		pending:     make(map[plumbing.Hash]*WalkEntry),
		numChildren: make(map[plumbing.Hash]int),
	}
}

// ingest drains the source, counting for every commit how many of its
// children appear in the stream.
func (t *topoReorder) ingest(ctx context.Context) error {
	for {
		entry, err := t.source(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		t.todo.PushBack(entry)
		for _, p := range t.getParents(entry.Commit) {
			t.numChildren[p]++
		}
	}
}

func (t *topoReorder) Next(ctx context.Context) (*WalkEntry, error) {
	if !t.ingested {
		t.ingested = true
		if err := t.ingest(ctx); err != nil {
			return nil, err
		}
	}
	for {
		front := t.todo.Front()
		if front == nil {
			return nil, io.EOF
		}
		entry := t.todo.Remove(front).(*WalkEntry)
		commit := entry.Commit
		if t.numChildren[commit.Hash] > 0 {
			t.pending[commit.Hash] = entry
			continue
		}
		for _, parent := range t.getParents(commit) {
			t.numChildren[parent]--
			if t.numChildren[parent] == 0 {
				if parentEntry, ok := t.pending[parent]; ok {
					delete(t.pending, parent)
					t.todo.PushFront(parentEntry)
				}
			}
		}
		return entry, nil
	}
}

// Copyright 2018 Sourced Technologies, S.L.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"bytes"
	"context"
	"io"

	"github.com/antgroup/tide/modules/plumbing"
	"github.com/emirpasic/gods/trees/binaryheap"
)

// maxExtraCommits is the number of commits the traversal is willing to walk
// past a time boundary or an exclusion wavefront. Commit times are not
// monotone along parent edges (clock skew, rebases), so stopping exactly at
// a boundary would drop parents whose timestamps run ahead of their
// children.
const maxExtraCommits = 5

// WalkQueue produces candidate entries for a Walker, newest first. Next
// returns io.EOF permanently once the traversal is finished.
type WalkQueue interface {
	Next(ctx context.Context) (*WalkEntry, error)
}

// commitTimeDescending orders the heap by committer timestamp, newest
// first; equal timestamps fall back to descending hash bytes so one walk
// pops ties in a reproducible order.
func commitTimeDescending(a, b any) int {
	ca, cb := a.(*Commit), b.(*Commit)
	if ca.Committer.When.After(cb.Committer.When) {
		return -1
	}
	if ca.Committer.When.Before(cb.Committer.When) {
		return 1
	}
	return bytes.Compare(cb.Hash[:], ca.Hash[:])
}

// commitTimeQueue walks the commit graph through a max-heap keyed on
// committer time, marking excluded ancestry as it goes. Two heuristics keep
// it honest near boundaries:
//
//   - exclusion catch-up: when an excluded branch's tip is newer than the
//     last emitted commit, its ancestors may overlap the include set, so
//     the queue keeps consuming until the exclusion set has caught up;
//   - boundary slack: once past the since bound (or a fully excluded
//     frontier that cannot catch up), at most maxExtraCommits more commits
//     are popped before the traversal terminates.
type commitTimeQueue struct {
	w          *Walker
	b          Backend
	getParents func(*Commit) []plumbing.Hash
	excluded   map[plumbing.Hash]bool // shared with the Walker
	heap       *binaryheap.Heap
	pqSet      map[plumbing.Hash]bool
	seen       map[plumbing.Hash]bool
	done       map[plumbing.Hash]bool
	last       *Commit
	extraLeft  int
	started    bool
	finished   bool
}

func newCommitTimeQueue(w *Walker) WalkQueue {
	return &commitTimeQueue{
		w:          w,
		b:          w.b,
		getParents: w.getParents,
		excluded:   w.excluded,
		heap:       binaryheap.NewWith(commitTimeDescending),
		pqSet:      make(map[plumbing.Hash]bool),
		seen:       make(map[plumbing.Hash]bool),
		done:       make(map[plumbing.Hash]bool),
		extraLeft:  maxExtraCommits,
	}
}

// start seeds the heap with the include and exclude tips. Seeding happens
// on the first Next call so a missing seed surfaces on the step that tried
// to load it.
func (q *commitTimeQueue) start(ctx context.Context) error {
	for _, oid := range q.w.include {
		if err := q.push(ctx, oid); err != nil {
			return err
		}
	}
	for oid := range q.excluded {
		if err := q.push(ctx, oid); err != nil {
			return err
		}
	}
	return nil
}

func (q *commitTimeQueue) push(ctx context.Context, oid plumbing.Hash) error {
	if q.pqSet[oid] || q.done[oid] {
		return nil
	}
	c, err := q.b.Commit(ctx, oid)
	if err != nil {
		return err
	}
	q.heap.Push(c)
	q.pqSet[oid] = true
	q.seen[oid] = true
	return nil
}

// excludeParents marks the popped commit's observed ancestry excluded: a
// DFS through the already seen portion of the graph, so that every seen
// ancestor is covered before its emission is considered. Parents never seen
// are picked up when they are popped later.
func (q *commitTimeQueue) excludeParents(ctx context.Context, c *Commit) error {
	todo := []*Commit{c}
	for len(todo) > 0 {
		c := todo[len(todo)-1]
		todo = todo[:len(todo)-1]
		for _, parent := range q.getParents(c) {
			if !q.excluded[parent] && q.seen[parent] {
				pc, err := q.b.Commit(ctx, parent)
				if err != nil {
					return err
				}
				todo = append(todo, pc)
			}
			q.excluded[parent] = true
		}
	}
	return nil
}

// allExcluded reports whether every commit still in the heap is excluded.
func (q *commitTimeQueue) allExcluded() bool {
	for _, v := range q.heap.Values() {
		if !q.excluded[v.(*Commit).Hash] {
			return false
		}
	}
	return true
}

func (q *commitTimeQueue) Next(ctx context.Context) (*WalkEntry, error) {
	if q.finished {
		return nil, io.EOF
	}
	if !q.started {
		q.started = true
		if err := q.start(ctx); err != nil {
			return nil, err
		}
	}
	for {
		v, ok := q.heap.Pop()
		if !ok {
			break
		}
		c := v.(*Commit)
		delete(q.pqSet, c.Hash)
		if q.done[c.Hash] {
			continue
		}
		q.done[c.Hash] = true

		for _, parent := range q.getParents(c) {
			if err := q.push(ctx, parent); err != nil {
				return nil, err
			}
		}

		resetExtraCommits := true
		isExcluded := q.excluded[c.Hash]
		if isExcluded {
			if err := q.excludeParents(ctx, c); err != nil {
				return nil, err
			}
			if !q.heap.Empty() && q.allExcluded() {
				nv, _ := q.heap.Peek()
				n := nv.(*Commit)
				if q.last != nil && !n.Committer.When.Before(q.last.Committer.When) {
					// The next commit is newer than the last emitted one:
					// keep walking so the exclusion set can catch up with
					// parents we have not seen yet while the commit is
					// still in the Walker's output queue.
					resetExtraCommits = true
				} else {
					resetExtraCommits = false
				}
			}
		}

		if q.w.since != nil && c.Committer.When.Before(*q.w.since) {
			// Crossed the lower time bound; commits at the boundary may be
			// out of order with respect to their parents, so walk
			// maxExtraCommits more before stopping.
			resetExtraCommits = false
		}

		if resetExtraCommits {
			q.extraLeft = maxExtraCommits
		} else {
			q.extraLeft--
			if q.extraLeft == 0 {
				break
			}
		}

		if !isExcluded {
			q.last = c
			return newWalkEntry(q.w, c), nil
		}
	}
	q.finished = true
	return nil, io.EOF
}

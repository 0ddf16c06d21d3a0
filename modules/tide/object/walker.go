// Copyright 2018 Sourced Technologies, S.L.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/antgroup/tide/modules/plumbing"
)

// WalkOrder selects the order entries are yielded in.
type WalkOrder string

const (
	// WalkOrderDate yields commits newest first by committer time.
	WalkOrderDate WalkOrder = "date"
	// WalkOrderTopo yields commits so that no parent precedes any of its
	// children. Requires O(n) memory.
	WalkOrderTopo WalkOrder = "topo"
)

var (
	ErrInvalidOrder      = errors.New("unknown walk order")
	ErrInvalidMaxEntries = errors.New("max entries must not be negative")
)

// WalkOptions configures a Walker.
type WalkOptions struct {
	// Include are the tips whose ancestors are candidates for emission.
	Include []plumbing.Hash
	// Exclude seeds the excluded set; excluded ancestry overrides Include.
	Exclude []plumbing.Hash
	// Order is WalkOrderDate when empty.
	Order WalkOrder
	// Reverse the output, requiring O(n) memory.
	Reverse bool
	// MaxEntries caps the number of yielded entries; zero means no limit.
	MaxEntries int
	// Paths restricts output to commits touching one of these files or
	// subtrees. Empty means all paths.
	Paths []string
	// RenameDetector is passed to tree diffs computed for entries.
	RenameDetector *RenameDetector
	// Follow tracks renamed paths backwards through history. Forces a
	// default rename detector when none is supplied.
	Follow bool
	// Since and Until bound committer time, both inclusive.
	Since *time.Time
	Until *time.Time
	// GetParents overrides parent lookup, enabling virtual histories such
	// as grafts. Defaults to the commit's declared parents.
	GetParents func(*Commit) []plumbing.Hash
	// NewQueue overrides the traversal backend.
	NewQueue func(*Walker) WalkQueue
}

// Walker yields WalkEntry values for commits reachable from the include
// tips, in the requested order. A walker may be iterated by one consumer
// only; exhaustion is permanent.
type Walker struct {
	b              Backend
	include        []plumbing.Hash
	excluded       map[plumbing.Hash]bool // shared with the queue, grows during the walk
	order          WalkOrder
	reverse        bool
	maxEntries     int
	paths          map[string]bool // nil means all paths
	follow         bool
	renameDetector *RenameDetector
	since          *time.Time
	until          *time.Time
	getParents     func(*Commit) []plumbing.Hash

	queue      WalkQueue
	outQueue   []*WalkEntry
	numEntries int

	next     func(ctx context.Context) (*WalkEntry, error)
	prepared bool
	buffered []*WalkEntry // reversal buffer
}

// NewWalker validates opts and prepares a walk over b. Option errors
// surface here; a missing commit surfaces on the step that first tried to
// load it.
func NewWalker(b Backend, opts *WalkOptions) (*Walker, error) {
	if opts == nil {
		opts = &WalkOptions{}
	}
	order := opts.Order
	if order == "" {
		order = WalkOrderDate
	}
	if order != WalkOrderDate && order != WalkOrderTopo {
		return nil, fmt.Errorf("%w '%s'", ErrInvalidOrder, opts.Order)
	}
	if opts.MaxEntries < 0 {
		return nil, ErrInvalidMaxEntries
	}
	w := &Walker{
		b:          b,
		include:    opts.Include,
		excluded:   make(map[plumbing.Hash]bool, len(opts.Exclude)),
		order:      order,
		reverse:    opts.Reverse,
		maxEntries: opts.MaxEntries,
		follow:     opts.Follow,
		since:      opts.Since,
		until:      opts.Until,
	}
	for _, oid := range opts.Exclude {
		w.excluded[oid] = true
	}
	if len(opts.Paths) != 0 {
		w.paths = make(map[string]bool, len(opts.Paths))
		for _, p := range opts.Paths {
			w.paths[p] = true
		}
	}
	w.renameDetector = opts.RenameDetector
	if w.follow && w.renameDetector == nil {
		w.renameDetector = NewRenameDetector(b)
	}
	w.getParents = opts.GetParents
	if w.getParents == nil {
		w.getParents = func(c *Commit) []plumbing.Hash { return c.Parents }
	}
	if opts.NewQueue != nil {
		w.queue = opts.NewQueue(w)
	} else {
		w.queue = newCommitTimeQueue(w)
	}
	return w, nil
}

// pathMatches reports whether p names one of the requested paths or a file
// under one of them. The explicit '/' check keeps "foo/bar" from matching a
// requested "foo/b".
func (w *Walker) pathMatches(p string) bool {
	if p == "" {
		return false
	}
	for followed := range w.paths {
		if p == followed {
			return true
		}
		if strings.HasPrefix(p, followed) && len(p) > len(followed) && p[len(followed)] == '/' {
			return true
		}
	}
	return false
}

// changeMatches reports whether a single change touches the requested
// paths. When following renames, a matched rename swaps the tracked name
// for its historical one so the walk keeps following the same file.
func (w *Walker) changeMatches(c *Change) bool {
	if c == nil {
		return false
	}
	if w.pathMatches(c.To.Path) {
		if w.follow && c.Type.IsRename() {
			delete(w.paths, c.To.Path)
			w.paths[c.From.Path] = true
		}
		return true
	}
	return w.pathMatches(c.From.Path)
}

// shouldReturn decides at emission time whether an entry still qualifies:
// the excluded set may have grown since the entry was produced, which is
// why output is delayed by maxExtraCommits entries.
func (w *Walker) shouldReturn(ctx context.Context, entry *WalkEntry) (bool, error) {
	commit := entry.Commit
	if w.since != nil && commit.Committer.When.Before(*w.since) {
		return false, nil
	}
	if w.until != nil && commit.Committer.When.After(*w.until) {
		return false, nil
	}
	if w.excluded[commit.Hash] {
		return false, nil
	}
	if w.paths == nil {
		return true, nil
	}

	if len(w.getParents(commit)) > 1 {
		// For merge commits every parent's change list is scanned and the
		// entry qualifies at the first matching change in any of them; the
		// path need not differ from every parent.
		lists, err := entry.MergeChanges(ctx)
		if err != nil {
			return false, err
		}
		for _, pathChanges := range lists {
			for _, change := range pathChanges {
				if w.changeMatches(change) {
					return true, nil
				}
			}
		}
		return false, nil
	}

	changes, err := entry.Changes(ctx)
	if err != nil {
		return false, err
	}
	for _, change := range changes {
		if w.changeMatches(change) {
			return true, nil
		}
	}
	return false, nil
}

// step pulls from the queue through the bounded output-delay buffer, giving
// late-arriving exclusions a chance to suppress entries already produced.
func (w *Walker) step(ctx context.Context) (*WalkEntry, error) {
	for w.maxEntries == 0 || w.numEntries < w.maxEntries {
		entry, err := w.queue.Next(ctx)
		if err != nil && err != io.EOF {
			return nil, err
		}
		if err == nil {
			w.outQueue = append(w.outQueue, entry)
		}
		if err == io.EOF || len(w.outQueue) > maxExtraCommits {
			if len(w.outQueue) == 0 {
				return nil, io.EOF
			}
			candidate := w.outQueue[0]
			w.outQueue = w.outQueue[1:]
			ok, serr := w.shouldReturn(ctx, candidate)
			if serr != nil {
				return nil, serr
			}
			if ok {
				w.numEntries++
				return candidate, nil
			}
		}
	}
	return nil, io.EOF
}

// prepare wires the reordering pipeline: topological reorder when
// requested, then reversal, which materializes the remaining stream.
func (w *Walker) prepare(ctx context.Context) error {
	w.next = w.step
	if w.order == WalkOrderTopo {
		reorder := newTopoReorder(w.step, w.getParents)
		w.next = reorder.Next
	}
	if w.reverse {
		for {
			entry, err := w.next(ctx)
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
			w.buffered = append(w.buffered, entry)
		}
		w.next = func(context.Context) (*WalkEntry, error) {
			if len(w.buffered) == 0 {
				return nil, io.EOF
			}
			entry := w.buffered[len(w.buffered)-1]
			w.buffered = w.buffered[:len(w.buffered)-1]
			return entry, nil
		}
	}
	w.prepared = true
	return nil
}

// Next returns the next entry of the walk, io.EOF when done.
func (w *Walker) Next(ctx context.Context) (*WalkEntry, error) {
	if !w.prepared {
		if err := w.prepare(ctx); err != nil {
			return nil, err
		}
	}
	return w.next(ctx)
}

// ForEach iterates the walk, calling cb for every entry. Returning
// plumbing.ErrStop from cb ends iteration without error.
func (w *Walker) ForEach(ctx context.Context, cb func(*WalkEntry) error) error {
	for {
		entry, err := w.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		err = cb(entry)
		if err == plumbing.ErrStop {
			break
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Close releases the walker's buffers. The walker must not be iterated
// afterwards.
func (w *Walker) Close() {
	w.outQueue = nil
	w.buffered = nil
	w.prepared = true
	w.next = func(context.Context) (*WalkEntry, error) { return nil, io.EOF }
}

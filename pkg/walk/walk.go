// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package walk drives commit-history walks for the CLI and the server: it
// turns user-facing options into a Walker and renders the entries.
package walk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/antgroup/tide/modules/plumbing"
	"github.com/antgroup/tide/modules/tide/object"
)

// Format selects how entries are rendered.
type Format int

const (
	FormatText Format = iota
	FormatJSON
	FormatPatch
)

// Options is the user-facing surface of a walk.
type Options struct {
	// Include and Exclude are hex commit ids; Exclude wins.
	Include []string
	Exclude []string
	// Order is "date" or "topo"; empty means date.
	Order string
	// Paths restricts output to commits touching these files or subtrees.
	Paths []string
	// Follow keeps tracking a path across renames.
	Follow bool
	// Since and Until bound committer time, both inclusive.
	Since *time.Time
	Until *time.Time
	// MaxEntries caps output; zero means unlimited.
	MaxEntries int
	Reverse    bool
	Format     Format
}

func parseHashes(ids []string) ([]plumbing.Hash, error) {
	oids := make([]plumbing.Hash, 0, len(ids))
	for _, s := range ids {
		oid, err := plumbing.NewHashEx(s)
		if err != nil {
			return nil, err
		}
		oids = append(oids, oid)
	}
	return oids, nil
}

// NewWalker builds an object.Walker from user-facing options.
func NewWalker(b object.Backend, opts *Options) (*object.Walker, error) {
	include, err := parseHashes(opts.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := parseHashes(opts.Exclude)
	if err != nil {
		return nil, err
	}
	return object.NewWalker(b, &object.WalkOptions{
		Include:    include,
		Exclude:    exclude,
		Order:      object.WalkOrder(opts.Order),
		Reverse:    opts.Reverse,
		MaxEntries: opts.MaxEntries,
		Paths:      opts.Paths,
		Follow:     opts.Follow,
		Since:      opts.Since,
		Until:      opts.Until,
	})
}

// Run walks the history and writes every qualifying entry to w in the
// requested format.
func Run(ctx context.Context, b object.Backend, opts *Options, w io.Writer) error {
	walker, err := NewWalker(b, opts)
	if err != nil {
		return err
	}
	defer walker.Close()

	if opts.Format == FormatJSON {
		commits := make([]*object.Commit, 0, 16)
		if err := walker.ForEach(ctx, func(entry *object.WalkEntry) error {
			commits = append(commits, entry.Commit)
			return nil
		}); err != nil {
			return err
		}
		return json.NewEncoder(w).Encode(commits)
	}

	return walker.ForEach(ctx, func(entry *object.WalkEntry) error {
		if opts.Format == FormatPatch {
			return object.FormatCommitPatch(ctx, b, w, entry, nil)
		}
		_, err := fmt.Fprintf(w, "%s\n", entry.Commit)
		return err
	})
}

// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"context"

	"github.com/antgroup/tide/modules/plumbing"
)

type Backend interface {
	Commit(ctx context.Context, oid plumbing.Hash) (*Commit, error)
	Tree(ctx context.Context, oid plumbing.Hash) (*Tree, error)
	Blob(ctx context.Context, oid plumbing.Hash) (*Blob, error)
	Tag(ctx context.Context, oid plumbing.Hash) (*Tag, error)
}

// GetCommit fetches a commit, returning nil when oid does not resolve to a
// commit object.
func GetCommit(ctx context.Context, b Backend, oid plumbing.Hash) (*Commit, error) {
	cc, err := b.Commit(ctx, oid)
	if err != nil {
		return nil, err
	}
	return cc, nil
}

// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"bytes"
	"context"
	"io"

	"github.com/antgroup/tide/modules/plumbing"
	"github.com/antgroup/tide/modules/tide/object"
)

// Memory is a map backed object store for tests and ephemeral histories.
// It is not safe for concurrent writers.
type Memory struct {
	commits map[plumbing.Hash]*object.Commit
	trees   map[plumbing.Hash]*object.Tree
	blobs   map[plumbing.Hash]*object.Blob
	tags    map[plumbing.Hash]*object.Tag
}

func NewMemory() *Memory {
	return &Memory{
		commits: make(map[plumbing.Hash]*object.Commit),
		trees:   make(map[plumbing.Hash]*object.Tree),
		blobs:   make(map[plumbing.Hash]*object.Blob),
		tags:    make(map[plumbing.Hash]*object.Tag),
	}
}

func computeHash(encode func(w io.Writer) error) (plumbing.Hash, error) {
	var buf bytes.Buffer
	if err := encode(&buf); err != nil {
		return plumbing.ZeroHash, err
	}
	hasher := plumbing.NewHasher()
	_, _ = hasher.Write(buf.Bytes())
	return hasher.Sum(), nil
}

// WriteCommit stores the commit under its content hash, binding it to this
// store for parent and tree lookups.
func (m *Memory) WriteCommit(c *object.Commit) (plumbing.Hash, error) {
	oid, err := computeHash(c.Encode)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	c.Hash = oid
	rebound, err := reboundCommit(m, c)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	m.commits[oid] = rebound
	return oid, nil
}

// reboundCommit re-decodes the commit with m as its backend so Root
// resolves through this store.
func reboundCommit(m *Memory, c *object.Commit) (*object.Commit, error) {
	var buf bytes.Buffer
	if err := c.Encode(&buf); err != nil {
		return nil, err
	}
	return object.DecodeCommit(m, c.Hash, bytes.NewReader(buf.Bytes()))
}

func (m *Memory) WriteTree(t *object.Tree) (plumbing.Hash, error) {
	t.Sort()
	oid, err := computeHash(t.Encode)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	t.Hash = oid
	var buf bytes.Buffer
	if err := t.Encode(&buf); err != nil {
		return plumbing.ZeroHash, err
	}
	rebound, err := object.DecodeTree(m, oid, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return plumbing.ZeroHash, err
	}
	m.trees[oid] = rebound
	return oid, nil
}

func (m *Memory) WriteBlob(b *object.Blob) (plumbing.Hash, error) {
	oid, err := computeHash(b.Encode)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	b.Hash = oid
	m.blobs[oid] = b
	return oid, nil
}

func (m *Memory) WriteTag(t *object.Tag) (plumbing.Hash, error) {
	oid, err := computeHash(t.Encode)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	t.Hash = oid
	m.tags[oid] = t
	return oid, nil
}

func (m *Memory) Commit(ctx context.Context, oid plumbing.Hash) (*object.Commit, error) {
	c, ok := m.commits[oid]
	if !ok {
		return nil, plumbing.NoSuchObject(oid)
	}
	return c, nil
}

func (m *Memory) Tree(ctx context.Context, oid plumbing.Hash) (*object.Tree, error) {
	t, ok := m.trees[oid]
	if !ok {
		return nil, plumbing.NoSuchObject(oid)
	}
	return t, nil
}

func (m *Memory) Blob(ctx context.Context, oid plumbing.Hash) (*object.Blob, error) {
	b, ok := m.blobs[oid]
	if !ok {
		return nil, plumbing.NoSuchObject(oid)
	}
	return b, nil
}

func (m *Memory) Tag(ctx context.Context, oid plumbing.Hash) (*object.Tag, error) {
	t, ok := m.tags[oid]
	if !ok {
		return nil, plumbing.NoSuchObject(oid)
	}
	return t, nil
}

var (
	_ object.Backend = (*Memory)(nil)
)

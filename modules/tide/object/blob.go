// Copyright 2018 Sourced Technologies, S.L.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"bytes"
	"io"

	"github.com/antgroup/tide/modules/plumbing"
)

// Blob carries raw file content. Unlike trees and commits a blob has no
// structure beyond its magic; size is whatever the store returns.
type Blob struct {
	Hash    plumbing.Hash
	Content []byte
}

func (b *Blob) Size() int64 {
	return int64(len(b.Content))
}

func (b *Blob) Encode(w io.Writer) error {
	if _, err := w.Write(BLOB_MAGIC[:]); err != nil {
		return err
	}
	_, err := w.Write(b.Content)
	return err
}

// Decode reads the encoded form of a blob, magic included.
func (b *Blob) Decode(reader io.Reader) error {
	var magic [4]byte
	if _, err := io.ReadFull(reader, magic[:]); err != nil {
		return err
	}
	if magic != BLOB_MAGIC {
		return ErrUnsupportedObject
	}
	content, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	b.Content = content
	return nil
}

// DecodeBlob decodes a blob read from the store.
func DecodeBlob(oid plumbing.Hash, r io.Reader) (*Blob, error) {
	b := &Blob{Hash: oid}
	if err := b.Decode(r); err != nil {
		return nil, err
	}
	return b, nil
}

// IsBinary guesses whether content is binary the way git does: a NUL byte in
// the first 8000 bytes.
func (b *Blob) IsBinary() bool {
	sniff := b.Content
	if len(sniff) > 8000 {
		sniff = sniff[:8000]
	}
	return bytes.IndexByte(sniff, 0) != -1
}

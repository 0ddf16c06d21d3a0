// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package streamio

import (
	"bufio"
	"io"
	"sync"
)

var (
	bufioReader = sync.Pool{
		New: func() any {
			return bufio.NewReader(nil)
		},
	}
)

// GetBufioReader returns a *bufio.Reader that is managed by a sync.Pool.
// Returns a bufio.Reader that is reset with reader and ready for use.
//
// After use, the *bufio.Reader should be put back into the sync.Pool
// by calling PutBufioReader.
func GetBufioReader(r io.Reader) *bufio.Reader {
	b := bufioReader.Get().(*bufio.Reader)
	b.Reset(r)
	return b
}

// PutBufioReader puts reader back into its sync.Pool.
func PutBufioReader(b *bufio.Reader) {
	b.Reset(nil)
	bufioReader.Put(b)
}

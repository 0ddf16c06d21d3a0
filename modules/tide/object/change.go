// Copyright 2018 Sourced Technologies, S.L.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/antgroup/tide/modules/plumbing"
	"github.com/antgroup/tide/modules/plumbing/filemode"
)

// ChangeType classifies a path-level difference between two trees.
type ChangeType byte

const (
	ChangeAdd       ChangeType = 'A'
	ChangeDelete    ChangeType = 'D'
	ChangeModify    ChangeType = 'M'
	ChangeRename    ChangeType = 'R'
	ChangeCopy      ChangeType = 'C'
	ChangeUnchanged ChangeType = 'U'
)

func (t ChangeType) String() string {
	switch t {
	case ChangeAdd:
		return "add"
	case ChangeDelete:
		return "delete"
	case ChangeModify:
		return "modify"
	case ChangeRename:
		return "rename"
	case ChangeCopy:
		return "copy"
	case ChangeUnchanged:
		return "unchanged"
	}
	return "unknown"
}

// IsRename reports whether the type carries a source path distinct from the
// destination path.
func (t ChangeType) IsRename() bool {
	return t == ChangeRename || t == ChangeCopy
}

// ChangeEntry names one side of a change. The zero value stands for the
// absent side of an add or a delete.
type ChangeEntry struct {
	// Full path of the node using "/" as separator.
	Path string
	// Mode of the node.
	Mode filemode.FileMode
	// Object ID of the node content.
	Hash plumbing.Hash
}

func (e *ChangeEntry) IsZero() bool {
	return e.Path == "" && e.Mode == filemode.Empty && e.Hash.IsZero()
}

func (e *ChangeEntry) Equal(o *ChangeEntry) bool {
	return e.Path == o.Path && e.Mode == o.Mode && bytes.Equal(e.Hash[:], o.Hash[:])
}

// Change values represent a detected change between two trees. For
// modifications, From is the original status of the node and To is its
// final status. For insertions, From is the zero value and for
// deletions To is the zero value.
type Change struct {
	Type ChangeType
	From ChangeEntry
	To   ChangeEntry
}

func (c *Change) Name() string {
	return c.name()
}

func (c *Change) name() string {
	if !c.To.IsZero() {
		return c.To.Path
	}
	return c.From.Path
}

func (c *Change) String() string {
	return fmt.Sprintf("<Action: %s, Path: %s>", c.Type, c.name())
}

// Changes represents a collection of changes between two trees.
// Implements sort.Interface lexicographically over the path of the
// changed files.
type Changes []*Change

func (c Changes) Len() int {
	return len(c)
}

func (c Changes) Swap(i, j int) {
	c[i], c[j] = c[j], c[i]
}

func (c Changes) Less(i, j int) bool {
	return strings.Compare(c[i].name(), c[j].name()) < 0
}

func (c Changes) String() string {
	var buffer bytes.Buffer
	buffer.WriteString("[")
	comma := ""
	for _, v := range c {
		buffer.WriteString(comma)
		buffer.WriteString(v.String())
		comma = ", "
	}
	buffer.WriteString("]")

	return buffer.String()
}

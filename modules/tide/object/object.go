// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"errors"
	"strings"
)

var (
	ErrUnsupportedObject = errors.New("unsupported object type")
)

// Object format magics. Every encoded object starts with one of these four
// byte sequences; the trailing pair carries a format version.
var (
	COMMIT_MAGIC = [4]byte{'T', 'C', 0x00, 0x01}
	TREE_MAGIC   = [4]byte{'T', 'T', 0x00, 0x01}
	BLOB_MAGIC   = [4]byte{'T', 'B', 0x00, 0x01}
	TAG_MAGIC    = [4]byte{'T', 'G', 0x00, 0x01}
)

type ObjectType int8

const (
	InvalidObject ObjectType = 0
	CommitObject  ObjectType = 1
	TreeObject    ObjectType = 2
	BlobObject    ObjectType = 3
	TagObject     ObjectType = 4

	AnyObject ObjectType = -127
)

func (t ObjectType) String() string {
	switch t {
	case CommitObject:
		return "commit"
	case TreeObject:
		return "tree"
	case BlobObject:
		return "blob"
	case TagObject:
		return "tag"
	case AnyObject:
		return "any"
	default:
		return "unknown"
	}
}

// ObjectTypeFromString converts from a given string to an ObjectType
// enumeration instance.
func ObjectTypeFromString(s string) ObjectType {
	switch strings.ToLower(s) {
	case "commit":
		return CommitObject
	case "tree":
		return TreeObject
	case "blob":
		return BlobObject
	case "tag":
		return TagObject
	case "any":
		return AnyObject
	}
	return InvalidObject
}

// ObjectTypeFromMagic maps an encoded object's leading magic to its type.
func ObjectTypeFromMagic(magic [4]byte) ObjectType {
	switch magic {
	case COMMIT_MAGIC:
		return CommitObject
	case TREE_MAGIC:
		return TreeObject
	case BLOB_MAGIC:
		return BlobObject
	case TAG_MAGIC:
		return TagObject
	}
	return InvalidObject
}

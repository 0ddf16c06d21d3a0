// Copyright 2018 Sourced Technologies, S.L.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"fmt"
	"io"
	"strings"

	"github.com/antgroup/tide/modules/plumbing"
	"github.com/antgroup/tide/modules/streamio"
)

// Tag is an annotated tag pointing at another object, usually a commit.
type Tag struct {
	Hash    plumbing.Hash `json:"hash"`
	Object  plumbing.Hash `json:"object"`
	Type    ObjectType    `json:"type"`
	Name    string        `json:"name"`
	Tagger  Signature     `json:"tagger"`
	Message string        `json:"message"`
}

func (t *Tag) Encode(w io.Writer) error {
	if _, err := w.Write(TAG_MAGIC[:]); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "object %s\ntype %s\ntag %s\ntagger %s\n",
		t.Object.String(), t.Type, t.Name, t.Tagger.String()); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "\n%s", t.Message); err != nil {
		return err
	}
	return nil
}

// Decode reads the encoded form of a tag, magic included.
func (t *Tag) Decode(reader io.Reader) error {
	var magic [4]byte
	if _, err := io.ReadFull(reader, magic[:]); err != nil {
		return err
	}
	if magic != TAG_MAGIC {
		return ErrUnsupportedObject
	}
	r := streamio.GetBufioReader(reader)
	defer streamio.PutBufioReader(r)

	var message strings.Builder
	var finishedHeaders bool
	for {
		line, readErr := r.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return readErr
		}
		text := strings.TrimSuffix(line, "\n")
		if len(text) == 0 && !finishedHeaders {
			finishedHeaders = true
			if readErr == io.EOF {
				break
			}
			continue
		}
		if !finishedHeaders {
			if fields := strings.SplitN(text, " ", 2); len(fields) == 2 {
				switch fields[0] {
				case "object":
					t.Object = plumbing.NewHash(fields[1])
				case "type":
					t.Type = ObjectTypeFromString(fields[1])
				case "tag":
					t.Name = fields[1]
				case "tagger":
					t.Tagger.Decode([]byte(fields[1]))
				}
			}
		} else {
			_, _ = message.WriteString(line)
		}
		if readErr == io.EOF {
			break
		}
	}
	t.Message = message.String()
	return nil
}

// DecodeTag decodes a tag read from the store.
func DecodeTag(oid plumbing.Hash, r io.Reader) (*Tag, error) {
	t := &Tag{Hash: oid}
	if err := t.Decode(r); err != nil {
		return nil, err
	}
	return t, nil
}

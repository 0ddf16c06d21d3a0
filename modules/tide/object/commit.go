// Copyright 2018 Sourced Technologies, S.L.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/antgroup/tide/modules/plumbing"
	"github.com/antgroup/tide/modules/streamio"
)

// DateFormat is the format being used in the original git implementation
const DateFormat = "Mon Jan 02 15:04:05 2006 -0700"

type Signature struct {
	Name  string    `json:"name"`
	Email string    `json:"email"`
	When  time.Time `json:"when"`
}

var timeZoneLength = 5

func (s *Signature) decodeTimeAndTimeZone(b []byte) {
	space := bytes.IndexByte(b, ' ')
	if space == -1 {
		space = len(b)
	}

	ts, err := strconv.ParseInt(string(b[:space]), 10, 64)
	if err != nil {
		return
	}

	s.When = time.Unix(ts, 0).In(time.UTC)
	var tzStart = space + 1
	if tzStart >= len(b) || tzStart+timeZoneLength > len(b) {
		return
	}

	timezone := string(b[tzStart : tzStart+timeZoneLength])
	tzhours, err1 := strconv.ParseInt(timezone[0:3], 10, 64)
	tzmins, err2 := strconv.ParseInt(timezone[3:], 10, 64)
	if err1 != nil || err2 != nil {
		return
	}
	if tzhours < 0 {
		tzmins *= -1
	}

	tz := time.FixedZone("", int(tzhours*60*60+tzmins*60))

	s.When = s.When.In(tz)
}

// Decode decodes a byte slice into a signature
func (s *Signature) Decode(b []byte) {
	open := bytes.LastIndexByte(b, '<')
	close := bytes.LastIndexByte(b, '>')
	if open == -1 || close == -1 {
		return
	}

	if close < open {
		return
	}

	s.Name = string(bytes.Trim(b[:open], " "))
	s.Email = string(b[open+1 : close])

	hasTime := close+2 < len(b)
	if hasTime {
		s.decodeTimeAndTimeZone(b[close+2:])
	}
}

const (
	formatTimeZoneOnly = "-0700"
)

// String implements the fmt.Stringer interface and formats a Signature as
// expected in the commit internal object format. For instance:
//
//	Taylor Blau <ttaylorr@github.com> 1494258422 -0600
func (s *Signature) String() string {
	at := s.When.Unix()
	zone := s.When.Format(formatTimeZoneOnly)

	return fmt.Sprintf("%s <%s> %d %s", s.Name, s.Email, at, zone)
}

type Commit struct {
	Hash plumbing.Hash `json:"hash"` // commit oid
	// Author is the original writer of the contents.
	Author Signature `json:"author"`
	// Committer is the individual or entity that added this commit to the
	// history.
	Committer Signature `json:"committer"`
	// Parents are the IDs of all parents for which this commit is a
	// linear child.
	Parents []plumbing.Hash `json:"parents"`
	// Tree is the root Tree associated with this commit.
	Tree plumbing.Hash `json:"tree"`
	// Message is the commit message.
	Message string `json:"message"`
	b       Backend
}

func (c *Commit) Encode(w io.Writer) error {
	if _, err := w.Write(COMMIT_MAGIC[:]); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "tree %s\n", c.Tree.String()); err != nil {
		return err
	}
	for _, parent := range c.Parents {
		if _, err := fmt.Fprintf(w, "parent %s\n", parent.String()); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "author %s\ncommitter %s\n", c.Author.String(), c.Committer.String()); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "\n%s", c.Message); err != nil {
		return err
	}
	return nil
}

// Decode reads the encoded form of a commit, magic included. The receiver's
// Hash is left untouched; callers resolve it from the store key.
func (c *Commit) Decode(reader io.Reader) error {
	var magic [4]byte
	if _, err := io.ReadFull(reader, magic[:]); err != nil {
		return err
	}
	if magic != COMMIT_MAGIC {
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
			fields := strings.Split(text, " ")
			if len(fields) < 2 {
				if readErr == io.EOF {
					break
				}
				continue
			}
			switch fields[0] {
			case "tree":
				if len(fields) != 2 {
					return fmt.Errorf("error parsing tree: %s", text)
				}
				c.Tree = plumbing.NewHash(fields[1])
			case "parent":
				if len(fields) != 2 {
					return fmt.Errorf("error parsing parent: %s", text)
				}
				c.Parents = append(c.Parents, plumbing.NewHash(fields[1]))
			case "author":
				c.Author.Decode([]byte(text[7:]))
			case "committer":
				c.Committer.Decode([]byte(text[10:]))
			}
		} else {
			_, _ = message.WriteString(line)
		}
		if readErr == io.EOF {
			break
		}
	}
	c.Message = message.String()
	return nil
}

// DecodeCommit decodes a commit read from the store and binds it to b so
// that tree and parent lookups resolve through the same backend.
func DecodeCommit(b Backend, oid plumbing.Hash, r io.Reader) (*Commit, error) {
	c := &Commit{Hash: oid, b: b}
	if err := c.Decode(r); err != nil {
		return nil, err
	}
	return c, nil
}

// Less defines a compare function to determine which commit is 'earlier' by:
// - First use Committer.When
// - If Committer.When are equal then use Author.When
// - If Author.When also equal then compare the string value of the hash
func (c *Commit) Less(rhs *Commit) bool {
	return c.Committer.When.Before(rhs.Committer.When) ||
		(c.Committer.When.Equal(rhs.Committer.When) &&
			(c.Author.When.Before(rhs.Author.When) ||
				(c.Author.When.Equal(rhs.Author.When) && bytes.Compare(c.Hash[:], rhs.Hash[:]) < 0)))
}

func indent(t string) string {
	var output []string
	for _, line := range strings.Split(t, "\n") {
		if len(line) != 0 {
			line = "    " + line
		}

		output = append(output, line)
	}

	return strings.Join(output, "\n")
}

func (c *Commit) String() string {
	return fmt.Sprintf(
		"%s %s\nAuthor: %s\nDate:   %s\n\n%s\n",
		CommitObject, c.Hash, c.Author.String(),
		c.Author.When.Format(DateFormat), indent(c.Message),
	)
}

func (c *Commit) Subject() string {
	if i := strings.IndexAny(c.Message, "\r\n"); i != -1 {
		return c.Message[0:i]
	}
	return c.Message
}

func (c *Commit) NumParents() int {
	return len(c.Parents)
}

// CommitTime is the committer timestamp, the key the walk orders by.
func (c *Commit) CommitTime() time.Time {
	return c.Committer.When
}

// Root returns the Tree from the commit.
func (c *Commit) Root(ctx context.Context) (*Tree, error) {
	return resolveTree(ctx, c.b, c.Tree)
}

// Backend returns the store this commit was decoded from.
func (c *Commit) Backend() Backend {
	return c.b
}

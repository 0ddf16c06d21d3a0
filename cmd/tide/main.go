// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/antgroup/tide/modules/plumbing"
	"github.com/antgroup/tide/modules/tide/backend"
	"github.com/antgroup/tide/pkg/version"
	"github.com/antgroup/tide/pkg/walk"
)

type Globals struct {
	Repo    string `name:"repo" short:"R" help:"Repository object database root" default:"." type:"path"`
	Verbose bool   `name:"verbose" short:"V" help:"Make the operation more talkative"`
}

type App struct {
	Globals
	Log     Log     `cmd:"log" help:"Show commit logs"`
	Cat     Cat     `cmd:"cat" help:"Provide contents of repository objects"`
	Version Version `cmd:"version" help:"Display version information"`
}

type Log struct {
	Revision []string `arg:"" optional:"" name:"revision" help:"Commits to include"`
	Exclude  []string `name:"exclude" short:"x" help:"Commits to exclude, overriding includes"`
	Paths    []string `name:"path" help:"Limit commits to ones touching the given paths"`
	Follow   bool     `name:"follow" help:"Continue listing a file's history across renames"`
	Topo     bool     `name:"topo-order" help:"Show commits in topological order"`
	Reverse  bool     `name:"reverse" help:"Reverse order"`
	MaxCount int      `name:"max-count" short:"n" help:"Limit the number of commits"`
	Since    string   `name:"since" help:"Show commits more recent than a date (RFC 3339)"`
	Until    string   `name:"until" help:"Show commits older than a date (RFC 3339)"`
	JSON     bool     `name:"json" short:"j" help:"Data will be returned in JSON format"`
	Patch    bool     `name:"patch" short:"p" help:"Generate patch text"`
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("bad date '%s': %w", s, err)
	}
	return &ts, nil
}

func (c *Log) Run(g *Globals) error {
	d, err := backend.NewDatabase(g.Repo)
	if err != nil {
		return err
	}
	defer d.Close() // nolint
	since, err := parseDate(c.Since)
	if err != nil {
		return err
	}
	until, err := parseDate(c.Until)
	if err != nil {
		return err
	}
	opts := &walk.Options{
		Include:    c.Revision,
		Exclude:    c.Exclude,
		Paths:      c.Paths,
		Follow:     c.Follow,
		Reverse:    c.Reverse,
		MaxEntries: c.MaxCount,
		Since:      since,
		Until:      until,
	}
	if c.Topo {
		opts.Order = "topo"
	}
	switch {
	case c.JSON:
		opts.Format = walk.FormatJSON
	case c.Patch:
		opts.Format = walk.FormatPatch
	}
	start := time.Now()
	if err := walk.Run(context.Background(), d, opts, os.Stdout); err != nil {
		return err
	}
	if g.Verbose {
		fmt.Fprintf(os.Stderr, "walk spent: %v\n", time.Since(start))
	}
	return nil
}

type Cat struct {
	Object string `arg:"" name:"object" help:"Object id to show"`
}

func (c *Cat) Run(g *Globals) error {
	d, err := backend.NewDatabase(g.Repo)
	if err != nil {
		return err
	}
	defer d.Close() // nolint
	oid, err := plumbing.NewHashEx(c.Object)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if blob, err := d.Blob(ctx, oid); err == nil {
		_, err = os.Stdout.Write(blob.Content)
		return err
	}
	if cc, err := d.Commit(ctx, oid); err == nil {
		fmt.Fprintf(os.Stdout, "%s", cc)
		return nil
	}
	if tree, err := d.Tree(ctx, oid); err == nil {
		for _, e := range tree.Entries {
			fmt.Fprintf(os.Stdout, "%s %s %s\n", e.Mode, e.Hash, e.Name)
		}
		return nil
	}
	return plumbing.NoSuchObject(oid)
}

type Version struct{}

func (c *Version) Run(g *Globals) error {
	fmt.Fprintln(os.Stdout, version.GetVersionString())
	return nil
}

func main() {
	app := &App{}
	ctx := kong.Parse(app,
		kong.Name("tide"),
		kong.Description("Tide is a compact content-addressed SCM core"),
		kong.UsageOnError(),
	)
	if err := ctx.Run(&app.Globals); err != nil {
		fmt.Fprintf(os.Stderr, "tide: %v\n", err)
		os.Exit(1)
	}
}

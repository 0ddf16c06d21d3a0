// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/antgroup/tide/pkg/serve"
	"github.com/sirupsen/logrus"
)

type App struct {
	Config string `short:"c" name:"config" help:"Location of server config file" default:"tide-serve.toml" type:"path"`
	Debug  bool   `name:"debug" help:"Enable debug logging"`
}

func (c *App) Run() error {
	if c.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	sc, err := serve.NewServerConfig(c.Config)
	if err != nil {
		logrus.Errorf("tide-serve load server config error: %v", err)
		return err
	}
	srv, err := serve.NewServer(sc)
	if err != nil {
		logrus.Errorf("tide-serve new server error: %v", err)
		return err
	}

	done := make(chan struct{})
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		<-ch
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logrus.Errorf("tide-serve shutdown error: %v", err)
		}
		close(done)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logrus.Errorf("tide-serve listen error: %v", err)
		return err
	}
	<-done
	logrus.Infof("tide-serve exited")
	return nil
}

func main() {
	app := &App{}
	ctx := kong.Parse(app,
		kong.Name("tide-serve"),
		kong.Description("Read-only HTTP surface over tide repositories"),
		kong.UsageOnError(),
	)
	if err := ctx.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "tide-serve: %v\n", err)
		os.Exit(1)
	}
}

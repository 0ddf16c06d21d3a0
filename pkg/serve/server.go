// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package serve exposes repositories over a read-only HTTP surface: commit
// logs through the history walker and raw object content.
package serve

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/antgroup/tide/modules/plumbing"
	"github.com/antgroup/tide/modules/tide/backend"
	"github.com/antgroup/tide/pkg/walk"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Server struct {
	*ServerConfig
	srv *http.Server
	r   *mux.Router

	mu  sync.Mutex
	hub map[string]*backend.Database // open repositories by name
}

func NewServer(sc *ServerConfig) (*Server, error) {
	if sc.Repositories == "" {
		return nil, errors.New("no repositories root configured")
	}
	s := &Server{
		ServerConfig: sc,
		srv: &http.Server{
			Addr:         sc.Listen,
			ReadTimeout:  sc.ReadTimeout.Duration,
			IdleTimeout:  sc.IdleTimeout.Duration,
			WriteTimeout: sc.WriteTimeout.Duration,
		},
		hub: make(map[string]*backend.Database),
	}
	r := mux.NewRouter()
	r.HandleFunc("/{repo}/log", s.Log).Methods("GET")
	r.HandleFunc("/{repo}/objects/{oid}", s.GetObject).Methods("GET")
	s.r = r
	s.srv.Handler = s
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	hw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
	hw.Header().Set("Server", s.BannerVersion)
	s.r.ServeHTTP(hw, r)
	spent := time.Since(start)
	if hw.statusCode >= http.StatusBadRequest {
		logrus.Errorf("[%s] %s %s status: %d written: %d spent: %v", r.RemoteAddr, r.Method, r.RequestURI, hw.statusCode, hw.written, spent)
		return
	}
	logrus.Infof("[%s] %s %s status: %d written: %d spent: %v", r.RemoteAddr, r.Method, r.RequestURI, hw.statusCode, hw.written, spent)
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (w *responseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.written += int64(n)
	return n, err
}

// open returns the repository's database, opening and caching it on first
// use. Repository names never escape the configured root.
func (s *Server) open(name string) (*backend.Database, error) {
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return nil, errors.New("invalid repository name")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.hub[name]; ok {
		return d, nil
	}
	d, err := backend.NewDatabase(filepath.Join(s.Repositories, name))
	if err != nil {
		return nil, err
	}
	s.hub[name] = d
	return d, nil
}

func parseWalkQuery(r *http.Request) (*walk.Options, error) {
	q := r.URL.Query()
	opts := &walk.Options{
		Include: q["include"],
		Exclude: q["exclude"],
		Order:   q.Get("order"),
		Paths:   q["path"],
		Follow:  q.Get("follow") == "true",
		Reverse: q.Get("reverse") == "true",
		Format:  walk.FormatJSON,
	}
	if v := q.Get("max"); v != "" {
		max, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		opts.MaxEntries = max
	}
	for param, dst := range map[string]**time.Time{"since": &opts.Since, "until": &opts.Until} {
		if v := q.Get(param); v != "" {
			ts, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return nil, err
			}
			*dst = &ts
		}
	}
	return opts, nil
}

// Log walks the requested history and streams it as JSON.
func (s *Server) Log(w http.ResponseWriter, r *http.Request) {
	d, err := s.open(mux.Vars(r)["repo"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	opts, err := parseWalkQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := walk.Run(r.Context(), d, opts, w); err != nil {
		if plumbing.IsNoSuchObject(err) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// GetObject streams a blob's raw content.
func (s *Server) GetObject(w http.ResponseWriter, r *http.Request) {
	d, err := s.open(mux.Vars(r)["repo"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	oid, err := plumbing.NewHashEx(mux.Vars(r)["oid"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	blob, err := d.Blob(r.Context(), oid)
	if err != nil {
		if plumbing.IsNoSuchObject(err) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(blob.Content)
}

func (s *Server) ListenAndServe() error {
	logrus.Infof("tide-serve listening on %s", s.Listen)
	return s.srv.ListenAndServe()
}

// Shutdown drains in-flight requests and closes every open repository.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.hub {
		_ = d.Close()
	}
	s.hub = make(map[string]*backend.Database)
	return err
}

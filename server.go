// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/kyanite/roitracker/metrics"
	"github.com/kyanite/roitracker/trackroi"
)

const jsonContentType = "application/json; charset=utf-8"

// roiService is the part of the engine served over HTTP.
type roiService interface {
	GenerateROI(verbose bool) ([]trackroi.Field, error)
	ResetSamples()
	Flush() error
}

type httpError struct {
	cause  error
	status int
}

func (e *httpError) Error() string {
	return e.cause.Error()
}

// handlerFunc is an http.HandlerFunc that returns an error.  An httpError
// selects the response status, any other error responds with
// http.StatusInternalServerError.
type handlerFunc func(http.ResponseWriter, *http.Request) error

// wrapHandlerFunc converts a handlerFunc to an http.HandlerFunc writing
// errors as a JSON object.
func wrapHandlerFunc(f handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := f(w, r)
		if err == nil {
			return
		}
		status := http.StatusInternalServerError
		if he, ok := err.(*httpError); ok {
			status = he.status
		}
		log.Debugf("%s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, status, map[string]string{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, obj interface{}) error {
	w.Header().Set("Content-Type", jsonContentType)
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(obj)
}

// newRouter returns the HTTP routes of the ROI query surface.
func newRouter(roi roiService) *mux.Router {
	router := mux.NewRouter()

	router.Path("/roi").
		Methods(http.MethodGet).
		HandlerFunc(wrapHandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
			verbose := false
			if v := r.URL.Query().Get("verbose"); v != "" {
				var err error
				verbose, err = strconv.ParseBool(v)
				if err != nil {
					return &httpError{errors.New("verbose: invalid boolean"),
						http.StatusBadRequest}
				}
			}
			fields, err := roi.GenerateROI(verbose)
			if err != nil {
				if trackroi.IsInsufficientData(err) ||
					trackroi.IsError(err, trackroi.ErrTxIndexDisabled) {
					return &httpError{err, http.StatusServiceUnavailable}
				}
				return err
			}
			return writeJSON(w, http.StatusOK, fields)
		}))

	router.Path("/roi/reset").
		Methods(http.MethodPost).
		HandlerFunc(wrapHandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
			roi.ResetSamples()
			log.Infof("Sample store reset over HTTP from %s", r.RemoteAddr)
			w.WriteHeader(http.StatusNoContent)
			return nil
		}))

	router.Path("/roi/flush").
		Methods(http.MethodPost).
		HandlerFunc(wrapHandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
			if err := roi.Flush(); err != nil {
				return err
			}
			w.WriteHeader(http.StatusNoContent)
			return nil
		}))

	if h := metrics.HTTPHandler(); h != nil {
		router.Path("/metrics").Methods(http.MethodGet).Handler(h)
	}
	return router
}

// httpServer serves the ROI routes on every configured listener.
type httpServer struct {
	server    *http.Server
	listeners []net.Listener
	wg        sync.WaitGroup
}

// newHTTPServer binds all listen addresses.  No listener is left open when
// an error is returned.
func newHTTPServer(listenAddrs []string, roi roiService) (*httpServer, error) {
	s := &httpServer{
		server: &http.Server{
			Handler:           newRouter(roi),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	for _, addr := range listenAddrs {
		l, err := net.Listen("tcp", addr)
		if err != nil {
			for _, l := range s.listeners {
				l.Close()
			}
			return nil, err
		}
		s.listeners = append(s.listeners, l)
	}
	return s, nil
}

// Start begins serving on every listener.
func (s *httpServer) Start() {
	for _, l := range s.listeners {
		s.wg.Add(1)
		go func(l net.Listener) {
			defer s.wg.Done()
			log.Infof("HTTP server listening on %s", l.Addr())
			err := s.server.Serve(l)
			if err != nil && err != http.ErrServerClosed {
				log.Errorf("HTTP server on %s: %v", l.Addr(), err)
			}
		}(l)
	}
}

// Stop closes all listeners and waits for the serving goroutines to exit.
func (s *httpServer) Stop() {
	s.server.Close()
	s.wg.Wait()
}

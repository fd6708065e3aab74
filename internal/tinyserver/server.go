package tinyserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/systmms/multicloud/internal/logging"
	"github.com/systmms/multicloud/pkg/backend"
)

// Server serves one backend.
type Server struct {
	backend backend.Backend
	logger  *logging.Logger
	router  *mux.Router
}

// New creates a server for b. A nil logger discards output.
func New(b backend.Backend, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{backend: b, logger: logger, router: mux.NewRouter()}

	s.router.HandleFunc(ObjectsPrefix+"{key:.+}", s.getObject).Methods(http.MethodGet)
	s.router.HandleFunc(ObjectsPrefix+"{key:.+}", s.headObject).Methods(http.MethodHead)
	s.router.HandleFunc(ObjectsPrefix+"{key:.+}", s.putObject).Methods(http.MethodPut)
	s.router.HandleFunc(SecretsPrefix+"{name}", s.getSecret).Methods(http.MethodGet)
	s.router.HandleFunc(SecretsPrefix+"{name}", s.putSecret).Methods(http.MethodPut)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("serving %s backend on %s", s.backend.Name(), addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind, status := Classify(err)
	s.logger.Debug("%s %s: %v", r.Method, r.URL.Path, err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorBody{Kind: kind, Message: err.Error()})
}

func (s *Server) object(w http.ResponseWriter, r *http.Request) (backend.Object, bool) {
	obj, err := s.backend.Object(mux.Vars(r)["key"])
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	return obj, true
}

func (s *Server) getObject(w http.ResponseWriter, r *http.Request) {
	obj, ok := s.object(w, r)
	if !ok {
		return
	}
	body, err := obj.GetFile(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, body); err != nil {
		s.logger.Warn("object %s: response interrupted: %v", obj.Key(), err)
	}
}

func (s *Server) headObject(w http.ResponseWriter, r *http.Request) {
	obj, ok := s.object(w, r)
	if !ok {
		return
	}
	exists, err := obj.Exists(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !exists {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) putObject(w http.ResponseWriter, r *http.Request) {
	obj, ok := s.object(w, r)
	if !ok {
		return
	}
	out, err := obj.PutFile(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := io.Copy(out, http.MaxBytesReader(w, r.Body, MaxBodySize)); err != nil {
		_ = backend.Abort(out)
		s.fail(w, r, err)
		return
	}
	if err := out.Close(); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) secret(w http.ResponseWriter, r *http.Request) (backend.Secret, bool) {
	sec, err := s.backend.Secret(mux.Vars(r)["name"])
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	return sec, true
}

func (s *Server) getSecret(w http.ResponseWriter, r *http.Request) {
	sec, ok := s.secret(w, r)
	if !ok {
		return
	}
	value, err := sec.Get(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(value)
}

func (s *Server) putSecret(w http.ResponseWriter, r *http.Request) {
	sec, ok := s.secret(w, r)
	if !ok {
		return
	}
	var value interface{}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodySize)).Decode(&value); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(ErrorBody{Kind: KindBadRequest, Message: "request body is not JSON: " + err.Error()})
		return
	}
	if err := sec.Set(r.Context(), value); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

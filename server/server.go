package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/valyala/gorpc"
	"golang.org/x/sync/errgroup"

	"github.com/janelia-flyem/omerotools/omero"
)

//go:generate go run ../cmd/gen-version -o gitversion.go

// Version of the omerotools service.
const Version = "0.9.0"

// Set by the generated gitversion.go.
var (
	gitVersion = "unknown"
	gitRelease bool
)

// GitVersion returns the git description of the build and whether it is a
// tagged release.
func GitVersion() (string, bool) {
	return gitVersion, gitRelease
}

// PruneInterval is how often old reports are deleted.
var PruneInterval = time.Hour

// newWebServer returns the web server whose request contexts derive from ctx,
// so canceling ctx cancels scripts run over HTTP.
func (s *Service) newWebServer(ctx context.Context) *http.Server {
	return &http.Server{
		Addr:              s.cfg.HTTPAddress(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 30 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

// Serve runs the web and RPC servers until the context is canceled or a
// shutdown is requested.  Running scripts are canceled on shutdown.
func (s *Service) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	gorpc.SetErrorLogger(omero.Errorf)
	rpcServer := gorpc.NewTCPServer(s.cfg.RPCAddress(), s.dispatcher(gctx).NewHandlerFunc())
	if err := rpcServer.Start(); err != nil {
		return fmt.Errorf("could not start RPC server @ %s: %v", s.cfg.RPCAddress(), err)
	}
	omero.Infof("RPC server listening on %s\n", s.cfg.RPCAddress())

	httpServer := s.newWebServer(gctx)
	g.Go(func() error {
		omero.Infof("Web server listening on %s\n", httpServer.Addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("web server @ %s: %v", httpServer.Addr, err)
		}
		return nil
	})

	g.Go(func() error {
		if _, err := s.PruneReports(); err != nil {
			omero.Errorf("pruning reports: %v\n", err)
		}
		ticker := time.NewTicker(PruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if _, err := s.PruneReports(); err != nil {
					omero.Errorf("pruning reports: %v\n", err)
				}
			}
		}
	})

	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-s.Done():
		}
		omero.Infof("Stopping web and RPC servers...\n")
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		err := httpServer.Shutdown(shutdownCtx)
		rpcServer.Stop()
		return err
	})

	return g.Wait()
}

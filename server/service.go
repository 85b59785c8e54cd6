package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/DmitriyVTitov/size"

	"github.com/janelia-flyem/omerotools/gateway"
	"github.com/janelia-flyem/omerotools/omero"
	"github.com/janelia-flyem/omerotools/scripts"
	"github.com/janelia-flyem/omerotools/storage"
)

// Service runs scripts on behalf of web and RPC clients and records every run.
type Service struct {
	cfg      *Config
	dialer   gateway.Dialer
	exporter *storage.BlobExporter
	reports  *storage.ReportStore
	activity *storage.ActivityLog
	auth     *authorizer
	started  time.Time

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	closeOnce    sync.Once
}

// RunRequest holds the session and parameters of a script run.  If User is
// empty, the configured service account is used.
type RunRequest struct {
	User     string
	Password string
	Params   scripts.Params
}

// NewService opens the stores of the configuration.  If dialer is nil, the
// configured OMERO server is used.
func NewService(ctx context.Context, cfg *Config, dialer gateway.Dialer) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if dialer == nil {
		dialer = cfg.Dialer()
	}
	s := &Service{
		cfg:        cfg,
		dialer:     dialer,
		started:    time.Now(),
		shutdownCh: make(chan struct{}),
	}

	var err error
	if s.auth, err = newAuthorizer(cfg.Auth); err != nil {
		return nil, err
	}
	if cfg.Export.Location != "" {
		if s.exporter, err = storage.OpenExporter(ctx, cfg.Export); err != nil {
			return nil, err
		}
	}
	if s.reports, err = storage.OpenReportStore(cfg.Reports); err != nil {
		s.Close()
		return nil, err
	}
	if s.activity, err = storage.NewActivityLog(cfg.Kafka, cfg.Host()); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Close shuts down the stores.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.activity != nil {
			err = s.activity.Close()
		}
		if s.reports != nil {
			if rerr := s.reports.Close(); rerr != nil {
				err = rerr
			}
		}
		if s.exporter != nil {
			if eerr := s.exporter.Close(); eerr != nil {
				err = eerr
			}
		}
	})
	return err
}

// Shutdown asks a running Serve to stop.
func (s *Service) Shutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdownCh) })
}

// Done is closed once a shutdown is requested.
func (s *Service) Done() <-chan struct{} {
	return s.shutdownCh
}

// Reports returns the report store.
func (s *Service) Reports() *storage.ReportStore {
	return s.reports
}

func (s *Service) env(req RunRequest) *scripts.Env {
	env := &scripts.Env{
		Dialer:   s.dialer,
		User:     req.User,
		Password: req.Password,
		Params:   req.Params,
	}
	if env.User == "" {
		env.User, env.Password = s.cfg.Omero.User, s.cfg.Omero.Password
	}
	if s.exporter != nil {
		env.Exporter = s.exporter
	}
	return env
}

// RunScript runs the named script and stores its report.  A report is
// returned along with any error if the script got far enough to produce one.
func (s *Service) RunScript(ctx context.Context, name string, req RunRequest) (*omero.Report, error) {
	script, err := scripts.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, omero.ErrNotFound)
	}
	env := s.env(req)
	report, err := scripts.Run(ctx, script, env)
	if report == nil {
		return nil, err
	}
	if err != nil {
		report.Finish("Aborted: %v", err)
	}
	if _, perr := s.reports.Put(report); perr != nil {
		omero.Errorf("unable to store report of %s: %v\n", name, perr)
	} else {
		omero.Debugf("Report %s of %s uses %s in memory\n", report.ID, name, omero.ByteSize(size.Of(report)))
	}
	s.activity.LogReport(report, env.User)
	return report, err
}

// RunCommand runs a script named by the first word of a command line with
// the command's key=value settings as parameters.
func (s *Service) RunCommand(ctx context.Context, cmd omero.Command, user, password string) (*omero.Report, error) {
	script, err := scripts.Get(cmd.Name())
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, omero.ErrNotFound)
	}
	params, err := scripts.FromCommand(cmd, script.Info())
	if err != nil {
		return nil, err
	}
	return s.RunScript(ctx, cmd.Name(), RunRequest{User: user, Password: password, Params: params})
}

// PruneReports deletes reports older than the configured retention.
func (s *Service) PruneReports() (int, error) {
	cutoff := time.Now().Add(-s.cfg.ReportRetention())
	n, err := s.reports.Prune(cutoff)
	if err != nil {
		return n, err
	}
	if n > 0 {
		omero.Infof("Pruned %d reports started before %s\n", n, cutoff.Format(time.RFC3339))
	}
	return n, nil
}

// About returns a description of the running service.
func (s *Service) About() map[string]string {
	d := map[string]string{
		"Host":         s.cfg.Host(),
		"Version":      Version,
		"Git version":  gitVersion,
		"Started":      s.started.Format(time.RFC3339),
		"Report store": s.reports.String(),
		"Kafka topic":  s.activity.Topic(),
		"Note":         s.cfg.Server.Note,
	}
	if hd, ok := s.dialer.(*gateway.HTTPDialer); ok {
		d["OMERO server"] = fmt.Sprintf("%s:%d", hd.Server, hd.Port)
	}
	if s.exporter != nil {
		d["Exports"] = s.exporter.Location()
	}
	return d
}

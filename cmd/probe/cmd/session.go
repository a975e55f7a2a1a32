package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/OpenTraceLab/OpenTraceProbe/internal/config"
	"github.com/OpenTraceLab/OpenTraceProbe/pkg/link"
	"github.com/OpenTraceLab/OpenTraceProbe/pkg/probehead"
	"github.com/OpenTraceLab/OpenTraceProbe/pkg/store"
)

const dialTimeout = 5 * time.Second

// session bundles what an action needs: the probe head, the session store
// and the settings they were opened with.
type session struct {
	cfg    *config.Config
	head   *probehead.Remote
	store  *store.Store
	target string
}

// openSession opens the store, then connects to the configured head.
func openSession() (*session, error) {
	st, err := store.Open(store.Options{Path: settings.DB, Logger: logger})
	if err != nil {
		return nil, err
	}

	client, err := connect(settings)
	if err != nil {
		st.Close()
		return nil, err
	}
	logger.Info("probe head connected", "transport", settings.Transport, "port", settings.Port)

	return &session{
		cfg:    settings,
		head:   probehead.NewRemote(client, settings.Timeouts, logger),
		store:  st,
		target: settings.Target,
	}, nil
}

// connect builds a link client for the configured transport.
func connect(cfg *config.Config) (*link.Client, error) {
	switch cfg.Transport {
	case config.TransportPico:
		port, err := link.OpenSerial(link.SerialConfig{
			Name:      cfg.Port,
			Baud:      cfg.Baud,
			Poll:      link.DefaultPoll,
			BootDelay: cfg.BootDelay,
		})
		if err != nil {
			return nil, err
		}
		return link.NewClient(port, logger), nil

	case config.TransportTCP:
		port, err := link.DialTCP(cfg.Port, dialTimeout, link.DefaultPoll)
		if err != nil {
			return nil, err
		}
		return link.NewClient(port, logger), nil

	case config.TransportSim:
		emu := probehead.DemoEmulator()
		emu.Logger = logger
		return probehead.Loopback(emu, logger), nil
	}
	return nil, fmt.Errorf("unsupported transport %q", cfg.Transport)
}

// close exports the session (when an export path is set) and releases the
// head and the store.
func (s *session) close(w io.Writer) error {
	var exportErr error
	if s.cfg.Export != "" {
		if exportErr = s.store.ExportJSON(s.cfg.Export); exportErr == nil {
			fmt.Fprintf(w, "Session exported to %s\n", s.cfg.Export)
		}
	}
	if err := s.head.Close(); err != nil {
		logger.Debug("closing probe head", "error", err)
	}
	if err := s.store.Close(); err != nil && exportErr == nil {
		return err
	}
	return exportErr
}

// withSession runs fn against a fresh session and closes it afterwards.
func withSession(w io.Writer, fn func(*session) error) (err error) {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.close(w); err == nil {
			err = cerr
		}
	}()
	return fn(s)
}

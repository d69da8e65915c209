package detector

import (
	"context"
	"fmt"

	"github.com/v0xg/bddgen/internal/config"
	"go.uber.org/zap"
)

// Recorder is notified after each interaction the driver keeps.
type Recorder interface {
	Record(ctx context.Context, in *Interaction)
}

// Driver sequences scanning and probing over one page session.
type Driver struct {
	cfg      config.DetectionConfig
	scanner  *Scanner
	detector *Detector
	recorder Recorder
	logger   *zap.Logger
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithRecorder registers r to observe kept interactions.
func WithRecorder(r Recorder) DriverOption {
	return func(d *Driver) { d.recorder = r }
}

// NewDriver creates a driver over session.
func NewDriver(session Session, cfg config.DetectionConfig, logger *zap.Logger, opts ...DriverOption) *Driver {
	d := &Driver{
		cfg:      cfg,
		scanner:  NewScanner(session, cfg, logger),
		detector: New(session, cfg, logger),
		logger:   logger.Named("driver"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Discover runs the load-time popup probe, then probes hover candidates and
// popup candidates up to their limits. The opt-in extended strategies run
// only when the primary ones came up empty. The page must already be loaded
// at pageURL.
//
// Per-candidate failures are logged and skipped. An error is returned only
// when ctx ends or the session is closed.
func (d *Driver) Discover(ctx context.Context, pageURL string) (*Mapper, error) {
	m := NewMapper()

	initial, err := d.detector.DetectInitialPopup(ctx, pageURL)
	if err := d.keep(ctx, m, initial, err, "page load"); err != nil {
		return nil, err
	}

	hoverCandidates, err := d.scanner.HoverCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanning hover candidates: %w", err)
	}
	popupCandidates, err := d.scanner.PopupCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanning popup candidates: %w", err)
	}

	if len(hoverCandidates) == 0 && len(popupCandidates) == 0 && len(m.Popup()) == 0 {
		d.logger.Warn("No interactive elements detected", zap.String("url", pageURL))
	}

	if err := d.probeAll(ctx, m, truncate(hoverCandidates, d.cfg.HoverProbeLimit), d.detector.ProbeHover); err != nil {
		return nil, err
	}
	if err := d.probeAll(ctx, m, truncate(popupCandidates, d.cfg.PopupProbeLimit), d.detector.ProbePopup); err != nil {
		return nil, err
	}

	if d.cfg.AdvancedPopup && len(m.Popup()) == 0 {
		d.logger.Info("No popups from primary strategies, exploring call-to-action elements")
		ctas, err := d.scanner.CTACandidates(ctx)
		if err != nil {
			if isSessionFatal(ctx, err) {
				return nil, err
			}
			d.logger.Warn("Call-to-action scan failed", zap.Error(err))
		}
		if err := d.probeAll(ctx, m, truncate(ctas, d.cfg.PopupProbeLimit), d.detector.ProbePopup); err != nil {
			return nil, err
		}
	}

	if d.cfg.AdvancedHover && m.Len() == 0 {
		d.logger.Info("No interactions from primary strategies, running mutation hover scan")
		triggers, err := d.scanner.LooseNavCandidates(ctx)
		if err != nil {
			if isSessionFatal(ctx, err) {
				return nil, err
			}
			d.logger.Warn("Loose navigation scan failed", zap.Error(err))
		}
		if err := d.probeAll(ctx, m, truncate(triggers, d.cfg.HoverProbeLimit), d.detector.ProbeHoverMutation); err != nil {
			return nil, err
		}
	}

	s := m.Summary()
	d.logger.Info("Discovery finished",
		zap.String("url", pageURL),
		zap.Int("interactions", s.Total),
		zap.Int("hover", s.HoverCount),
		zap.Int("popup", s.PopupCount))
	return m, nil
}

type probeFunc func(context.Context, ElementInfo) (*Interaction, error)

func (d *Driver) probeAll(ctx context.Context, m *Mapper, candidates []ElementInfo, probe probeFunc) error {
	for i, el := range candidates {
		d.logger.Debug("Probing candidate",
			zap.Int("index", i+1), zap.Int("of", len(candidates)), zap.String("candidate", el.Description()))
		in, err := probe(ctx, el)
		if err := d.keep(ctx, m, in, err, el.Description()); err != nil {
			return err
		}
	}
	return nil
}

// keep isolates a probe result: faults are logged and dropped unless they
// end the session.
func (d *Driver) keep(ctx context.Context, m *Mapper, in *Interaction, probeErr error, label string) error {
	if probeErr != nil {
		if isSessionFatal(ctx, probeErr) {
			return probeErr
		}
		d.logger.Warn("Probe failed, skipping candidate", zap.String("candidate", label), zap.Error(probeErr))
		return nil
	}
	if in == nil || !m.Add(in) {
		return nil
	}
	if d.recorder != nil {
		d.recorder.Record(ctx, in)
	}
	return nil
}

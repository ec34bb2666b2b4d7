package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"camera-relay/internal/camera"
	"camera-relay/internal/platform/metrics"
	"camera-relay/internal/quality"
)

// DefaultSweepConcurrency bounds parallel probes when none is configured.
const DefaultSweepConcurrency = 8

// Transcoder launches and stops the external encoder for a camera.
type Transcoder interface {
	Start(ctx context.Context, cameraID, sourceURI string, p quality.Profile) error
	Stop(cameraID string) error
}

// processWatcher is implemented by transcoders that can report whether the
// encoder for a camera is still alive. When the configured transcoder
// implements it, a session whose encoder has exited fails its health check
// without touching the network.
type processWatcher interface {
	Running(cameraID string) bool
}

// ErrTranscoderExited is recorded when a session's encoder process is gone.
var ErrTranscoderExited = errors.New("transcoder exited")

// SupervisorConfig holds the supervisor's tunables. Zero durations disable
// the corresponding deadline.
type SupervisorConfig struct {
	PublicBaseURL    string
	PersistTimeout   time.Duration
	ProbeTimeout     time.Duration
	SweepTimeout     time.Duration
	SweepConcurrency int
}

// Result is the outcome of a lifecycle transition. The transition itself
// has happened; PersistErr and TranscodeErr report side effects that failed.
type Result struct {
	Session      Session
	PersistErr   error
	TranscodeErr error
}

// Warnings returns the soft failures as messages, or nil.
func (r Result) Warnings() []string {
	var out []string
	for _, err := range []error{r.PersistErr, r.TranscodeErr} {
		if err != nil {
			out = append(out, err.Error())
		}
	}
	return out
}

// SweepReport summarizes one SweepAll run.
type SweepReport struct {
	RunID    string        `json:"run_id"`
	Probed   int           `json:"probed"`
	Healthy  int           `json:"healthy"`
	Failed   int           `json:"failed"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration_ns"`
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithMetrics records lifecycle and probe metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Supervisor) { s.metrics = m }
}

// WithTranscoder launches t on Start and stops it on Stop.
func WithTranscoder(t Transcoder) Option {
	return func(s *Supervisor) { s.transcoder = t }
}

// WithClock replaces time.Now for session timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Supervisor) { s.now = now }
}

// Supervisor drives session lifecycles. Transitions for one camera are
// serialized; different cameras never wait on each other.
type Supervisor struct {
	registry   *Registry
	store      camera.Store
	probe      Probe
	cfg        SupervisorConfig
	log        *slog.Logger
	metrics    *metrics.Metrics
	transcoder Transcoder
	now        func() time.Time
	locks      keyedMutex
}

// NewSupervisor returns a Supervisor writing sessions into reg and camera
// status into store.
func NewSupervisor(reg *Registry, store camera.Store, probe Probe, cfg SupervisorConfig, log *slog.Logger, opts ...Option) *Supervisor {
	if cfg.SweepConcurrency <= 0 {
		cfg.SweepConcurrency = DefaultSweepConcurrency
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Supervisor{
		registry: reg,
		store:    store,
		probe:    probe,
		cfg:      cfg,
		log:      log.With(slog.String("component", "supervisor")),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RelayURI returns the address viewers fetch the manifest of cameraID from.
func (s *Supervisor) RelayURI(cameraID string) string {
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/stream/" + url.PathEscape(cameraID) + "/playlist"
}

// Start (re)arms the session for cameraID. Only a failed configuration
// lookup is an error; the registry is untouched in that case. Starting an
// active session refreshes its source address and timestamps.
func (s *Supervisor) Start(ctx context.Context, cameraID string) (Result, error) {
	unlock := s.locks.Lock(cameraID)
	defer unlock()

	cfg, err := s.store.GetCameraConfig(ctx, cameraID)
	if err != nil {
		if errors.Is(err, camera.ErrNotFound) {
			return Result{}, fmt.Errorf("%w: %s", ErrCameraNotFound, cameraID)
		}
		return Result{}, fmt.Errorf("loading camera %s: %w", cameraID, err)
	}

	source := camera.ResolveSourceURI(cfg)
	profile := quality.Resolve(cfg.Tier())

	var res Result
	if s.transcoder != nil {
		if err := s.transcoder.Start(ctx, cameraID, source, profile); err != nil {
			res.TranscodeErr = err
			s.log.Warn("transcoder launch failed",
				slog.String("camera_id", cameraID),
				slog.String("error", err.Error()))
		}
	}

	now := s.now()
	fresh := Session{
		CameraID:  cameraID,
		SourceURI: source,
		RelayURI:  s.RelayURI(cameraID),
		Status:    StatusActive,
		LastSeen:  now,
		StartedAt: now,
		Quality:   profile,
	}
	sess, ok := s.registry.Update(cameraID, func(prev *Session) {
		viewers := prev.ViewerCount
		*prev = fresh
		prev.ViewerCount = viewers
	})
	if !ok {
		s.registry.Put(fresh)
		sess = fresh
	}
	res.Session = sess

	res.PersistErr = s.persist(ctx, cameraID, true, now)

	if s.metrics != nil {
		s.metrics.IncSessionsStarted()
	}
	s.log.Info("session started",
		slog.String("camera_id", cameraID),
		slog.String("relay_uri", sess.RelayURI),
		slog.String("tier", profile.Tier))
	return res, nil
}

// Stop marks the session for cameraID inactive. found is false when there
// is no session; that is not a failure.
func (s *Supervisor) Stop(ctx context.Context, cameraID string) (res Result, found bool) {
	unlock := s.locks.Lock(cameraID)
	defer unlock()

	return s.stopLocked(ctx, cameraID)
}

// Remove stops the session for cameraID and drops it from the registry.
func (s *Supervisor) Remove(ctx context.Context, cameraID string) bool {
	unlock := s.locks.Lock(cameraID)
	defer unlock()

	sess, ok := s.registry.Get(cameraID)
	if !ok {
		return false
	}
	if sess.Status != StatusInactive {
		s.stopLocked(ctx, cameraID)
	}
	s.registry.Delete(cameraID)
	s.log.Info("session removed", slog.String("camera_id", cameraID))
	return true
}

// stopLocked requires the camera lock.
func (s *Supervisor) stopLocked(ctx context.Context, cameraID string) (Result, bool) {
	now := s.now()
	sess, ok := s.registry.Update(cameraID, func(p *Session) {
		p.Status = StatusInactive
		p.LastSeen = now
	})
	if !ok {
		return Result{}, false
	}

	res := Result{Session: sess}
	if s.transcoder != nil {
		if err := s.transcoder.Stop(cameraID); err != nil {
			res.TranscodeErr = err
			s.log.Warn("transcoder stop failed",
				slog.String("camera_id", cameraID),
				slog.String("error", err.Error()))
		}
	}
	res.PersistErr = s.persist(ctx, cameraID, false, now)

	if s.metrics != nil {
		s.metrics.IncSessionsStopped()
	}
	s.log.Info("session stopped", slog.String("camera_id", cameraID))
	return res, true
}

// HealthProbe probes the relay address of an active session. A failed or
// timed-out probe moves the session to StatusError; success refreshes
// LastSeen. Sessions that are absent or not active are left alone and
// probed is false, as are sessions whose probe was cut short because ctx
// ended. status is the session's state afterwards.
func (s *Supervisor) HealthProbe(ctx context.Context, cameraID string) (status Status, probed bool) {
	unlock := s.locks.Lock(cameraID)
	defer unlock()

	sess, ok := s.registry.Get(cameraID)
	if !ok || !sess.Active() {
		return sess.Status, false
	}
	if ctx.Err() != nil {
		return sess.Status, false
	}

	pctx := ctx
	if s.cfg.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, s.cfg.ProbeTimeout)
		defer cancel()
	}

	err := s.check(pctx, sess)
	now := s.now()

	if err == nil {
		s.registry.Update(cameraID, func(p *Session) { p.LastSeen = now })
		s.countProbe(metrics.ProbeHealthy)
		s.log.Debug("probe healthy", slog.String("camera_id", cameraID))
		return StatusActive, true
	}

	// The caller going away says nothing about the relay.
	if ctx.Err() != nil {
		s.log.Debug("probe abandoned",
			slog.String("camera_id", cameraID),
			slog.String("reason", ctx.Err().Error()))
		return sess.Status, false
	}

	err = classifyProbeError(err)
	s.registry.Update(cameraID, func(p *Session) {
		p.Status = StatusError
		p.LastSeen = now
		p.LastError = err.Error()
	})

	result := metrics.ProbeUnreachable
	if errors.Is(err, ErrProbeTimeout) {
		result = metrics.ProbeTimeout
	}
	s.countProbe(result)
	s.log.Warn("probe failed, session demoted",
		slog.String("camera_id", cameraID),
		slog.String("result", result),
		slog.String("error", err.Error()))
	return StatusError, true
}

// check runs the encoder liveness test, when available, then the probe.
func (s *Supervisor) check(ctx context.Context, sess Session) error {
	if w, ok := s.transcoder.(processWatcher); ok && !w.Running(sess.CameraID) {
		return fmt.Errorf("%w: %w", ErrProbeUnreachable, ErrTranscoderExited)
	}
	return s.probe.Check(ctx, sess.RelayURI)
}

// SweepAll probes every session that is active at the time of the call.
// Probes run in parallel up to the configured concurrency. Failures only
// change session status; nothing is returned as an error. Once the sweep
// deadline passes, remaining sessions are skipped rather than failed.
func (s *Supervisor) SweepAll(ctx context.Context) SweepReport {
	started := time.Now()
	report := SweepReport{RunID: ulid.Make().String()}

	if s.cfg.SweepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.SweepTimeout)
		defer cancel()
	}

	active := s.registry.ListActive()
	log := s.log.With(slog.String("run_id", report.RunID))
	log.Debug("sweep started", slog.Int("active", len(active)))

	var healthy, failed, skipped atomic.Int64

	var g errgroup.Group
	g.SetLimit(s.cfg.SweepConcurrency)
	for _, sess := range active {
		g.Go(func() error {
			if ctx.Err() != nil {
				skipped.Add(1)
				return nil
			}
			status, probed := s.HealthProbe(ctx, sess.CameraID)
			switch {
			case !probed:
				skipped.Add(1)
			case status == StatusActive:
				healthy.Add(1)
			default:
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Healthy = int(healthy.Load())
	report.Failed = int(failed.Load())
	report.Skipped = int(skipped.Load())
	report.Probed = report.Healthy + report.Failed
	report.Duration = time.Since(started)

	if s.metrics != nil {
		s.metrics.ObserveSweep(report.Duration)
		s.metrics.SetActiveSessions(s.registry.ActiveCount())
	}
	log.Info("sweep finished",
		slog.Int("probed", report.Probed),
		slog.Int("healthy", report.Healthy),
		slog.Int("failed", report.Failed),
		slog.Int("skipped", report.Skipped),
		slog.Duration("duration", report.Duration))
	return report
}

// Session returns the current session for cameraID.
func (s *Supervisor) Session(cameraID string) (Session, bool) {
	return s.registry.Get(cameraID)
}

// Sessions returns every session ordered by camera id.
func (s *Supervisor) Sessions() []Session {
	return s.registry.ListAll()
}

// ActiveCount returns the number of active sessions.
func (s *Supervisor) ActiveCount() int {
	return s.registry.ActiveCount()
}

// RecordView counts one manifest fetch against the session for cameraID.
func (s *Supervisor) RecordView(cameraID string) (Session, bool) {
	return s.registry.Update(cameraID, func(p *Session) { p.ViewerCount++ })
}

// persist writes the online flag through to the camera store. The write
// survives cancellation of ctx but is bounded by PersistTimeout.
func (s *Supervisor) persist(ctx context.Context, cameraID string, online bool, at time.Time) error {
	ctx = context.WithoutCancel(ctx)
	if s.cfg.PersistTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.PersistTimeout)
		defer cancel()
	}

	if err := s.store.SetCameraOnlineStatus(ctx, cameraID, online, at); err != nil {
		if s.metrics != nil {
			s.metrics.IncPersistFailures()
		}
		s.log.Warn("camera status write-through failed",
			slog.String("camera_id", cameraID),
			slog.Bool("online", online),
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}
	return nil
}

func (s *Supervisor) countProbe(result string) {
	if s.metrics != nil {
		s.metrics.IncProbes(result)
	}
}

// keyedMutex hands out one mutex per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	mu   sync.Mutex
	refs int
}

// Lock blocks until key is free and returns its unlock function.
func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &refMutex{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

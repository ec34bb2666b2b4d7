package transcoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"camera-relay/internal/quality"
)

// stopGrace bounds how long Stop waits for a killed process to be reaped.
const stopGrace = 5 * time.Second

// ErrInvalidCameraID is returned for ids that cannot name an output directory.
var ErrInvalidCameraID = errors.New("camera id cannot be used as a directory name")

type process struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// ExecRunner starts one ffmpeg process per camera and stops it on request.
// Starting a camera that already has a process replaces it.
type ExecRunner struct {
	binary    string
	outputDir string
	log       *slog.Logger
	args      func(sourceURI string, p quality.Profile, outDir string) []string

	mu    sync.Mutex
	procs map[string]*process
}

// NewExecRunner returns a runner invoking binary and writing under outputDir.
func NewExecRunner(binary, outputDir string, log *slog.Logger) *ExecRunner {
	if log == nil {
		log = slog.Default()
	}
	return &ExecRunner{
		binary:    binary,
		outputDir: outputDir,
		log:       log.With(slog.String("component", "transcoder")),
		args:      BuildArgs,
		procs:     make(map[string]*process),
	}
}

// OutputDir returns the directory segments for cameraID are written to.
func (r *ExecRunner) OutputDir(cameraID string) string {
	return filepath.Join(r.outputDir, cameraID)
}

// Start launches the transcoder for cameraID.
func (r *ExecRunner) Start(ctx context.Context, cameraID, sourceURI string, p quality.Profile) error {
	if cameraID == "" || cameraID == "." || cameraID == ".." || strings.ContainsAny(cameraID, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidCameraID, cameraID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopLocked(cameraID)

	dir := r.OutputDir(cameraID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	// The process outlives the request that started it.
	pctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(pctx, r.binary, r.args(sourceURI, p, dir)...)
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("starting %s: %w", r.binary, err)
	}

	proc := &process{cancel: cancel, done: make(chan struct{})}
	r.procs[cameraID] = proc

	go func() {
		err := cmd.Wait()
		close(proc.done)
		if err != nil && pctx.Err() == nil {
			r.log.Warn("transcoder exited",
				slog.String("camera_id", cameraID),
				slog.String("error", err.Error()))
		}
	}()

	r.log.Info("transcoder started",
		slog.String("camera_id", cameraID),
		slog.String("tier", p.Tier),
		slog.Int("pid", cmd.Process.Pid))
	return nil
}

// Stop terminates the transcoder for cameraID. Stopping a camera with no
// process is a no-op.
func (r *ExecRunner) Stop(cameraID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopLocked(cameraID)
}

// StopAll terminates every running transcoder.
func (r *ExecRunner) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.procs {
		_ = r.stopLocked(id)
	}
}

// Running reports whether a live process exists for cameraID.
func (r *ExecRunner) Running(cameraID string) bool {
	r.mu.Lock()
	proc, ok := r.procs[cameraID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case <-proc.done:
		return false
	default:
		return true
	}
}

// stopLocked requires r.mu.
func (r *ExecRunner) stopLocked(cameraID string) error {
	proc, ok := r.procs[cameraID]
	if !ok {
		return nil
	}
	delete(r.procs, cameraID)
	proc.cancel()

	select {
	case <-proc.done:
		r.log.Info("transcoder stopped", slog.String("camera_id", cameraID))
		return nil
	case <-time.After(stopGrace):
		return fmt.Errorf("transcoder for %s did not exit within %s", cameraID, stopGrace)
	}
}

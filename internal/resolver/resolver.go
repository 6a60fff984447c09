// Package resolver picks the agent executable to launch.
//
// Candidates are evaluated strictly in order and the first existing,
// executable file wins:
//
//  1. an explicit override path
//  2. the debug build output in the workspace
//  3. the release build output in the workspace
//  4. the packaged binary shipped next to the supervisor, named by target triple
//
// An optional build step runs before resolution; its failure is logged and
// resolution falls through to the remaining candidates.
package resolver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/termbridge/internal/infrastructure/monitoring"
)

// Source names where a candidate came from.
type Source string

const (
	SourceOverride Source = "override"
	SourceDebug    Source = "debug"
	SourceRelease  Source = "release"
	SourcePackaged Source = "packaged"
)

// Candidate is one location the agent may live at.
type Candidate struct {
	Source Source
	Path   string
}

// ResolutionError lists every path that was tried.
type ResolutionError struct {
	Attempted []string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("agent executable not found; tried: %s", strings.Join(e.Attempted, ", "))
}

// Options configures a Resolver.
type Options struct {
	// Override is an explicit path, usually from the environment.
	Override string
	// Name is the executable base name, e.g. "codex".
	Name string
	// Workspace is the development checkout containing the build outputs.
	Workspace  string
	DebugDir   string
	ReleaseDir string
	// PackagedDir holds the bundled fallback; defaults to the supervisor's directory.
	PackagedDir string
	// Triple overrides the target triple used for the packaged name.
	Triple string
	// Build, when set, runs before resolution.
	Build *BuildStep
}

// Resolver evaluates candidates in priority order.
type Resolver struct {
	opts    Options
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// New creates a Resolver.
func New(opts Options, logger *zap.Logger, metrics *monitoring.Metrics) *Resolver {
	if opts.Triple == "" {
		opts.Triple = TargetTriple(runtime.GOOS, runtime.GOARCH)
	}
	if opts.PackagedDir == "" {
		if exe, err := os.Executable(); err == nil {
			opts.PackagedDir = filepath.Dir(exe)
		}
	}
	return &Resolver{
		opts:    opts,
		logger:  logger.Named("resolver"),
		metrics: metrics,
	}
}

// Candidates returns the ordered candidate list.
func (r *Resolver) Candidates() []Candidate {
	var out []Candidate

	if r.opts.Override != "" {
		out = append(out, Candidate{Source: SourceOverride, Path: r.opts.Override})
	}

	name := executableName(r.opts.Name)
	if r.opts.Workspace != "" {
		if r.opts.DebugDir != "" {
			out = append(out, Candidate{
				Source: SourceDebug,
				Path:   filepath.Join(r.opts.Workspace, r.opts.DebugDir, name),
			})
		}
		if r.opts.ReleaseDir != "" {
			out = append(out, Candidate{
				Source: SourceRelease,
				Path:   filepath.Join(r.opts.Workspace, r.opts.ReleaseDir, name),
			})
		}
	}

	if r.opts.PackagedDir != "" {
		packaged := executableName(r.opts.Name + "-" + r.opts.Triple)
		out = append(out, Candidate{
			Source: SourcePackaged,
			Path:   filepath.Join(r.opts.PackagedDir, packaged),
		})
	}

	return out
}

// Resolve runs the optional build and returns the first usable candidate.
func (r *Resolver) Resolve(ctx context.Context) (Candidate, error) {
	if r.opts.Build != nil {
		if err := r.opts.Build.Run(ctx, r.logger, r.metrics); err != nil {
			r.logger.Warn("development build failed; falling back", zap.Error(err))
		}
	}

	candidates := r.Candidates()
	attempted := make([]string, 0, len(candidates))
	for _, c := range candidates {
		attempted = append(attempted, c.Path)
		if err := checkExecutable(c.Path); err != nil {
			r.logger.Debug("candidate rejected",
				zap.String("source", string(c.Source)),
				zap.String("path", c.Path),
				zap.Error(err))
			continue
		}
		r.logger.Info("agent resolved",
			zap.String("source", string(c.Source)),
			zap.String("path", c.Path))
		return c, nil
	}

	return Candidate{}, &ResolutionError{Attempted: attempted}
}

func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}

func executableName(name string) string {
	if runtime.GOOS == "windows" && !strings.HasSuffix(name, ".exe") {
		return name + ".exe"
	}
	return name
}

// TargetTriple maps a Go platform to the target triple used for packaged binaries.
func TargetTriple(goos, goarch string) string {
	arch := goarch
	switch goarch {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		arch = "aarch64"
	case "386":
		arch = "i686"
	}

	switch goos {
	case "darwin":
		return arch + "-apple-darwin"
	case "linux":
		return arch + "-unknown-linux-gnu"
	case "windows":
		return arch + "-pc-windows-msvc"
	case "freebsd":
		return arch + "-unknown-freebsd"
	default:
		return arch + "-unknown-" + goos
	}
}

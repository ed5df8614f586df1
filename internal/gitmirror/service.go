package gitmirror

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/registryd/internal/execx"
)

const gitProgram = "git"

// FetchHead is the revision git points at the remote's advertised head after
// a fetch. It is how the checkpoint is re-seeded from disk across restarts.
const FetchHead = "FETCH_HEAD"

// Service wraps one local bare mirror. The path is fixed at construction and
// the remote URL is only used when the mirror is first cloned.
type Service struct {
	path   string
	remote string
	runner *execx.Runner
	logger *zap.Logger
}

// NewService creates a mirror service rooted at path, tracking remoteURL.
func NewService(path, remoteURL string, runner *execx.Runner, logger *zap.Logger) (*Service, error) {
	if path == "" {
		return nil, fmt.Errorf("mirror path is required")
	}
	if remoteURL == "" {
		return nil, fmt.Errorf("remote URL is required")
	}
	if runner == nil {
		return nil, fmt.Errorf("command runner is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		path:   filepath.Clean(path),
		remote: remoteURL,
		runner: runner,
		logger: logger,
	}, nil
}

// DirNameFromURL derives a mirror directory name from a remote URL,
// e.g. "https://github.com/rust-lang/crates.io-index.git" -> "crates.io-index".
// Handles scp-style remotes ("git@host:repo.git") too, where ":" separates
// the host from the path.
func DirNameFromURL(remoteURL string) string {
	name := remoteURL
	if idx := strings.LastIndexAny(name, "/:"); idx != -1 {
		name = name[idx+1:]
	}
	name = strings.TrimSuffix(name, ".git")
	if name == "" {
		return remoteURL
	}
	return name
}

// Path returns the mirror's directory.
func (s *Service) Path() string {
	return s.path
}

// RemoteURL returns the tracked remote.
func (s *Service) RemoteURL() string {
	return s.remote
}

// MirrorExists reports whether the mirror directory is already on disk.
func (s *Service) MirrorExists() bool {
	info, err := os.Stat(s.path)
	return err == nil && info.IsDir()
}

// Clone creates the bare, blob-filtered mirror. The command runs in the
// mirror's parent directory because the target directory does not exist yet.
// Clone is not idempotent; callers check MirrorExists first.
func (s *Service) Clone(ctx context.Context) error {
	args := []string{"clone", "--filter=blob:none", "--bare", s.remote, filepath.Base(s.path)}

	status, err := s.runner.Run(ctx, gitProgram, args, filepath.Dir(s.path))
	if err != nil {
		return fmt.Errorf("cloning %s: %w", s.remote, err)
	}
	if !status.Success() {
		return fmt.Errorf("cloning %s: %w", s.remote, &execx.ExitError{Program: gitProgram, Code: status.Code})
	}
	return nil
}

// Fetch pulls the latest state of all remotes into the mirror. On success the
// remote head is resolvable via FETCH_HEAD.
func (s *Service) Fetch(ctx context.Context) error {
	status, err := s.runner.Run(ctx, gitProgram, []string{"fetch", "--all"}, s.path)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", s.remote, err)
	}
	if !status.Success() {
		return fmt.Errorf("fetching %s: %w", s.remote, &execx.ExitError{Program: gitProgram, Code: status.Code})
	}
	return nil
}

// ResolveCommit resolves a revision expression (FETCH_HEAD, HEAD, a branch)
// to a commit hash. A revision that does not exist, e.g. FETCH_HEAD in a
// freshly cloned empty repository, resolves to "" without an error.
func (s *Service) ResolveCommit(ctx context.Context, revision string) (string, error) {
	out, err := s.runner.Output(ctx, gitProgram, []string{"rev-parse", revision}, s.path)
	if err != nil {
		var exitErr *execx.ExitError
		if errors.As(err, &exitErr) {
			s.logger.Debug("revision does not resolve",
				zap.String("revision", revision),
				zap.Int("exit_code", exitErr.Code))
			return "", nil
		}
		return "", fmt.Errorf("resolving %s: %w", revision, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// DiffNameOnly returns the paths changed between two commits, in diff order.
func (s *Service) DiffNameOnly(ctx context.Context, oldRef, newRef string) ([]string, error) {
	out, err := s.runner.Output(ctx, gitProgram, []string{"diff", "--name-only", oldRef, newRef}, s.path)
	if err != nil {
		return nil, fmt.Errorf("diffing %s..%s: %w", oldRef, newRef, err)
	}

	var files []string
	for _, line := range strings.Split(string(out), "\n") {
		if line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

// DiffUnified returns the raw unified diff between two commits. The text is
// fed to the translate package, never interpreted here.
func (s *Service) DiffUnified(ctx context.Context, oldRef, newRef string) (string, error) {
	out, err := s.runner.Output(ctx, gitProgram, []string{"diff", oldRef, newRef}, s.path)
	if err != nil {
		return "", fmt.Errorf("diffing %s..%s: %w", oldRef, newRef, err)
	}
	return string(out), nil
}

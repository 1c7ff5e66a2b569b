// Package launcher runs plugin executables as subprocesses, one
// isolated workspace per (plugin, AID) pair.
//
// Grounded directly on the teacher's git.go: exec.CommandContext with
// an explicit cmd.Env, CombinedOutput-style error wrapping, and a
// Validate() preflight check, generalized from a single fixed program
// ("git") to an arbitrary plugin directory (plugin.sh plus assets) and
// from one-shot commands to a long-running child whose exit the
// caller waits on separately from the launch. A workspace is created
// lazily the first time a (plugin, AID) pair is launched and reused by
// every subsequent launch of that pair, matching spec.md §4.5's
// "owns them for its lifetime"; each launch only rewrites the
// workspace's plugin_config.env before spawning the child.
package launcher

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"context"

	"github.com/agora-project/agorad/internal/aid"
	"github.com/agora-project/agorad/internal/apperr"
)

// Launcher runs plugin executables under a workspace root. One
// Launcher instance is shared process-wide; every handler calls it
// with the plugin names its own description references.
type Launcher struct {
	pluginRoot    string
	workspaceRoot string
	timeout       time.Duration

	mu         sync.Mutex
	workspaces map[string]string // "plugin/aid" -> workspace path
}

// New creates a Launcher. pluginRoot holds one directory per plugin
// (plugin.sh plus assets); workspaceRoot holds one directory per
// (plugin, AID) pair actually launched.
func New(pluginRoot, workspaceRoot string) *Launcher {
	return &Launcher{
		pluginRoot:    pluginRoot,
		workspaceRoot: workspaceRoot,
		timeout:       10 * time.Minute,
		workspaces:    make(map[string]string),
	}
}

// Validate checks that pluginRoot contains the named plugin and that
// its entrypoint (plugin.sh) is executable, matching the teacher's
// Validate()-before-use pattern.
func (l *Launcher) Validate(plugin string) error {
	path := filepath.Join(l.pluginRoot, plugin, "plugin.sh")
	info, err := os.Stat(path)
	if err != nil {
		return apperr.Wrap(apperr.KindPlugin, fmt.Sprintf("plugin %q not found", plugin), err)
	}
	if info.Mode()&0o111 == 0 {
		return apperr.New(apperr.KindPlugin, fmt.Sprintf("plugin %q entrypoint is not executable", plugin))
	}
	return nil
}

// Invocation is a single launched plugin process.
type Invocation struct {
	Workspace string
	cmd       *exec.Cmd
}

// Pid returns the child's process identifier.
func (inv *Invocation) Pid() int {
	if inv.cmd.Process == nil {
		return 0
	}
	return inv.cmd.Process.Pid
}

// Wait blocks until the child exits, returning its error (nil on a
// zero exit status). A nonzero exit surfaces to the caller as plugin
// failure, per spec.md §4.5.
func (inv *Invocation) Wait() error {
	return inv.cmd.Wait()
}

func workspaceKey(plugin string, id aid.AID) string {
	return plugin + "/" + id.String()
}

// initializeWorkspace copies the plugin's source tree into its
// per-(plugin, AID) workspace the first time this pair is launched,
// and is a no-op on every later call.
func (l *Launcher) initializeWorkspace(plugin string, id aid.AID) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := workspaceKey(plugin, id)
	if ws, ok := l.workspaces[key]; ok {
		return ws, nil
	}
	ws := filepath.Join(l.workspaceRoot, plugin, id.String())
	if err := os.MkdirAll(filepath.Dir(ws), 0o755); err != nil {
		return "", apperr.Wrap(apperr.KindPlugin, "create workspace parent directory", err)
	}
	if err := copyTree(filepath.Join(l.pluginRoot, plugin), ws); err != nil {
		return "", apperr.Wrap(apperr.KindPlugin, fmt.Sprintf("initialize workspace for plugin %q", plugin), err)
	}
	l.workspaces[key] = ws
	return ws, nil
}

// Launch starts plugin for id: it lazily initializes the (plugin, id)
// workspace, writes a fresh plugin_config.env into it, and spawns
// plugin.sh with the env file's path as its sole argument. Plugins
// launched this way run concurrently with the handler and with every
// other launch.
func (l *Launcher) Launch(ctx context.Context, plugin string, id aid.AID, env map[string]string) (*Invocation, error) {
	if err := l.Validate(plugin); err != nil {
		return nil, err
	}

	workspace, err := l.initializeWorkspace(plugin, id)
	if err != nil {
		return nil, err
	}

	envPath := filepath.Join(workspace, "plugin_config.env")
	if err := writeEnvFile(envPath, env); err != nil {
		return nil, apperr.Wrap(apperr.KindPlugin, "write plugin_config.env", err)
	}

	execPath := filepath.Join(workspace, "plugin.sh")
	cmd := exec.CommandContext(ctx, execPath, envPath)
	cmd.Dir = workspace
	cmd.Env = os.Environ()

	logFile, err := os.OpenFile(filepath.Join(workspace, "plugin.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPlugin, "open plugin log", err)
	}
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, apperr.Wrap(apperr.KindPlugin, fmt.Sprintf("launch plugin %q", plugin), err)
	}

	return &Invocation{Workspace: workspace, cmd: cmd}, nil
}

// writeEnvFile renders env as sorted KEY=VALUE lines, the shape a
// plugin.sh written against this contract expects to `source`.
func writeEnvFile(path string, env map[string]string) error {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%q\n", k, env[k])
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// Cleanup removes every workspace this launcher has initialized. It
// is idempotent: calling it more than once, or on a launcher with no
// workspaces, is a no-op.
func (l *Launcher) Cleanup() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var firstErr error
	for key, ws := range l.workspaces {
		if err := os.RemoveAll(ws); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(l.workspaces, key)
	}
	return firstErr
}

// ClearWorkspace removes the single (plugin, AID) workspace passed in
// from a prior Launch's Invocation.Workspace, used by the handler to
// reclaim disk space for one finished pipeline stage without tearing
// down every workspace the launcher owns.
func (l *Launcher) ClearWorkspace(workspace string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, ws := range l.workspaces {
		if ws == workspace {
			delete(l.workspaces, key)
			break
		}
	}
	return os.RemoveAll(workspace)
}

// Workspaces returns every workspace path currently owned by this
// launcher, for the Testable Property "pairwise distinct workspace
// paths" and for housekeeping's orphan sweep.
func (l *Launcher) Workspaces() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.workspaces))
	for _, ws := range l.workspaces {
		out = append(out, ws)
	}
	return out
}

// WorkspaceRoot exposes the configured workspace root, used by
// housekeeping's orphan sweep.
func (l *Launcher) WorkspaceRoot() string {
	return l.workspaceRoot
}

func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

package mediamtx

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"
)

// Mode selects how a rendered config reaches its MediaMTX instance.
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeSSH    Mode = "ssh"
	ModeDocker Mode = "docker"
)

// SSHTarget copies the config with scp and optionally restarts over ssh.
type SSHTarget struct {
	Host           string `json:"host"`
	Port           int    `json:"port,omitempty"`
	User           string `json:"user"`
	RemotePath     string `json:"remotePath"`
	RestartCommand string `json:"restartCommand,omitempty"`
}

// DockerTarget copies the config into a container. Restart defaults to
// true when unset.
type DockerTarget struct {
	Container  string `json:"container"`
	ConfigPath string `json:"configPath"`
	Restart    *bool  `json:"restart,omitempty"`
}

// LocalTarget writes the config to a path on this host.
type LocalTarget struct {
	Path           string `json:"path"`
	RestartCommand string `json:"restartCommand,omitempty"`
}

// DeployRequest is one deploy invocation. Exactly the target matching
// Mode is consulted.
type DeployRequest struct {
	Mode   Mode          `json:"mode"`
	SSH    *SSHTarget    `json:"ssh,omitempty"`
	Docker *DockerTarget `json:"docker,omitempty"`
	Local  *LocalTarget  `json:"local,omitempty"`
}

// Result reports what a successful deploy did.
type Result struct {
	Mode Mode `json:"mode"`
	Port int  `json:"port,omitempty"`
}

// ProcessError is a subprocess that started but exited non-zero.
type ProcessError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("%s exited with code %d: %s", e.Command, e.ExitCode, e.Stderr)
}

// CommandRunner is the process boundary; tests substitute a fake.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) error
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return &ProcessError{
				Command:  name,
				ExitCode: exitErr.ExitCode(),
				Stderr:   stderr.String(),
			}
		}
		return err
	}
	return nil
}

// Executor performs deploys. It trusts the caller to have run
// ValidateRequest; field values reach subprocess argv unmodified.
type Executor struct {
	Runner CommandRunner
	// TempDir holds the staging file for the duration of one deploy.
	// Zero value means the system temp directory.
	TempDir string
}

func NewExecutor() *Executor {
	return &Executor{Runner: execRunner{}}
}

func (e *Executor) tempDir() string {
	if e.TempDir != "" {
		return e.TempDir
	}
	return os.TempDir()
}

// withTempConfig stages content in a throwaway file and hands its path
// to fn. The file is removed on every exit path; the config may hold
// cleartext credentials and must not outlive the deploy.
func (e *Executor) withTempConfig(content string, fn func(path string) error) error {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		// The timestamp alone still keeps concurrent deploys apart.
		suffix = []byte{0, 0, 0, 0}
	}
	name := fmt.Sprintf("mediamtx_%d_%s.yml", time.Now().UnixNano(), hex.EncodeToString(suffix))
	tempPath := filepath.Join(e.tempDir(), name)

	if err := os.WriteFile(tempPath, []byte(content), 0o600); err != nil {
		return fmt.Errorf("stage config: %w", err)
	}
	defer os.Remove(tempPath)

	return fn(tempPath)
}

// Deploy ships content to the requested target. A single attempt, no
// retries: a failed restart after a successful copy surfaces as an
// error even though the config already landed.
func (e *Executor) Deploy(ctx context.Context, content string, req DeployRequest) (Result, error) {
	var res Result
	err := e.withTempConfig(content, func(tempPath string) error {
		switch req.Mode {
		case ModeLocal:
			return e.deployLocal(ctx, content, req.Local, &res)
		case ModeSSH:
			return e.deploySSH(ctx, tempPath, req.SSH, &res)
		case ModeDocker:
			return e.deployDocker(ctx, tempPath, req.Docker, &res)
		default:
			return invalid("invalid deploy mode")
		}
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

func (e *Executor) deployLocal(ctx context.Context, content string, t *LocalTarget, res *Result) error {
	if t == nil || t.Path == "" {
		return invalid("local path required")
	}
	if err := os.WriteFile(t.Path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if t.RestartCommand != "" {
		if err := e.Runner.Run(ctx, "sh", "-c", t.RestartCommand); err != nil {
			return err
		}
	}
	res.Mode = ModeLocal
	return nil
}

func (e *Executor) deploySSH(ctx context.Context, tempPath string, t *SSHTarget, res *Result) error {
	if t == nil {
		return invalid("ssh config required")
	}
	port := t.Port
	if port == 0 {
		port = 22
	}
	dest := fmt.Sprintf("%s@%s:%s", t.User, t.Host, t.RemotePath)
	if err := e.Runner.Run(ctx, "scp", "-P", strconv.Itoa(port), tempPath, dest); err != nil {
		return err
	}
	if t.RestartCommand != "" {
		addr := fmt.Sprintf("%s@%s", t.User, t.Host)
		if err := e.Runner.Run(ctx, "ssh", "-p", strconv.Itoa(port), addr, t.RestartCommand); err != nil {
			return err
		}
	}
	res.Mode = ModeSSH
	res.Port = port
	return nil
}

func (e *Executor) deployDocker(ctx context.Context, tempPath string, t *DockerTarget, res *Result) error {
	if t == nil {
		return invalid("docker config required")
	}
	dest := fmt.Sprintf("%s:%s", t.Container, t.ConfigPath)
	if err := e.Runner.Run(ctx, "docker", "cp", tempPath, dest); err != nil {
		return err
	}
	if t.Restart == nil || *t.Restart {
		if err := e.Runner.Run(ctx, "docker", "restart", t.Container); err != nil {
			return err
		}
	}
	res.Mode = ModeDocker
	return nil
}

package mediamtx

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// ValidationError marks a deploy request the caller may fix and retry.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

var (
	safeHost = regexp.MustCompile(`^[a-zA-Z0-9.-]+$`)
	safeUser = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
)

func IsSafeHost(value string) bool { return safeHost.MatchString(value) }

func IsSafeUser(value string) bool { return safeUser.MatchString(value) }

// IsSafeRemotePath accepts absolute paths with no traversal or home
// expansion. These land unquoted in an scp argument.
func IsSafeRemotePath(value string) bool {
	return strings.HasPrefix(value, "/") &&
		!strings.Contains(value, "..") &&
		!strings.Contains(value, "~")
}

func IsSafeLocalPath(value string) bool {
	return filepath.IsAbs(value) && !strings.Contains(value, "..")
}

func IsValidPort(value int) bool { return value > 0 && value <= 65535 }

// IsSafeRestartCommand rejects empty commands and shell metacharacters.
// The command still runs through a shell, so this list is the whole
// defence.
func IsSafeRestartCommand(value string) bool {
	cmd := strings.TrimSpace(value)
	if cmd == "" {
		return false
	}
	for _, ch := range []string{"&", "|", ";", ">", "<", "`", "\n", "\r"} {
		if strings.Contains(cmd, ch) {
			return false
		}
	}
	return true
}

// ValidateRequest checks a deploy request before any temp file is
// written or any process runs. allowRestart gates restart commands for
// ssh and local modes; docker restarts are container-scoped and always
// allowed.
func ValidateRequest(req DeployRequest, allowRestart bool) error {
	switch req.Mode {
	case ModeLocal, ModeSSH, ModeDocker:
	default:
		return invalid("invalid deploy mode")
	}

	switch req.Mode {
	case ModeSSH:
		s := req.SSH
		if s == nil || s.Host == "" || s.User == "" || s.RemotePath == "" {
			return invalid("ssh config required")
		}
		if !IsSafeHost(s.Host) || !IsSafeUser(s.User) {
			return invalid("invalid ssh host/user")
		}
		if !IsSafeRemotePath(s.RemotePath) {
			return invalid("invalid remote path")
		}
		if s.Port != 0 && !IsValidPort(s.Port) {
			return invalid("invalid ssh port")
		}
		if s.RestartCommand != "" {
			if !allowRestart {
				return invalid("ssh restartCommand disabled")
			}
			if !IsSafeRestartCommand(s.RestartCommand) {
				return invalid("invalid ssh restartCommand")
			}
		}

	case ModeDocker:
		d := req.Docker
		if d == nil || d.Container == "" || d.ConfigPath == "" {
			return invalid("docker config required")
		}

	case ModeLocal:
		l := req.Local
		if l == nil || l.Path == "" {
			return invalid("local path required")
		}
		if !IsSafeLocalPath(l.Path) {
			return invalid("invalid local path")
		}
		if l.RestartCommand != "" {
			if !allowRestart {
				return invalid("local restartCommand disabled")
			}
			if !IsSafeRestartCommand(l.RestartCommand) {
				return invalid("invalid local restartCommand")
			}
		}
	}
	return nil
}

package mediamtx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSafeRestartCommand(t *testing.T) {
	tests := []struct {
		cmd  string
		want bool
	}{
		{"systemctl restart mediamtx", true},
		{"  systemctl restart mediamtx  ", true},
		{"", false},
		{"   ", false},
		{"systemctl restart mediamtx & rm -rf /", false},
		{"a | b", false},
		{"a; b", false},
		{"a > /etc/passwd", false},
		{"a < file", false},
		{"echo `id`", false},
		{"a\nb", false},
		{"a\rb", false},
	}
	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSafeRestartCommand(tt.cmd))
		})
	}
}

func TestPathValidators(t *testing.T) {
	assert.True(t, IsSafeRemotePath("/etc/mediamtx/mediamtx.yml"))
	assert.False(t, IsSafeRemotePath("etc/mediamtx.yml"))
	assert.False(t, IsSafeRemotePath("/etc/../etc/passwd"))
	assert.False(t, IsSafeRemotePath("/home/~user/mediamtx.yml"))

	assert.True(t, IsSafeLocalPath("/opt/mediamtx/mediamtx.yml"))
	assert.False(t, IsSafeLocalPath("relative/path.yml"))
	assert.False(t, IsSafeLocalPath("/opt/../etc/passwd"))
}

func TestHostUserPortValidators(t *testing.T) {
	assert.True(t, IsSafeHost("media-01.school.example"))
	assert.False(t, IsSafeHost("host;rm"))
	assert.False(t, IsSafeHost(""))

	assert.True(t, IsSafeUser("deploy_user.1"))
	assert.False(t, IsSafeUser("user name"))

	assert.True(t, IsValidPort(22))
	assert.True(t, IsValidPort(65535))
	assert.False(t, IsValidPort(0))
	assert.False(t, IsValidPort(65536))
	assert.False(t, IsValidPort(-1))
}

func TestValidateRequestSSH(t *testing.T) {
	base := func() DeployRequest {
		return DeployRequest{
			Mode: ModeSSH,
			SSH: &SSHTarget{
				Host:       "10.0.0.20",
				User:       "deploy",
				RemotePath: "/etc/mediamtx/mediamtx.yml",
			},
		}
	}

	require.NoError(t, ValidateRequest(base(), false))

	req := base()
	req.SSH.RemotePath = "/etc/../etc/passwd"
	err := ValidateRequest(req, false)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "invalid remote path", ve.Msg)

	req = base()
	req.SSH.Port = 70000
	assert.EqualError(t, ValidateRequest(req, false), "invalid ssh port")

	req = base()
	req.SSH.RestartCommand = "systemctl restart mediamtx"
	assert.EqualError(t, ValidateRequest(req, false), "ssh restartCommand disabled")
	assert.NoError(t, ValidateRequest(req, true))

	req = base()
	req.SSH.RestartCommand = "systemctl restart mediamtx; reboot"
	assert.EqualError(t, ValidateRequest(req, true), "invalid ssh restartCommand")

	req = base()
	req.SSH = nil
	assert.EqualError(t, ValidateRequest(req, false), "ssh config required")
}

func TestValidateRequestLocalAndDocker(t *testing.T) {
	assert.EqualError(t,
		ValidateRequest(DeployRequest{Mode: "rsync"}, true),
		"invalid deploy mode")

	assert.EqualError(t,
		ValidateRequest(DeployRequest{Mode: ModeLocal, Local: &LocalTarget{Path: "rel/path"}}, true),
		"invalid local path")

	assert.NoError(t,
		ValidateRequest(DeployRequest{Mode: ModeLocal, Local: &LocalTarget{Path: "/opt/mediamtx.yml"}}, false))

	assert.EqualError(t,
		ValidateRequest(DeployRequest{
			Mode:  ModeLocal,
			Local: &LocalTarget{Path: "/opt/mediamtx.yml", RestartCommand: "systemctl restart mediamtx"},
		}, false),
		"local restartCommand disabled")

	assert.EqualError(t,
		ValidateRequest(DeployRequest{Mode: ModeDocker, Docker: &DockerTarget{Container: "mtx"}}, true),
		"docker config required")

	assert.NoError(t,
		ValidateRequest(DeployRequest{
			Mode:   ModeDocker,
			Docker: &DockerTarget{Container: "mtx", ConfigPath: "/mediamtx.yml"},
		}, true))
}

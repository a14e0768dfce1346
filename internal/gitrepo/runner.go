package gitrepo

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/confsync/confsync/internal/config"
)

// Runner executes git commands. It exists as a seam so provider behavior
// can be tested without a git binary or network.
type Runner interface {
	// Run executes git with args in dir (empty dir means inherit cwd)
	// and returns combined output.
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// DefaultCommandTimeout bounds each git subprocess so a wedged network
// operation becomes a typed failure instead of a hang.
const DefaultCommandTimeout = 2 * time.Minute

// shellRunner runs the real git binary, wiring authentication from the
// repository settings.
type shellRunner struct {
	auth    config.AuthSettings
	url     string
	timeout time.Duration
}

// NewShellRunner creates a Runner backed by the git command.
func NewShellRunner(url string, auth config.AuthSettings, timeout time.Duration) Runner {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &shellRunner{auth: auth, url: url, timeout: timeout}
}

func (r *shellRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	full, env, err := r.configureAuth(args)
	if err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, "git", full...)
	cmd.Dir = dir
	cmd.Env = env

	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

// configureAuth injects credentials for the remote, mirroring the remote
// URL scheme: GIT_SSH_COMMAND for ssh remotes, a credential helper reading
// a token from the environment for https remotes.
func (r *shellRunner) configureAuth(args []string) ([]string, []string, error) {
	env := os.Environ()

	if r.auth.SSHKeyFile != "" && (strings.HasPrefix(r.url, "git@") || strings.HasPrefix(r.url, "ssh://")) {
		sshCmd := fmt.Sprintf("ssh -i %s -o StrictHostKeyChecking=accept-new -F /dev/null", shellQuote(r.auth.SSHKeyFile))
		env = append(env, "GIT_SSH_COMMAND="+sshCmd)
		return args, env, nil
	}

	if r.auth.TokenFile != "" && strings.HasPrefix(r.url, "https://") {
		token, err := os.ReadFile(r.auth.TokenFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read token file: %w", err)
		}
		env = append(env,
			"GIT_TERMINAL_PROMPT=0",
			"CONFSYNC_GIT_TOKEN="+strings.TrimSpace(string(token)),
		)
		// The helper reads the token from the environment so it never
		// appears in the command line.
		helper := `credential.helper=!f() { echo "username=x-access-token"; echo "password=$CONFSYNC_GIT_TOKEN"; }; f`
		return append([]string{"-c", helper}, args...), env, nil
	}

	env = append(env, "GIT_TERMINAL_PROMPT=0")
	return args, env, nil
}

// shellQuote wraps s in single quotes, escaping any embedded single quotes.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

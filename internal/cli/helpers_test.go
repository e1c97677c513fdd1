package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rileyhilliard/bashkernel/internal/config"
	"github.com/rileyhilliard/bashkernel/internal/kernel"
	"github.com/rileyhilliard/bashkernel/internal/logger"
	sshtest "github.com/rileyhilliard/bashkernel/pkg/sshutil/testing"
)

func writeTestFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// remoteSession returns a session backed by a mock dialer. The local shell
// is not started, so everything submitted must go to the remote backend or
// to a verb.
func remoteSession(t *testing.T) (*kernel.Session, *sshtest.Dialer) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.SSH.ConfigFile = filepath.Join(t.TempDir(), "ssh_config")

	dialer := sshtest.NewDialer()
	sess := kernel.New(kernel.Options{
		Config: cfg,
		Logger: logger.NewBufferLogger(),
		Dialer: dialer.Dial,
	})
	t.Cleanup(func() { sess.Shutdown() })
	return sess, dialer
}

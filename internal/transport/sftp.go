package transport

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"path"
	"strings"
	"time"

	"github.com/openmined/dbsync/internal/utils"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// agentConflict is reported by Windows agents when Pageant holds the shared
// file mapping.
const agentConflict = "Creation of file mapping failed with error: 998"

// SFTP is a session on an SSH server's sftp subsystem.
type SFTP struct {
	ssh    *ssh.Client
	client *sftp.Client
	addr   string
	root   string
	cwd    string
	// requested is the last Chdir target joined to the working directory,
	// before resolution.
	requested string
	logger    *slog.Logger
}

var _ Transport = (*SFTP)(nil)

func sftpAuth(opts *Options) ([]ssh.AuthMethod, func(), error) {
	var methods []ssh.AuthMethod
	cleanup := func() {}

	if opts.UseAgent {
		if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
			conn, err := net.Dial("unix", sock)
			if err != nil {
				return nil, cleanup, fmt.Errorf("ssh agent: %w", err)
			}
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
			cleanup = func() { conn.Close() }
		}
	}

	if opts.Password != "" {
		password := opts.Password
		methods = append(methods,
			ssh.Password(password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		)
	}

	if len(methods) == 0 {
		return nil, cleanup, errors.New("no ssh authentication method configured")
	}
	return methods, cleanup, nil
}

func sftpHostKeyCallback(opts *Options) (ssh.HostKeyCallback, error) {
	if opts.KnownHostsFile == "" {
		opts.logger().Debug("sftp host key verification disabled")
		return ssh.InsecureIgnoreHostKey(), nil
	}
	file, err := utils.ResolvePath(opts.KnownHostsFile)
	if err != nil {
		return nil, err
	}
	return knownhosts.New(file)
}

// withAgentHint adds a remedy to the Pageant shared memory failure.
func withAgentHint(err error) error {
	if err != nil && strings.Contains(err.Error(), agentConflict) {
		return fmt.Errorf("%w (close Pageant or disable agent authentication)", err)
	}
	return err
}

// DialSFTP opens an SSH connection to ep and starts an sftp client on it.
func DialSFTP(ctx context.Context, ep *Endpoint, opts *Options) (*SFTP, error) {
	connErr := func(err error) error {
		return &ConnectError{Kind: KindSFTP, Addr: ep.Addr(), Err: withAgentHint(err)}
	}

	auth, cleanup, err := sftpAuth(opts)
	if err != nil {
		return nil, connErr(err)
	}
	defer cleanup()

	hostKey, err := sftpHostKeyCallback(opts)
	if err != nil {
		return nil, connErr(err)
	}

	config := &ssh.ClientConfig{
		User:            opts.Username,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         opts.timeout(),
	}

	dialer := net.Dialer{Timeout: opts.timeout()}
	netConn, err := dialer.DialContext(ctx, "tcp", ep.Addr())
	if err != nil {
		return nil, connErr(err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, ep.Addr(), config)
	if err != nil {
		netConn.Close()
		return nil, connErr(err)
	}
	sshClient := ssh.NewClient(sshConn, chans, reqs)

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, connErr(err)
	}

	s := &SFTP{
		ssh:    sshClient,
		client: client,
		addr:   ep.Addr(),
		logger: opts.logger(),
	}

	start := ep.Path
	if start == "" {
		start = "."
	}
	if err := s.Chdir(ctx, start); err != nil {
		s.Close()
		return nil, connErr(err)
	}
	s.root = s.cwd

	s.logger.Debug("sftp connected", "addr", s.addr, "user", opts.Username, "cwd", s.cwd)
	return s, nil
}

func (s *SFTP) Kind() Kind {
	return KindSFTP
}

func (s *SFTP) Root() string {
	return s.root
}

func (s *SFTP) Getwd() string {
	return s.cwd
}

// Chdir resolves dir to its canonical absolute path on the server.
func (s *SFTP) Chdir(_ context.Context, dir string) error {
	target := dir
	if !path.IsAbs(target) && s.cwd != "" {
		target = path.Join(s.cwd, target)
	}
	if target == s.requested && s.cwd != "" {
		return nil
	}
	resolved, err := s.client.RealPath(target)
	if err != nil {
		return fmt.Errorf("sftp: realpath %s: %w", dir, err)
	}
	s.cwd = resolved
	s.requested = target
	return nil
}

func (s *SFTP) resolve(name string) string {
	if path.IsAbs(name) {
		return name
	}
	return path.Join(s.cwd, name)
}

func isSFTPNotFound(err error) bool {
	var statusErr *sftp.StatusError
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) || errors.As(err, &statusErr)
}

// Exists tries to open name. Any status reply from the server means not found.
func (s *SFTP) Exists(_ context.Context, name string) (bool, error) {
	f, err := s.client.Open(s.resolve(name))
	if err != nil {
		if isSFTPNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("sftp: open %s: %w", name, err)
	}
	f.Close()
	return true, nil
}

func (s *SFTP) stat(name string) (fs.FileInfo, error) {
	info, err := s.client.Stat(s.resolve(name))
	if err != nil {
		return nil, fmt.Errorf("sftp: stat %s: %w", name, err)
	}
	return info, nil
}

func (s *SFTP) Size(_ context.Context, name string) (int64, error) {
	info, err := s.stat(name)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (s *SFTP) ModTime(_ context.Context, name string) (time.Time, error) {
	info, err := s.stat(name)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// Fetch downloads name. sftp has no text mode, so bytes are copied as is.
func (s *SFTP) Fetch(_ context.Context, name, localPath string, _ Mode) error {
	if err := utils.EnsureParent(localPath); err != nil {
		return err
	}
	src, err := s.client.Open(s.resolve(name))
	if err != nil {
		return fmt.Errorf("sftp: open %s: %w", name, err)
	}
	defer src.Close()
	return utils.WriteFileFrom(localPath, src)
}

func (s *SFTP) List(_ context.Context, pattern string) ([]string, error) {
	matches, err := s.client.Glob(path.Join(s.cwd, pattern))
	if err != nil {
		return nil, fmt.Errorf("sftp: glob %s: %w", pattern, err)
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, path.Base(m))
	}
	return names, nil
}

func (s *SFTP) Close() error {
	var errs []error
	if s.client != nil {
		errs = append(errs, s.client.Close())
	}
	if s.ssh != nil {
		errs = append(errs, s.ssh.Close())
	}
	return errors.Join(errs...)
}

// Package ssh provides the production transport channel: SFTP packets
// framed over the "sftp" subsystem of an SSH connection.
//
// The package owns everything below the packet boundary: dialing,
// authentication, host key verification, subsystem setup and the uint32
// length framing. Everything above it (request ids, correlation, handle
// lifecycle) belongs to pkg/sftp.
package ssh

import (
	"fmt"
	"io"
	"os"
	"sync"

	gossh "golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/marmos91/dittosftp/internal/logger"
	proto "github.com/marmos91/dittosftp/internal/protocol/sftp"
	"github.com/marmos91/dittosftp/pkg/bufpool"
)

// Config holds everything needed to reach a remote SFTP server.
type Config struct {
	// Addr is the remote endpoint in host:port form.
	Addr string

	// User is the SSH login name.
	User string

	// Password enables password authentication when non-empty.
	Password string

	// IdentityFile is a path to a PEM private key; enables public key
	// authentication when non-empty.
	IdentityFile string

	// KnownHostsFile verifies the server host key against an OpenSSH
	// known_hosts file. Required unless InsecureSkipHostKey is set.
	KnownHostsFile string

	// InsecureSkipHostKey disables host key verification. Test
	// environments only.
	InsecureSkipHostKey bool
}

// Transport is a Channel over an SSH "sftp" subsystem.
type Transport struct {
	client *gossh.Client
	sess   *gossh.Session
	stdin  io.WriteCloser
	stdout io.Reader

	// sendMu serializes frame writes; a frame interleaved with another
	// frame's bytes is unrecoverable.
	sendMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// Dial connects, authenticates and starts the sftp subsystem.
func Dial(cfg Config) (*Transport, error) {
	auth, err := authMethods(cfg)
	if err != nil {
		return nil, err
	}

	hostKey, err := hostKeyCallback(cfg)
	if err != nil {
		return nil, err
	}

	client, err := gossh.Dial("tcp", cfg.Addr, &gossh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.Addr, err)
	}

	sess, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("open session on %s: %w", cfg.Addr, err)
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := sess.RequestSubsystem("sftp"); err != nil {
		sess.Close()
		client.Close()
		return nil, fmt.Errorf("request sftp subsystem on %s: %w", cfg.Addr, err)
	}

	logger.Debug("sftp subsystem established", logger.KeyRemote, cfg.Addr)

	return &Transport{
		client: client,
		sess:   sess,
		stdin:  stdin,
		stdout: stdout,
	}, nil
}

func authMethods(cfg Config) ([]gossh.AuthMethod, error) {
	var methods []gossh.AuthMethod

	if cfg.IdentityFile != "" {
		pem, err := os.ReadFile(cfg.IdentityFile)
		if err != nil {
			return nil, fmt.Errorf("read identity file: %w", err)
		}
		signer, err := gossh.ParsePrivateKey(pem)
		if err != nil {
			return nil, fmt.Errorf("parse identity file %q: %w", cfg.IdentityFile, err)
		}
		methods = append(methods, gossh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		methods = append(methods, gossh.Password(cfg.Password))
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("no authentication configured: set password or identity_file")
	}
	return methods, nil
}

func hostKeyCallback(cfg Config) (gossh.HostKeyCallback, error) {
	if cfg.InsecureSkipHostKey {
		return gossh.InsecureIgnoreHostKey(), nil
	}
	if cfg.KnownHostsFile == "" {
		return nil, fmt.Errorf("known_hosts file required unless host key checking is disabled")
	}
	cb, err := knownhosts.New(cfg.KnownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("load known_hosts %q: %w", cfg.KnownHostsFile, err)
	}
	return cb, nil
}

// Send transmits one packet, adding the length prefix. The frame is
// staged in a pooled buffer so a pipelined transfer does not allocate
// per request.
func (t *Transport) Send(pkt []byte) error {
	frame := bufpool.Get(4 + len(pkt))
	defer bufpool.Put(frame)

	frame[0] = byte(len(pkt) >> 24)
	frame[1] = byte(len(pkt) >> 16)
	frame[2] = byte(len(pkt) >> 8)
	frame[3] = byte(len(pkt))
	copy(frame[4:], pkt)

	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	if _, err := t.stdin.Write(frame[:4+len(pkt)]); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Recv blocks for the next packet. It returns io.EOF unwrapped when the
// subsystem stream ends cleanly.
func (t *Transport) Recv() ([]byte, error) {
	return proto.ReadFrame(t.stdout)
}

// Close tears down the subsystem and the SSH connection.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.stdin.Close()
		sessErr := t.sess.Close()
		clientErr := t.client.Close()
		if sessErr != nil && sessErr != io.EOF {
			t.closeErr = sessErr
			return
		}
		t.closeErr = clientErr
	})
	return t.closeErr
}

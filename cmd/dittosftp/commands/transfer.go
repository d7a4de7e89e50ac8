package commands

import (
	"context"

	"github.com/google/uuid"

	"github.com/marmos91/dittosftp/internal/logger"
	sshtransport "github.com/marmos91/dittosftp/internal/transport/ssh"
	"github.com/marmos91/dittosftp/pkg/config"
	"github.com/marmos91/dittosftp/pkg/metrics/prometheus"
	"github.com/marmos91/dittosftp/pkg/sftp"
)

// connect dials the configured remote and performs the SFTP handshake.
// The returned context carries the transfer's logging fields.
func connect(cfg *config.Config, op, remotePath string) (context.Context, *sftp.Session, error) {
	transferID := uuid.NewString()
	lc := logger.NewLogContext(transferID, cfg.Remote.Addr()).WithOp(op).WithPath(remotePath)
	ctx := logger.WithContext(context.Background(), lc)

	tr, err := sshtransport.Dial(sshtransport.Config{
		Addr:                cfg.Remote.Addr(),
		User:                cfg.Remote.User,
		Password:            cfg.Remote.Password,
		IdentityFile:        cfg.Remote.IdentityFile,
		KnownHostsFile:      cfg.Remote.KnownHostsFile,
		InsecureSkipHostKey: cfg.Remote.InsecureSkipHostKey,
	})
	if err != nil {
		return nil, nil, err
	}

	sess, err := sftp.NewSession(tr, sftp.WithMetrics(prometheus.NewSessionMetrics()))
	if err != nil {
		tr.Close()
		return nil, nil, err
	}

	limits := sess.Limits()
	logger.InfoCtx(ctx, "connected",
		logger.KeyMaxRead, limits.MaxReadLen,
		logger.KeyMaxWrite, limits.MaxWriteLen)
	return ctx, sess, nil
}

// pipeline is the caller-maintained FIFO of outstanding requests a
// transfer keeps in flight. Waiting strictly in issuance order is purely
// this CLI's choice: it lets downloaded chunks stream straight to disk.
// The engine itself resolves waits in any order.
type pipeline struct {
	queue []*sftp.Request
}

func (p *pipeline) push(req *sftp.Request) {
	p.queue = append(p.queue, req)
}

func (p *pipeline) pop() *sftp.Request {
	req := p.queue[0]
	p.queue = p.queue[1:]
	return req
}

func (p *pipeline) len() int {
	return len(p.queue)
}

// abort frees every still-queued request so the session drops their
// responses instead of leaking handles after a failure.
func (p *pipeline) abort() {
	for _, req := range p.queue {
		_ = req.Free()
	}
	p.queue = nil
}

package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittosftp/internal/logger"
	"github.com/marmos91/dittosftp/pkg/bufpool"
	"github.com/marmos91/dittosftp/pkg/config"
	"github.com/marmos91/dittosftp/pkg/sftp"
)

var putCmd = &cobra.Command{
	Use:   "put <local-path> <remote-path>",
	Short: "Upload a local file with pipelined writes",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runPut(cfg, args[0], args[1])
	},
}

func runPut(cfg *config.Config, localPath, remotePath string) error {
	ctx, sess, err := connect(cfg, "put", remotePath)
	if err != nil {
		return err
	}
	defer sess.Close()

	local, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %q: %w", localPath, err)
	}
	defer local.Close()

	file, err := sess.Open(remotePath, sftp.OpenWrite|sftp.OpenCreate|sftp.OpenTruncate, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	window := cfg.Transfer.Window
	chunk := int(cfg.Transfer.ChunkSize.Uint64())

	// One staging buffer is enough: BeginWrite copies the payload into
	// the outgoing packet before returning.
	staging := bufpool.Get(chunk)
	defer bufpool.Put(staging)

	start := time.Now()
	var total int64
	var pl pipeline

	for {
		n, rerr := local.Read(staging[:chunk])
		if n > 0 {
			remaining := staging[:n]
			for len(remaining) > 0 {
				if pl.len() >= window {
					if err := pl.pop().WaitWrite(); err != nil {
						pl.abort()
						return err
					}
				}
				granted, req, err := file.BeginWrite(remaining)
				if err != nil {
					pl.abort()
					return err
				}
				pl.push(req)
				remaining = remaining[granted:]
				total += int64(granted)
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				break
			}
			pl.abort()
			return fmt.Errorf("read %q: %w", localPath, rerr)
		}
	}

	// Drain every outstanding write; each wait confirms its full
	// granted length was committed.
	for pl.len() > 0 {
		if err := pl.pop().WaitWrite(); err != nil {
			pl.abort()
			return err
		}
	}

	logger.InfoCtx(ctx, "upload complete",
		logger.KeyBytes, total,
		logger.KeyDurationMs, logger.Duration(start))
	return nil
}

package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittosftp/internal/logger"
	"github.com/marmos91/dittosftp/pkg/config"
	"github.com/marmos91/dittosftp/pkg/sftp"
)

var getCmd = &cobra.Command{
	Use:   "get <remote-path> <local-path>",
	Short: "Download a remote file with pipelined reads",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runGet(cfg, args[0], args[1])
	},
}

func runGet(cfg *config.Config, remotePath, localPath string) error {
	ctx, sess, err := connect(cfg, "get", remotePath)
	if err != nil {
		return err
	}
	defer sess.Close()

	file, err := sess.Open(remotePath, sftp.OpenRead, 0)
	if err != nil {
		return err
	}
	defer file.Close()

	local, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create %q: %w", localPath, err)
	}
	defer local.Close()

	window := cfg.Transfer.Window
	chunk := uint32(cfg.Transfer.ChunkSize.Uint64())

	start := time.Now()
	var total int64
	var pl pipeline
	eof := false

	// Keep the window full of outstanding reads and consume strictly in
	// issuance order so chunks stream to disk sequentially.
	for !eof {
		for pl.len() < window {
			_, req, err := file.BeginRead(chunk)
			if err != nil {
				pl.abort()
				return err
			}
			pl.push(req)
		}

		data, atEOF, err := pl.pop().WaitRead()
		if err != nil {
			pl.abort()
			return err
		}
		if len(data) > 0 {
			if _, err := local.Write(data); err != nil {
				pl.abort()
				return fmt.Errorf("write %q: %w", localPath, err)
			}
			total += int64(len(data))
		}
		eof = atEOF
	}

	// Requests still queued were issued past end of file; freeing them
	// makes the session drop their responses on the floor.
	pl.abort()

	logger.InfoCtx(ctx, "download complete",
		logger.KeyBytes, total,
		logger.KeyDurationMs, logger.Duration(start))
	return nil
}

package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shiftbook/rosterscan/internal/pipeline"
)

var (
	batchConcurrency int
	batchOut         string
)

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Scan every roster image in a directory via the single-phase endpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		entries, err := os.ReadDir(args[0])
		if err != nil {
			return err
		}

		sink := newScanSink(env, batchOut)

		gate := env.quotaGate(ctx)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(batchConcurrency)

		for _, entry := range entries {
			if entry.IsDir() || !isImageFile(entry.Name()) {
				continue
			}
			path := filepath.Join(args[0], entry.Name())
			g.Go(func() error {
				image, err := readImageBase64(path)
				if err != nil {
					zap.L().Error("batch: read failed", zap.String("file", path), zap.Error(err))
					return nil
				}

				// Each image gets its own controller; the token manager and
				// quota gate are shared across all of them.
				ctrl := pipeline.NewController(env.client, gate, env.registry,
					env.store, sink, env.userID)
				defer ctrl.Dispose()

				result, err := env.client.ExtractLegacy(gctx, image, env.registry.List(), nil, "")
				if err != nil {
					zap.L().Error("batch: extraction failed", zap.String("file", path), zap.Error(err))
					return nil
				}
				if err := ctrl.AdoptShifts(gctx, result.Shifts, result.IdentifiedPerson); err != nil {
					return nil
				}
				if err := ctrl.Confirm(gctx); err != nil {
					zap.L().Error("batch: commit failed", zap.String("file", path), zap.Error(err))
				}
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return err
		}
		return sink.finish()
	},
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".webp", ".heic":
		return true
	default:
		return false
	}
}

func init() {
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 3, "max images processed at once")
	batchCmd.Flags().StringVar(&batchOut, "out", "", "write committed shifts to this XLSX file")
	rootCmd.AddCommand(batchCmd)
}

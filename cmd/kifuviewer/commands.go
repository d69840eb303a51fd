package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kifu_viewer/internal/bootstrap"
	"kifu_viewer/internal/repository"
	kifuUC "kifu_viewer/internal/usecase/kifu"
)

// offlineUseCase работает только с файлами, без Redis и MongoDB. Пути берутся
// из командной строки как есть.
func offlineUseCase(normalize bool) *kifuUC.KifuUseCase {
	log := zap.NewNop().Sugar()
	cfg := bootstrap.Config{NormalizeOnSave: normalize}
	return kifuUC.NewKifuUseCase(cfg, log, repository.NewLocalFileStorage(log), nil, nil, nil)
}

func newFmtCommand() *cobra.Command {
	var write, normalize bool
	cmd := &cobra.Command{
		Use:   "fmt <file>",
		Short: "Parse a record and print it in canonical form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return formatFile(cmd.Context(), cmd, args[0], write, normalize)
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "write the result back to the file")
	cmd.Flags().BoolVar(&normalize, "normalize", false, "drop unknown properties and stamp AP")
	return cmd
}

func formatFile(ctx context.Context, cmd *cobra.Command, path string, write bool, normalize bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	uc := offlineUseCase(normalize)

	c, err := uc.OpenFile(ctx, path)
	if err != nil {
		return err
	}
	if write {
		return uc.SaveFile(ctx, path, c)
	}

	text, err := uc.Format(c)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
	return err
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check that a record parses and holds at least one game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			uc := offlineUseCase(false)

			c, err := uc.OpenFile(ctx, args[0])
			if err != nil {
				return err
			}
			if err = uc.Validate(c); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: ok, %d game(s)\n", args[0], len(c.Games))
			return err
		},
	}
}

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ayusman/handsign/internal/dataset"
)

func exportCommand(c *cli) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export <session>",
		Short: "Write a stored session as a JSON dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storage, _, closer, err := c.openStorage()
			if err != nil {
				return err
			}
			defer closer.Close()

			data, err := storage.Read(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("read session %s: %w", args[0], err)
			}
			// Refuse to export something that would not load back.
			if _, err := dataset.Decode(data); err != nil {
				return fmt.Errorf("session %s: %w", args[0], err)
			}

			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if _, err := os.Stat(out); err == nil {
				return fmt.Errorf("%s: %w", out, os.ErrExist)
			} else if !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := os.WriteFile(out, data, 0644); err != nil {
				return err
			}
			c.logger.Info("session exported", "session", args[0], "path", out, "bytes", len(data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	return cmd
}

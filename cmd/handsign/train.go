package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ayusman/handsign/internal/app"
	"github.com/ayusman/handsign/internal/dataset"
	"github.com/ayusman/handsign/internal/gesture"
)

var errNoSource = errors.New("one of --session or --file is required")

func trainCommand(c *cli) *cobra.Command {
	var session, file string
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the classifier on a stored or exported dataset",
		Long: `Load a dataset from a stored session or an exported JSON file, fit the
classifier on it without opening the camera and print the training report.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (session == "") == (file == "") {
				return errNoSource
			}

			storage, _, closer, err := c.openStorage()
			if err != nil {
				return err
			}
			defer closer.Close()

			var loader dataset.Loader = dataset.FileLoader{Path: file}
			if session != "" {
				loader = dataset.StorageLoader{Storage: storage, Key: session}
			}

			report, err := trainOffline(cmd, c, storage, loader)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "examples: %d\nepochs: %d\nloss: %.6f\naccuracy: %.4f\nduration: %s\n",
				report.Examples, report.Epochs, report.Loss, report.Accuracy, report.Duration)
			return nil
		},
	}
	cmd.Flags().StringVarP(&session, "session", "s", "", "Stored session id")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Exported dataset file")
	return cmd
}

// trainOffline runs a camera-less pipeline through load and training.
func trainOffline(cmd *cobra.Command, c *cli, storage dataset.Storage, loader dataset.Loader) (gesture.Report, error) {
	opts := c.opts
	p, err := app.NewPipeline(app.PipelineConfig{
		Storage:   storage,
		Classes:   opts.Classes,
		Threshold: opts.Threshold,
		Params: gesture.Params{
			BatchSize:    opts.BatchSize,
			Epochs:       opts.Epochs,
			LearningRate: opts.LearningRate,
		},
		Classifier: app.ClassifierConfig(opts, c.logger),
		Logger:     c.logger,
	})
	if err != nil {
		return gesture.Report{}, err
	}
	defer p.Teardown()

	ctx := cmd.Context()
	if err := p.Init(ctx); err != nil {
		return gesture.Report{}, err
	}
	n, err := p.LoadDataset(ctx, loader)
	if err != nil {
		return gesture.Report{}, err
	}
	c.logger.Info("dataset loaded", "examples", n)
	return p.Train(ctx)
}

// Command edgesr trains one of the super-resolution cascade models against a
// synthetic batch producer. It wires config loading with live reload,
// structured logging, checkpoint save/restore and the per-step loss log.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"

	"github.com/edgelab/edgesr/checkpoints"
	"github.com/edgelab/edgesr/config"
	"github.com/edgelab/edgesr/dataset"
	"github.com/edgelab/edgesr/logger"
	"github.com/edgelab/edgesr/model"
)

func main() {
	var (
		flagConfigPath = flag.String("config", "config.yaml", "Path to config file")
		flagLRSize     = flag.Int("lr-size", 16, "Low-resolution patch edge length for the synthetic producer")
		flagLogFile    = flag.Bool("log-file", false, "Also write logs to logs/edgesr.log")
	)
	flag.Parse()

	slog.SetDefault(logger.New(logger.WithLogToFile(*flagLogFile)))

	if err := run(*flagConfigPath, *flagLRSize); err != nil {
		slog.Error("Training failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, lrSize int) error {
	var controller model.Controller

	watcher, err := config.NewWatcher(configPath, func(cfg *config.Config, err error) {
		if err != nil || controller == nil {
			return
		}
		opts, err := cfg.Resolve()
		if err != nil {
			slog.Error("Rejecting reloaded config", "error", err)
			return
		}
		controller.UpdateLearningRate(float32(opts.LR))
		slog.Info("Applied learning rate from reloaded config", "lr", opts.LR)
	})
	if err != nil {
		return err
	}

	opts, err := watcher.Snapshot().Resolve()
	if err != nil {
		return err
	}
	if opts.Mode != config.ModeTrain {
		return fmt.Errorf("mode %s is not supported by this driver, set mode: 1", opts.Mode)
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	controller, err = buildController(opts, rng)
	if err != nil {
		return err
	}

	store := checkpoints.NewStore(opts.CheckpointDir)
	if err := controller.Load(store); err != nil {
		return err
	}

	producer, err := dataset.NewSynthetic(opts.BatchSize, lrSize, opts.Scale, rng)
	if err != nil {
		return err
	}

	slog.Info("Starting training",
		"model", controller.Name(),
		"scale", opts.Scale,
		"batch_size", opts.BatchSize,
		"gan_loss", opts.GANLoss,
		"replicas", opts.Replicas(),
		"iteration", controller.Iteration(),
	)

	for controller.Iteration() < opts.Iterations {
		batch, err := producer.NextBatch()
		if err != nil {
			return fmt.Errorf("next batch: %w", err)
		}

		_, genLoss, disLoss, logs, err := controller.Process(batch.LRImages, batch.HRImages, batch.LRGuides, batch.HRGuides)
		if err != nil {
			return fmt.Errorf("process: %w", err)
		}
		if err := controller.Backward(genLoss, disLoss); err != nil {
			return fmt.Errorf("backward: %w", err)
		}

		iter := controller.Iteration()
		if iter%opts.LogEvery == 0 {
			attrs := make([]any, 0, 2+2*len(logs))
			attrs = append(attrs, "iteration", iter)
			for _, entry := range logs {
				attrs = append(attrs, entry.Name, entry.Value)
			}
			slog.Info("Step", attrs...)
		}
		if iter%opts.SaveEvery == 0 {
			if err := controller.Save(store); err != nil {
				return fmt.Errorf("save: %w", err)
			}
		}
	}

	if err := controller.Save(store); err != nil {
		return fmt.Errorf("final save: %w", err)
	}
	slog.Info("Training complete", "iteration", controller.Iteration())
	return nil
}

func buildController(opts *config.Options, rng *rand.Rand) (model.Controller, error) {
	switch opts.Model {
	case "edge":
		return model.NewEdgeModel(opts, rng)
	case "gradient":
		return model.NewGradientModel(opts, rng)
	case "sr":
		return model.NewSRModel(opts, rng)
	default:
		return nil, fmt.Errorf("unknown model %q", opts.Model)
	}
}

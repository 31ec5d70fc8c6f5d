// Package config loads and validates the flat training configuration. Keys
// that are absent from the file stay nil so "option not provided" is
// distinguishable from an explicit zero; Resolve applies documented defaults
// and rejects missing required keys instead of silently zeroing them.
package config

import (
	"fmt"
)

// Mode selects the run mode of the trainer.
type Mode int

const (
	ModeTrain Mode = 1
	ModeTest  Mode = 2
	ModeEval  Mode = 3
)

func (m Mode) String() string {
	switch m {
	case ModeTrain:
		return "train"
	case ModeTest:
		return "test"
	case ModeEval:
		return "eval"
	default:
		return "unknown"
	}
}

// Config mirrors the YAML file. Optional keys are pointers; nil means the key
// was not provided.
type Config struct {
	Mode      *int     `json:"mode,omitempty"       yaml:"mode,omitempty"`
	Model     *string  `json:"model,omitempty"      yaml:"model,omitempty"`
	Scale     *int     `json:"scale,omitempty"      yaml:"scale,omitempty"`
	LR        *float64 `json:"lr,omitempty"         yaml:"lr,omitempty"`
	Beta1     *float64 `json:"beta1,omitempty"      yaml:"beta1,omitempty"`
	Beta2     *float64 `json:"beta2,omitempty"      yaml:"beta2,omitempty"`
	BatchSize *int     `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`
	GANLoss   *string  `json:"gan_loss,omitempty"   yaml:"gan_loss,omitempty"`

	AdvWeight1    *float64 `json:"adv_weight1,omitempty"    yaml:"adv_weight1,omitempty"`
	AdvWeight2    *float64 `json:"adv_weight2,omitempty"    yaml:"adv_weight2,omitempty"`
	FMWeight      *float64 `json:"fm_weight,omitempty"      yaml:"fm_weight,omitempty"`
	L1Weight      *float64 `json:"l1_weight,omitempty"      yaml:"l1_weight,omitempty"`
	ContentWeight *float64 `json:"content_weight,omitempty" yaml:"content_weight,omitempty"`
	StyleWeight   *float64 `json:"style_weight,omitempty"   yaml:"style_weight,omitempty"`

	Devices []int  `json:"devices,omitempty" yaml:"devices,omitempty"`
	Seed    *int64 `json:"seed,omitempty"    yaml:"seed,omitempty"`

	CheckpointDir *string `json:"checkpoint_dir,omitempty" yaml:"checkpoint_dir,omitempty"`
	Iterations    *int    `json:"iterations,omitempty"     yaml:"iterations,omitempty"`
	SaveEvery     *int    `json:"save_every,omitempty"     yaml:"save_every,omitempty"`
	LogEvery      *int    `json:"log_every,omitempty"      yaml:"log_every,omitempty"`
}

// Options is the fully resolved configuration consumed by the trainer.
type Options struct {
	Mode      Mode
	Model     string
	Scale     int
	LR        float64
	Beta1     float64
	Beta2     float64
	BatchSize int
	GANLoss   string

	AdvWeight1    float64
	AdvWeight2    float64
	FMWeight      float64
	L1Weight      float64
	ContentWeight float64
	StyleWeight   float64

	Devices []int
	Seed    int64

	CheckpointDir string
	Iterations    int
	SaveEvery     int
	LogEvery      int
}

// Resolve validates required keys and fills documented defaults for the
// optional ones. The loss weight defaults follow the reference training
// recipe; beta defaults are the usual GAN choices.
func (c *Config) Resolve() (*Options, error) {
	var missing []string
	requireInt := func(name string, v *int) int {
		if v == nil {
			missing = append(missing, name)
			return 0
		}
		return *v
	}
	requireFloat := func(name string, v *float64) float64 {
		if v == nil {
			missing = append(missing, name)
			return 0
		}
		return *v
	}
	requireString := func(name string, v *string) string {
		if v == nil {
			missing = append(missing, name)
			return ""
		}
		return *v
	}

	opts := &Options{
		Mode:    Mode(requireInt("mode", c.Mode)),
		Model:   requireString("model", c.Model),
		Scale:   requireInt("scale", c.Scale),
		LR:      requireFloat("lr", c.LR),
		GANLoss: requireString("gan_loss", c.GANLoss),

		Beta1:     floatOr(c.Beta1, 0.0),
		Beta2:     floatOr(c.Beta2, 0.9),
		BatchSize: intOr(c.BatchSize, 1),

		AdvWeight1:    floatOr(c.AdvWeight1, 0.1),
		AdvWeight2:    floatOr(c.AdvWeight2, 0.1),
		FMWeight:      floatOr(c.FMWeight, 10),
		L1Weight:      floatOr(c.L1Weight, 1),
		ContentWeight: floatOr(c.ContentWeight, 0.1),
		StyleWeight:   floatOr(c.StyleWeight, 250),

		Devices: c.Devices,
		Seed:    int64Or(c.Seed, 10),

		CheckpointDir: stringOr(c.CheckpointDir, "./checkpoints"),
		Iterations:    intOr(c.Iterations, 1000),
		SaveEvery:     intOr(c.SaveEvery, 100),
		LogEvery:      intOr(c.LogEvery, 10),
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required config keys: %v", missing)
	}

	switch opts.Mode {
	case ModeTrain, ModeTest, ModeEval:
	default:
		return nil, fmt.Errorf("invalid mode %d (want 1=train, 2=test, 3=eval)", int(opts.Mode))
	}
	switch opts.Scale {
	case 2, 4, 8:
	default:
		return nil, fmt.Errorf("invalid scale %d (want 2, 4 or 8)", opts.Scale)
	}
	switch opts.Model {
	case "edge", "gradient", "sr":
	default:
		return nil, fmt.Errorf("invalid model %q (want edge, gradient or sr)", opts.Model)
	}
	if len(opts.Devices) == 0 {
		opts.Devices = []int{0}
	}
	return opts, nil
}

// Replicas reports how many compute replicas the device list requests.
func (o *Options) Replicas() int {
	return len(o.Devices)
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func int64Or(v *int64, def int64) int64 {
	if v == nil {
		return def
	}
	return *v
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func stringOr(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}

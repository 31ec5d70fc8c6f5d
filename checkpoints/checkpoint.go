// Package checkpoints persists and restores generator and discriminator
// parameter state. Each model writes two JSON files keyed by its name:
// <name>_gen.json carries the generator weights plus the iteration counter,
// <name>_dis.json carries the discriminator weights only. The split is
// deliberate: discriminator state matters only when training resumes, never
// for inference-only loading. Writes overwrite in place and are not atomic.
package checkpoints

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// WeightTensor represents one parameter tensor with its data.
type WeightTensor struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

// Metadata contains checkpoint provenance.
type Metadata struct {
	Version   string    `json:"version"`
	Framework string    `json:"framework"`
	CreatedAt time.Time `json:"created_at"`
}

// GeneratorCheckpoint is the on-disk record for generator state. Iteration
// travels with the generator so a resumed run continues its counter.
type GeneratorCheckpoint struct {
	Iteration int            `json:"iteration"`
	Weights   []WeightTensor `json:"weights"`
	Metadata  Metadata       `json:"metadata"`
}

// DiscriminatorCheckpoint is the on-disk record for discriminator state.
type DiscriminatorCheckpoint struct {
	Weights  []WeightTensor `json:"weights"`
	Metadata Metadata       `json:"metadata"`
}

// Store reads and writes checkpoints under a base directory.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) GeneratorPath(name string) string {
	return filepath.Join(s.dir, name+"_gen.json")
}

func (s *Store) DiscriminatorPath(name string) string {
	return filepath.Join(s.dir, name+"_dis.json")
}

func newMetadata() Metadata {
	return Metadata{
		Version:   "1.0.0",
		Framework: "edgesr",
		CreatedAt: time.Now(),
	}
}

// SaveGenerator writes generator weights and the iteration counter.
func (s *Store) SaveGenerator(name string, iteration int, weights []WeightTensor) error {
	ckpt := GeneratorCheckpoint{
		Iteration: iteration,
		Weights:   weights,
		Metadata:  newMetadata(),
	}
	return writeJSON(s.GeneratorPath(name), &ckpt)
}

// SaveDiscriminator writes discriminator weights.
func (s *Store) SaveDiscriminator(name string, weights []WeightTensor) error {
	ckpt := DiscriminatorCheckpoint{
		Weights:  weights,
		Metadata: newMetadata(),
	}
	return writeJSON(s.DiscriminatorPath(name), &ckpt)
}

// LoadGenerator reads the generator checkpoint for the named model. A missing
// file is not an error: found reports whether prior state existed.
func (s *Store) LoadGenerator(name string) (ckpt *GeneratorCheckpoint, found bool, err error) {
	ckpt = &GeneratorCheckpoint{}
	found, err = readJSON(s.GeneratorPath(name), ckpt)
	if !found || err != nil {
		return nil, found, err
	}
	return ckpt, true, nil
}

// LoadDiscriminator reads the discriminator checkpoint for the named model.
func (s *Store) LoadDiscriminator(name string) (ckpt *DiscriminatorCheckpoint, found bool, err error) {
	ckpt = &DiscriminatorCheckpoint{}
	found, err = readJSON(s.DiscriminatorPath(name), ckpt)
	if !found || err != nil {
		return nil, found, err
	}
	return ckpt, true, nil
}

func writeJSON(path string, v interface{}) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create checkpoint directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	return nil
}

func readJSON(path string, v interface{}) (found bool, err error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(v); err != nil {
		return true, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	return true, nil
}

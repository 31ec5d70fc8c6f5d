package nn

import (
	"fmt"
	"sync"

	"github.com/edgelab/edgesr/tensor"
)

// DataParallel runs a module's forward pass with the batch sharded across
// worker goroutines. Replicas share one set of parameter tensors, so gradient
// aggregation falls out of the ordinary backward traversal; the wrapper
// exposes the same forward and parameter contract regardless of the replica
// count.
type DataParallel struct {
	inner    Module
	replicas int
}

// Parallelize wraps a module for n-way batch sharding. n <= 1 returns the
// module unchanged.
func Parallelize(inner Module, n int) Module {
	if n <= 1 {
		return inner
	}
	return &DataParallel{inner: inner, replicas: n}
}

func shardSizes(batch, replicas int) []int {
	if replicas > batch {
		replicas = batch
	}
	sizes := make([]int, replicas)
	base := batch / replicas
	rem := batch % replicas
	for i := range sizes {
		sizes[i] = base
		if i < rem {
			sizes[i]++
		}
	}
	return sizes
}

func (dp *DataParallel) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if len(input.Shape) != 4 {
		return nil, fmt.Errorf("data parallel expects a [batch, channel, height, width] input, got shape %v", input.Shape)
	}

	sizes := shardSizes(input.Shape[0], dp.replicas)
	outputs := make([]*tensor.Tensor, len(sizes))
	errs := make([]error, len(sizes))

	var wg sync.WaitGroup
	start := 0
	for i, size := range sizes {
		wg.Add(1)
		go func(i, start, size int) {
			defer wg.Done()
			shard := tensor.SliceAutograd(input, 0, start, size)
			outputs[i], errs[i] = dp.inner.Forward(shard)
		}(i, start, size)
		start += size
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	if len(outputs) == 1 {
		return outputs[0], nil
	}
	return tensor.ConcatAutograd(outputs, 0), nil
}

func (dp *DataParallel) Parameters() []*tensor.Tensor {
	return dp.inner.Parameters()
}

// ParallelDiscriminator shards discriminator evaluation the same way,
// re-joining both the scores and every feature level along the batch axis.
type ParallelDiscriminator struct {
	inner    Discriminator
	replicas int
}

// ParallelizeDiscriminator wraps a discriminator for n-way batch sharding.
func ParallelizeDiscriminator(inner Discriminator, n int) Discriminator {
	if n <= 1 {
		return inner
	}
	return &ParallelDiscriminator{inner: inner, replicas: n}
}

func (pd *ParallelDiscriminator) Forward(input *tensor.Tensor) (*tensor.Tensor, []*tensor.Tensor, error) {
	if len(input.Shape) != 4 {
		return nil, nil, fmt.Errorf("data parallel expects a [batch, channel, height, width] input, got shape %v", input.Shape)
	}

	sizes := shardSizes(input.Shape[0], pd.replicas)
	scores := make([]*tensor.Tensor, len(sizes))
	features := make([][]*tensor.Tensor, len(sizes))
	errs := make([]error, len(sizes))

	var wg sync.WaitGroup
	start := 0
	for i, size := range sizes {
		wg.Add(1)
		go func(i, start, size int) {
			defer wg.Done()
			shard := tensor.SliceAutograd(input, 0, start, size)
			scores[i], features[i], errs[i] = pd.inner.Forward(shard)
		}(i, start, size)
		start += size
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, nil, err
		}
	}
	if len(scores) == 1 {
		return scores[0], features[0], nil
	}

	score := tensor.ConcatAutograd(scores, 0)
	levels := len(features[0])
	joined := make([]*tensor.Tensor, levels)
	for l := 0; l < levels; l++ {
		level := make([]*tensor.Tensor, len(features))
		for i := range features {
			level[i] = features[i][l]
		}
		joined[l] = tensor.ConcatAutograd(level, 0)
	}
	return score, joined, nil
}

func (pd *ParallelDiscriminator) Parameters() []*tensor.Tensor {
	return pd.inner.Parameters()
}

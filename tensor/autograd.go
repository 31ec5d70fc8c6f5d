package tensor

import (
	"fmt"
)

// opInputs carries the recorded forward inputs shared by every operation.
type opInputs struct {
	inputs []*Tensor
}

func (o *opInputs) Inputs() []*Tensor {
	return o.inputs
}

func anyRequiresGrad(tensors []*Tensor) bool {
	for _, t := range tensors {
		if t.requiresGrad {
			return true
		}
	}
	return false
}

func attach(result *Tensor, op Operation, inputs []*Tensor) *Tensor {
	result.creator = op
	result.requiresGrad = anyRequiresGrad(inputs)
	return result
}

// Backward runs reverse-mode differentiation from a scalar loss tensor,
// accumulating gradients into every reachable tensor that requires them.
// Multiple uses of the same tensor sum their contributions.
func (t *Tensor) Backward() error {
	if t.NumElems != 1 {
		return fmt.Errorf("backward requires a scalar loss tensor, got shape %v", t.Shape)
	}

	// Topological order over the creator graph; reverse order guarantees a
	// node's gradient is complete before it is propagated to its inputs.
	var order []*Tensor
	visited := make(map[*Tensor]bool)
	var visit func(node *Tensor)
	visit = func(node *Tensor) {
		if visited[node] || node.creator == nil {
			return
		}
		visited[node] = true
		for _, in := range node.creator.Inputs() {
			visit(in)
		}
		order = append(order, node)
	}
	visit(t)

	seed, err := Ones(t.Shape, Float32)
	if err != nil {
		return err
	}
	if err := accumulateGrad(t, seed); err != nil {
		return err
	}

	for i := len(order) - 1; i >= 0; i-- {
		node := order[i]
		if node.grad == nil {
			continue
		}
		grads := node.creator.Backward(node.grad)
		inputs := node.creator.Inputs()
		if len(grads) != len(inputs) {
			return fmt.Errorf("operation returned %d gradients for %d inputs", len(grads), len(inputs))
		}
		for j, in := range inputs {
			if grads[j] == nil {
				continue
			}
			if !in.requiresGrad && in.creator == nil {
				continue
			}
			if err := accumulateGrad(in, grads[j]); err != nil {
				return err
			}
		}
	}
	return nil
}

func accumulateGrad(t *Tensor, grad *Tensor) error {
	if t.grad == nil {
		clone, err := grad.Clone()
		if err != nil {
			return err
		}
		t.grad = clone
		return nil
	}
	if err := checkCompatibility(t.grad, grad); err != nil {
		return fmt.Errorf("gradient accumulation failed: %w", err)
	}
	dst := t.grad.Data.([]float32)
	src := grad.Data.([]float32)
	for i := range dst {
		dst[i] += src[i]
	}
	return nil
}

// mustRaw converts a raw-op error into a panic. Shape and dtype mismatches
// inside the graph signal a dataset or configuration contract violation and
// are not recoverable locally.
func mustRaw(t *Tensor, err error) *Tensor {
	if err != nil {
		panic(fmt.Sprintf("tensor operation failed: %v", err))
	}
	return t
}

// AddOp implements the Operation interface for elementwise addition.
type AddOp struct {
	opInputs
}

func (op *AddOp) Forward(inputs ...*Tensor) *Tensor {
	op.inputs = inputs
	result := mustRaw(Add(inputs[0], inputs[1]))
	return attach(result, op, inputs)
}

func (op *AddOp) Backward(gradOut *Tensor) []*Tensor {
	return []*Tensor{gradOut, gradOut}
}

// SubOp implements the Operation interface for elementwise subtraction.
type SubOp struct {
	opInputs
}

func (op *SubOp) Forward(inputs ...*Tensor) *Tensor {
	op.inputs = inputs
	result := mustRaw(Sub(inputs[0], inputs[1]))
	return attach(result, op, inputs)
}

func (op *SubOp) Backward(gradOut *Tensor) []*Tensor {
	negGrad := mustRaw(Neg(gradOut))
	return []*Tensor{gradOut, negGrad}
}

// MulOp implements the Operation interface for elementwise multiplication.
type MulOp struct {
	opInputs
}

func (op *MulOp) Forward(inputs ...*Tensor) *Tensor {
	op.inputs = inputs
	result := mustRaw(Mul(inputs[0], inputs[1]))
	return attach(result, op, inputs)
}

func (op *MulOp) Backward(gradOut *Tensor) []*Tensor {
	gradA := mustRaw(Mul(gradOut, op.inputs[1]))
	gradB := mustRaw(Mul(gradOut, op.inputs[0]))
	return []*Tensor{gradA, gradB}
}

// ScaleOp multiplies a tensor by a compile-time constant scalar.
type ScaleOp struct {
	opInputs
	Factor float32
}

func (op *ScaleOp) Forward(inputs ...*Tensor) *Tensor {
	op.inputs = inputs
	result := mustRaw(Scale(inputs[0], op.Factor))
	return attach(result, op, inputs)
}

func (op *ScaleOp) Backward(gradOut *Tensor) []*Tensor {
	return []*Tensor{mustRaw(Scale(gradOut, op.Factor))}
}

// LogOp implements the natural logarithm with the same epsilon clamp as Log.
type LogOp struct {
	opInputs
}

func (op *LogOp) Forward(inputs ...*Tensor) *Tensor {
	op.inputs = inputs
	result := mustRaw(Log(inputs[0]))
	return attach(result, op, inputs)
}

func (op *LogOp) Backward(gradOut *Tensor) []*Tensor {
	x := op.inputs[0].Data.([]float32)
	g := gradOut.Data.([]float32)
	out := make([]float32, len(g))
	for i := range out {
		xi := x[i]
		if xi < logEpsilon {
			xi = logEpsilon
		}
		out[i] = g[i] / xi
	}
	grad, _ := NewTensor(gradOut.Shape, Float32, out)
	return []*Tensor{grad}
}

// ReLUOp implements the Operation interface for ReLU activation.
type ReLUOp struct {
	opInputs
}

func (op *ReLUOp) Forward(inputs ...*Tensor) *Tensor {
	op.inputs = inputs
	result := mustRaw(ReLU(inputs[0]))
	return attach(result, op, inputs)
}

func (op *ReLUOp) Backward(gradOut *Tensor) []*Tensor {
	x := op.inputs[0].Data.([]float32)
	g := gradOut.Data.([]float32)
	out := make([]float32, len(g))
	for i := range out {
		if x[i] > 0 {
			out[i] = g[i]
		}
	}
	grad, _ := NewTensor(gradOut.Shape, Float32, out)
	return []*Tensor{grad}
}

// LeakyReLUOp implements leaky ReLU with a configurable negative slope.
type LeakyReLUOp struct {
	opInputs
	Slope float32
}

func (op *LeakyReLUOp) Forward(inputs ...*Tensor) *Tensor {
	op.inputs = inputs
	result := mustRaw(LeakyReLU(inputs[0], op.Slope))
	return attach(result, op, inputs)
}

func (op *LeakyReLUOp) Backward(gradOut *Tensor) []*Tensor {
	x := op.inputs[0].Data.([]float32)
	g := gradOut.Data.([]float32)
	out := make([]float32, len(g))
	for i := range out {
		if x[i] > 0 {
			out[i] = g[i]
		} else {
			out[i] = g[i] * op.Slope
		}
	}
	grad, _ := NewTensor(gradOut.Shape, Float32, out)
	return []*Tensor{grad}
}

// SigmoidOp implements the Operation interface for sigmoid activation.
type SigmoidOp struct {
	opInputs
	output *Tensor
}

func (op *SigmoidOp) Forward(inputs ...*Tensor) *Tensor {
	op.inputs = inputs
	result := mustRaw(Sigmoid(inputs[0]))
	op.output = result
	return attach(result, op, inputs)
}

func (op *SigmoidOp) Backward(gradOut *Tensor) []*Tensor {
	y := op.output.Data.([]float32)
	g := gradOut.Data.([]float32)
	out := make([]float32, len(g))
	for i := range out {
		out[i] = g[i] * y[i] * (1 - y[i])
	}
	grad, _ := NewTensor(gradOut.Shape, Float32, out)
	return []*Tensor{grad}
}

// AbsOp implements the elementwise absolute value.
type AbsOp struct {
	opInputs
}

func (op *AbsOp) Forward(inputs ...*Tensor) *Tensor {
	op.inputs = inputs
	result := mustRaw(Abs(inputs[0]))
	return attach(result, op, inputs)
}

func (op *AbsOp) Backward(gradOut *Tensor) []*Tensor {
	x := op.inputs[0].Data.([]float32)
	g := gradOut.Data.([]float32)
	out := make([]float32, len(g))
	for i := range out {
		switch {
		case x[i] > 0:
			out[i] = g[i]
		case x[i] < 0:
			out[i] = -g[i]
		}
	}
	grad, _ := NewTensor(gradOut.Shape, Float32, out)
	return []*Tensor{grad}
}

// MeanOp reduces all elements to their mean.
type MeanOp struct {
	opInputs
}

func (op *MeanOp) Forward(inputs ...*Tensor) *Tensor {
	op.inputs = inputs
	result := mustRaw(Mean(inputs[0]))
	return attach(result, op, inputs)
}

func (op *MeanOp) Backward(gradOut *Tensor) []*Tensor {
	in := op.inputs[0]
	g := gradOut.Data.([]float32)[0] / float32(in.NumElems)
	grad := mustRaw(Full(in.Shape, float64(g), Float32))
	return []*Tensor{grad}
}

// ConcatOp joins tensors along a dimension; backward slices the gradient back
// apart.
type ConcatOp struct {
	opInputs
	Dim int
}

func (op *ConcatOp) Forward(inputs ...*Tensor) *Tensor {
	op.inputs = inputs
	result := mustRaw(Concat(inputs, op.Dim))
	return attach(result, op, inputs)
}

func (op *ConcatOp) Backward(gradOut *Tensor) []*Tensor {
	grads := make([]*Tensor, len(op.inputs))
	start := 0
	for i, in := range op.inputs {
		size := in.Shape[op.Dim]
		grads[i] = mustRaw(sliceDim(gradOut, op.Dim, start, size))
		start += size
	}
	return grads
}

// UpsampleNearestOp replicates pixels; backward sums each upsampled block.
type UpsampleNearestOp struct {
	opInputs
	Factor int
}

func (op *UpsampleNearestOp) Forward(inputs ...*Tensor) *Tensor {
	op.inputs = inputs
	result := mustRaw(UpsampleNearest(inputs[0], op.Factor))
	return attach(result, op, inputs)
}

func (op *UpsampleNearestOp) Backward(gradOut *Tensor) []*Tensor {
	in := op.inputs[0]
	s := op.Factor
	b, c, h, w := in.Shape[0], in.Shape[1], in.Shape[2], in.Shape[3]
	oh, ow := h*s, w*s
	g := gradOut.Data.([]float32)
	out := make([]float32, b*c*h*w)
	for bi := 0; bi < b*c; bi++ {
		src := g[bi*oh*ow:]
		dst := out[bi*h*w:]
		for y := 0; y < oh; y++ {
			row := src[y*ow:]
			dstRow := dst[(y/s)*w:]
			for x := 0; x < ow; x++ {
				dstRow[x/s] += row[x]
			}
		}
	}
	grad, _ := NewTensor(in.Shape, Float32, out)
	return []*Tensor{grad}
}

// ZeroUpsampleOp inserts zeros between pixels; backward picks the strided
// positions back out.
type ZeroUpsampleOp struct {
	opInputs
	Factor int
}

func (op *ZeroUpsampleOp) Forward(inputs ...*Tensor) *Tensor {
	op.inputs = inputs
	result := mustRaw(ZeroUpsample(inputs[0], op.Factor))
	return attach(result, op, inputs)
}

func (op *ZeroUpsampleOp) Backward(gradOut *Tensor) []*Tensor {
	grad := mustRaw(DownsampleStride(gradOut, op.Factor))
	return []*Tensor{grad}
}

// SliceOp extracts a contiguous range along one dimension; backward scatters
// the gradient back into the matching positions of a zero tensor.
type SliceOp struct {
	opInputs
	Dim   int
	Start int
	Size  int
}

func (op *SliceOp) Forward(inputs ...*Tensor) *Tensor {
	op.inputs = inputs
	result := mustRaw(sliceDim(inputs[0], op.Dim, op.Start, op.Size))
	return attach(result, op, inputs)
}

func (op *SliceOp) Backward(gradOut *Tensor) []*Tensor {
	in := op.inputs[0]
	grad := mustRaw(Zeros(in.Shape, Float32))
	g := gradOut.Data.([]float32)
	dst := grad.Data.([]float32)

	outer := 1
	for i := 0; i < op.Dim; i++ {
		outer *= in.Shape[i]
	}
	inner := 1
	for i := op.Dim + 1; i < len(in.Shape); i++ {
		inner *= in.Shape[i]
	}
	span := op.Size * inner
	for o := 0; o < outer; o++ {
		copy(dst[o*in.Shape[op.Dim]*inner+op.Start*inner:][:span], g[o*span:(o+1)*span])
	}
	return []*Tensor{grad}
}

// GramOp computes per-sample Gram matrices of a feature tensor.
type GramOp struct {
	opInputs
}

func (op *GramOp) Forward(inputs ...*Tensor) *Tensor {
	op.inputs = inputs
	result := mustRaw(Gram(inputs[0]))
	return attach(result, op, inputs)
}

func (op *GramOp) Backward(gradOut *Tensor) []*Tensor {
	in := op.inputs[0]
	b, c, h, w := in.Shape[0], in.Shape[1], in.Shape[2], in.Shape[3]
	hw := h * w
	norm := float32(c * hw)
	f := in.Data.([]float32)
	g := gradOut.Data.([]float32)
	out := make([]float32, b*c*hw)
	for bi := 0; bi < b; bi++ {
		feat := f[bi*c*hw:]
		dg := g[bi*c*c:]
		dst := out[bi*c*hw:]
		for i := 0; i < c; i++ {
			for j := 0; j < c; j++ {
				// d/dF[i] of G[i][j] and G[j][i] both pull in F[j].
				coeff := (dg[i*c+j] + dg[j*c+i]) / norm
				if coeff == 0 {
					continue
				}
				fj := feat[j*hw : (j+1)*hw]
				di := dst[i*hw : (i+1)*hw]
				for k := 0; k < hw; k++ {
					di[k] += coeff * fj[k]
				}
			}
		}
	}
	grad, _ := NewTensor(in.Shape, Float32, out)
	return []*Tensor{grad}
}

// Conv2dOp records a convolution forward pass. The weight values are
// snapshotted at forward time so that a backward pass run after an optimizer
// step still differentiates against the parameters that actually produced the
// output.
type Conv2dOp struct {
	opInputs
	Stride  int
	Padding int

	weightSnapshot []float32
}

func (op *Conv2dOp) Forward(inputs ...*Tensor) *Tensor {
	op.inputs = inputs
	input, weight := inputs[0], inputs[1]
	var bias *Tensor
	if len(inputs) > 2 {
		bias = inputs[2]
	}
	result := mustRaw(Conv2d(input, weight, bias, op.Stride, op.Padding))
	op.weightSnapshot = append([]float32(nil), weight.Data.([]float32)...)
	return attach(result, op, inputs)
}

func (op *Conv2dOp) Backward(gradOut *Tensor) []*Tensor {
	input, weight := op.inputs[0], op.inputs[1]
	hasBias := len(op.inputs) > 2
	gradIn, gradW, gradB := conv2dBackward(gradOut, input, weight.Shape, op.weightSnapshot, hasBias, op.Stride, op.Padding)
	if hasBias {
		return []*Tensor{gradIn, gradW, gradB}
	}
	return []*Tensor{gradIn, gradW}
}

// High-level autograd entry points that create and execute operations.

func AddAutograd(a, b *Tensor) *Tensor {
	op := &AddOp{}
	return op.Forward(a, b)
}

func SubAutograd(a, b *Tensor) *Tensor {
	op := &SubOp{}
	return op.Forward(a, b)
}

func MulAutograd(a, b *Tensor) *Tensor {
	op := &MulOp{}
	return op.Forward(a, b)
}

func ScaleAutograd(a *Tensor, factor float32) *Tensor {
	op := &ScaleOp{Factor: factor}
	return op.Forward(a)
}

func LogAutograd(a *Tensor) *Tensor {
	op := &LogOp{}
	return op.Forward(a)
}

func ReLUAutograd(a *Tensor) *Tensor {
	op := &ReLUOp{}
	return op.Forward(a)
}

func LeakyReLUAutograd(a *Tensor, slope float32) *Tensor {
	op := &LeakyReLUOp{Slope: slope}
	return op.Forward(a)
}

func SigmoidAutograd(a *Tensor) *Tensor {
	op := &SigmoidOp{}
	return op.Forward(a)
}

func AbsAutograd(a *Tensor) *Tensor {
	op := &AbsOp{}
	return op.Forward(a)
}

func MeanAutograd(a *Tensor) *Tensor {
	op := &MeanOp{}
	return op.Forward(a)
}

func ConcatAutograd(tensors []*Tensor, dim int) *Tensor {
	op := &ConcatOp{Dim: dim}
	return op.Forward(tensors...)
}

func UpsampleNearestAutograd(a *Tensor, factor int) *Tensor {
	op := &UpsampleNearestOp{Factor: factor}
	return op.Forward(a)
}

func ZeroUpsampleAutograd(a *Tensor, factor int) *Tensor {
	op := &ZeroUpsampleOp{Factor: factor}
	return op.Forward(a)
}

func SliceAutograd(a *Tensor, dim, start, size int) *Tensor {
	op := &SliceOp{Dim: dim, Start: start, Size: size}
	return op.Forward(a)
}

func GramAutograd(a *Tensor) *Tensor {
	op := &GramOp{}
	return op.Forward(a)
}

func Conv2dAutograd(input, weight, bias *Tensor, stride, padding int) *Tensor {
	op := &Conv2dOp{Stride: stride, Padding: padding}
	if bias != nil {
		return op.Forward(input, weight, bias)
	}
	return op.Forward(input, weight)
}

package tensor

import (
	"fmt"
	"math"
)

const logEpsilon = 1e-12

func checkCompatibility(t1, t2 *Tensor) error {
	if t1.DType != t2.DType {
		return fmt.Errorf("dtype mismatch: %s vs %s", t1.DType, t2.DType)
	}
	if len(t1.Shape) != len(t2.Shape) {
		return fmt.Errorf("shape mismatch: %v vs %v", t1.Shape, t2.Shape)
	}
	for i := range t1.Shape {
		if t1.Shape[i] != t2.Shape[i] {
			return fmt.Errorf("shape mismatch: %v vs %v", t1.Shape, t2.Shape)
		}
	}
	return nil
}

func float32Data(t *Tensor, op string) ([]float32, error) {
	if t.DType != Float32 {
		return nil, fmt.Errorf("%s only supports Float32 tensors, got %s", op, t.DType)
	}
	return t.Data.([]float32), nil
}

func elementwise2(t1, t2 *Tensor, op string, f func(a, b float32) float32) (*Tensor, error) {
	if err := checkCompatibility(t1, t2); err != nil {
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}
	a, err := float32Data(t1, op)
	if err != nil {
		return nil, err
	}
	b, err := float32Data(t2, op)
	if err != nil {
		return nil, err
	}

	out := make([]float32, t1.NumElems)
	for i := range out {
		out[i] = f(a[i], b[i])
	}
	return NewTensor(t1.Shape, Float32, out)
}

func elementwise1(t *Tensor, op string, f func(x float32) float32) (*Tensor, error) {
	data, err := float32Data(t, op)
	if err != nil {
		return nil, err
	}
	out := make([]float32, t.NumElems)
	for i := range out {
		out[i] = f(data[i])
	}
	return NewTensor(t.Shape, Float32, out)
}

func Add(t1, t2 *Tensor) (*Tensor, error) {
	return elementwise2(t1, t2, "add", func(a, b float32) float32 { return a + b })
}

func Sub(t1, t2 *Tensor) (*Tensor, error) {
	return elementwise2(t1, t2, "sub", func(a, b float32) float32 { return a - b })
}

func Mul(t1, t2 *Tensor) (*Tensor, error) {
	return elementwise2(t1, t2, "mul", func(a, b float32) float32 { return a * b })
}

func Scale(t *Tensor, s float32) (*Tensor, error) {
	return elementwise1(t, "scale", func(x float32) float32 { return x * s })
}

func Neg(t *Tensor) (*Tensor, error) {
	return Scale(t, -1)
}

// Log clamps its argument at a small epsilon so that saturated sigmoid
// outputs do not produce -Inf in the adversarial loss.
func Log(t *Tensor) (*Tensor, error) {
	return elementwise1(t, "log", func(x float32) float32 {
		if x < logEpsilon {
			x = logEpsilon
		}
		return float32(math.Log(float64(x)))
	})
}

func ReLU(t *Tensor) (*Tensor, error) {
	return elementwise1(t, "relu", func(x float32) float32 {
		if x < 0 {
			return 0
		}
		return x
	})
}

func LeakyReLU(t *Tensor, slope float32) (*Tensor, error) {
	return elementwise1(t, "leaky_relu", func(x float32) float32 {
		if x < 0 {
			return slope * x
		}
		return x
	})
}

func Sigmoid(t *Tensor) (*Tensor, error) {
	return elementwise1(t, "sigmoid", func(x float32) float32 {
		return float32(1.0 / (1.0 + math.Exp(float64(-x))))
	})
}

func Abs(t *Tensor) (*Tensor, error) {
	return elementwise1(t, "abs", func(x float32) float32 {
		if x < 0 {
			return -x
		}
		return x
	})
}

// Sum reduces all elements to a [1] tensor.
func Sum(t *Tensor) (*Tensor, error) {
	data, err := float32Data(t, "sum")
	if err != nil {
		return nil, err
	}
	var sum float32
	for _, v := range data {
		sum += v
	}
	return NewTensor([]int{1}, Float32, []float32{sum})
}

// Mean reduces all elements to a [1] tensor.
func Mean(t *Tensor) (*Tensor, error) {
	s, err := Sum(t)
	if err != nil {
		return nil, err
	}
	s.Data.([]float32)[0] /= float32(t.NumElems)
	return s, nil
}

// Concat joins tensors along the given dimension. All other dimensions must
// match exactly.
func Concat(tensors []*Tensor, dim int) (*Tensor, error) {
	if len(tensors) == 0 {
		return nil, fmt.Errorf("concat requires at least one tensor")
	}
	first := tensors[0]
	if dim < 0 || dim >= len(first.Shape) {
		return nil, fmt.Errorf("concat dimension %d out of range for rank %d", dim, len(first.Shape))
	}

	outShape := append([]int(nil), first.Shape...)
	for _, t := range tensors[1:] {
		if t.DType != first.DType || len(t.Shape) != len(first.Shape) {
			return nil, fmt.Errorf("concat requires matching dtypes and ranks")
		}
		for i := range t.Shape {
			if i != dim && t.Shape[i] != first.Shape[i] {
				return nil, fmt.Errorf("concat shape mismatch at dim %d: %v vs %v", i, first.Shape, t.Shape)
			}
		}
		outShape[dim] += t.Shape[dim]
	}

	out, err := Zeros(outShape, Float32)
	if err != nil {
		return nil, err
	}
	outData := out.Data.([]float32)

	outer := 1
	for i := 0; i < dim; i++ {
		outer *= outShape[i]
	}
	inner := 1
	for i := dim + 1; i < len(outShape); i++ {
		inner *= outShape[i]
	}

	offset := 0
	for _, t := range tensors {
		data, err := float32Data(t, "concat")
		if err != nil {
			return nil, err
		}
		span := t.Shape[dim] * inner
		for o := 0; o < outer; o++ {
			src := data[o*span : (o+1)*span]
			dst := outData[o*outShape[dim]*inner+offset:]
			copy(dst[:span], src)
		}
		offset += span
	}
	return out, nil
}

// sliceDim extracts the [start, start+size) range along dim. Inverse of Concat.
func sliceDim(t *Tensor, dim, start, size int) (*Tensor, error) {
	outShape := append([]int(nil), t.Shape...)
	outShape[dim] = size

	out, err := Zeros(outShape, Float32)
	if err != nil {
		return nil, err
	}
	data, err := float32Data(t, "slice")
	if err != nil {
		return nil, err
	}
	outData := out.Data.([]float32)

	outer := 1
	for i := 0; i < dim; i++ {
		outer *= t.Shape[i]
	}
	inner := 1
	for i := dim + 1; i < len(t.Shape); i++ {
		inner *= t.Shape[i]
	}

	span := size * inner
	for o := 0; o < outer; o++ {
		src := data[o*t.Shape[dim]*inner+start*inner:]
		copy(outData[o*span:(o+1)*span], src[:span])
	}
	return out, nil
}

func checkRank4(t *Tensor, op string) error {
	if len(t.Shape) != 4 {
		return fmt.Errorf("%s requires a [batch, channel, height, width] tensor, got shape %v", op, t.Shape)
	}
	return nil
}

// UpsampleNearest scales the spatial dimensions of a [B, C, H, W] tensor by an
// integer factor, replicating each pixel into an s by s block.
func UpsampleNearest(t *Tensor, scale int) (*Tensor, error) {
	if err := checkRank4(t, "upsample_nearest"); err != nil {
		return nil, err
	}
	if scale < 1 {
		return nil, fmt.Errorf("upsample_nearest: scale must be >= 1, got %d", scale)
	}
	data, err := float32Data(t, "upsample_nearest")
	if err != nil {
		return nil, err
	}

	b, c, h, w := t.Shape[0], t.Shape[1], t.Shape[2], t.Shape[3]
	oh, ow := h*scale, w*scale
	out := make([]float32, b*c*oh*ow)
	for bi := 0; bi < b*c; bi++ {
		in := data[bi*h*w:]
		dst := out[bi*oh*ow:]
		for y := 0; y < oh; y++ {
			row := in[(y/scale)*w:]
			for x := 0; x < ow; x++ {
				dst[y*ow+x] = row[x/scale]
			}
		}
	}
	return NewTensor([]int{b, c, oh, ow}, Float32, out)
}

// ZeroUpsample scales the spatial dimensions by an integer factor using
// zero insertion: every low-res pixel lands at coordinates that are multiples
// of the factor and all other positions are zero. Equivalent to a transposed
// convolution with a per-channel kernel whose only non-zero entry is the
// corner, so DownsampleStride(ZeroUpsample(t, s), s) recovers t exactly.
func ZeroUpsample(t *Tensor, scale int) (*Tensor, error) {
	if err := checkRank4(t, "zero_upsample"); err != nil {
		return nil, err
	}
	if scale < 1 {
		return nil, fmt.Errorf("zero_upsample: scale must be >= 1, got %d", scale)
	}
	data, err := float32Data(t, "zero_upsample")
	if err != nil {
		return nil, err
	}

	b, c, h, w := t.Shape[0], t.Shape[1], t.Shape[2], t.Shape[3]
	oh, ow := h*scale, w*scale
	out := make([]float32, b*c*oh*ow)
	for bi := 0; bi < b*c; bi++ {
		in := data[bi*h*w:]
		dst := out[bi*oh*ow:]
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst[y*scale*ow+x*scale] = in[y*w+x]
			}
		}
	}
	return NewTensor([]int{b, c, oh, ow}, Float32, out)
}

// DownsampleStride keeps every s-th pixel in both spatial axes.
func DownsampleStride(t *Tensor, scale int) (*Tensor, error) {
	if err := checkRank4(t, "downsample_stride"); err != nil {
		return nil, err
	}
	if scale < 1 {
		return nil, fmt.Errorf("downsample_stride: scale must be >= 1, got %d", scale)
	}
	data, err := float32Data(t, "downsample_stride")
	if err != nil {
		return nil, err
	}

	b, c, h, w := t.Shape[0], t.Shape[1], t.Shape[2], t.Shape[3]
	oh, ow := h/scale, w/scale
	out := make([]float32, b*c*oh*ow)
	for bi := 0; bi < b*c; bi++ {
		in := data[bi*h*w:]
		dst := out[bi*oh*ow:]
		for y := 0; y < oh; y++ {
			for x := 0; x < ow; x++ {
				dst[y*ow+x] = in[y*scale*w+x*scale]
			}
		}
	}
	return NewTensor([]int{b, c, oh, ow}, Float32, out)
}

// Gram computes per-sample Gram matrices of a [B, C, H, W] feature tensor:
// G[b] = F[b] F[b]^T / (C*H*W) with F[b] the [C, H*W] feature matrix.
func Gram(t *Tensor) (*Tensor, error) {
	if err := checkRank4(t, "gram"); err != nil {
		return nil, err
	}
	data, err := float32Data(t, "gram")
	if err != nil {
		return nil, err
	}

	b, c, h, w := t.Shape[0], t.Shape[1], t.Shape[2], t.Shape[3]
	hw := h * w
	norm := float32(c * hw)
	out := make([]float32, b*c*c)
	for bi := 0; bi < b; bi++ {
		feat := data[bi*c*hw:]
		g := out[bi*c*c:]
		for i := 0; i < c; i++ {
			fi := feat[i*hw : (i+1)*hw]
			for j := i; j < c; j++ {
				fj := feat[j*hw : (j+1)*hw]
				var dot float32
				for k := 0; k < hw; k++ {
					dot += fi[k] * fj[k]
				}
				dot /= norm
				g[i*c+j] = dot
				g[j*c+i] = dot
			}
		}
	}
	return NewTensor([]int{b, c, c}, Float32, out)
}

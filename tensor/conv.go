package tensor

import (
	"fmt"
)

// Conv2d computes a 2D cross-correlation of a [B, inC, H, W] input with a
// [outC, inC, kH, kW] weight tensor. bias may be nil or a [outC] tensor.
func Conv2d(input, weight, bias *Tensor, stride, padding int) (*Tensor, error) {
	if err := checkRank4(input, "conv2d"); err != nil {
		return nil, err
	}
	if err := checkRank4(weight, "conv2d weight"); err != nil {
		return nil, err
	}
	if stride < 1 {
		return nil, fmt.Errorf("conv2d: stride must be >= 1, got %d", stride)
	}
	if padding < 0 {
		return nil, fmt.Errorf("conv2d: padding must be >= 0, got %d", padding)
	}
	if input.Shape[1] != weight.Shape[1] {
		return nil, fmt.Errorf("conv2d: input has %d channels but weight expects %d", input.Shape[1], weight.Shape[1])
	}

	in, err := float32Data(input, "conv2d")
	if err != nil {
		return nil, err
	}
	w, err := float32Data(weight, "conv2d")
	if err != nil {
		return nil, err
	}
	var bData []float32
	if bias != nil {
		if len(bias.Shape) != 1 || bias.Shape[0] != weight.Shape[0] {
			return nil, fmt.Errorf("conv2d: bias shape %v does not match %d output channels", bias.Shape, weight.Shape[0])
		}
		bData, err = float32Data(bias, "conv2d")
		if err != nil {
			return nil, err
		}
	}

	batch, inC, h, wd := input.Shape[0], input.Shape[1], input.Shape[2], input.Shape[3]
	outC, kH, kW := weight.Shape[0], weight.Shape[2], weight.Shape[3]
	outH := (h+2*padding-kH)/stride + 1
	outW := (wd+2*padding-kW)/stride + 1
	if outH < 1 || outW < 1 {
		return nil, fmt.Errorf("conv2d: kernel %dx%d with stride %d does not fit %dx%d input", kH, kW, stride, h, wd)
	}

	out := make([]float32, batch*outC*outH*outW)
	for b := 0; b < batch; b++ {
		for oc := 0; oc < outC; oc++ {
			dst := out[(b*outC+oc)*outH*outW:]
			for oh := 0; oh < outH; oh++ {
				for ow := 0; ow < outW; ow++ {
					var acc float32
					if bData != nil {
						acc = bData[oc]
					}
					for ic := 0; ic < inC; ic++ {
						src := in[(b*inC+ic)*h*wd:]
						ker := w[((oc*inC+ic)*kH)*kW:]
						for kh := 0; kh < kH; kh++ {
							ih := oh*stride - padding + kh
							if ih < 0 || ih >= h {
								continue
							}
							for kw := 0; kw < kW; kw++ {
								iw := ow*stride - padding + kw
								if iw < 0 || iw >= wd {
									continue
								}
								acc += src[ih*wd+iw] * ker[kh*kW+kw]
							}
						}
					}
					dst[oh*outW+ow] = acc
				}
			}
		}
	}
	return NewTensor([]int{batch, outC, outH, outW}, Float32, out)
}

// conv2dBackward computes gradients of the convolution with respect to its
// input, weight and bias. weightData is passed explicitly so the caller can
// supply the values that were current at forward time.
func conv2dBackward(gradOut, input *Tensor, weightShape []int, weightData []float32, hasBias bool, stride, padding int) (gradIn, gradW, gradB *Tensor) {
	g := gradOut.Data.([]float32)
	in := input.Data.([]float32)

	batch, inC, h, wd := input.Shape[0], input.Shape[1], input.Shape[2], input.Shape[3]
	outC, kH, kW := weightShape[0], weightShape[2], weightShape[3]
	outH, outW := gradOut.Shape[2], gradOut.Shape[3]

	gin := make([]float32, batch*inC*h*wd)
	gw := make([]float32, outC*inC*kH*kW)
	var gb []float32
	if hasBias {
		gb = make([]float32, outC)
	}

	for b := 0; b < batch; b++ {
		for oc := 0; oc < outC; oc++ {
			gOut := g[(b*outC+oc)*outH*outW:]
			for oh := 0; oh < outH; oh++ {
				for ow := 0; ow < outW; ow++ {
					gv := gOut[oh*outW+ow]
					if gb != nil {
						gb[oc] += gv
					}
					for ic := 0; ic < inC; ic++ {
						src := in[(b*inC+ic)*h*wd:]
						dst := gin[(b*inC+ic)*h*wd:]
						ker := weightData[((oc*inC+ic)*kH)*kW:]
						gker := gw[((oc*inC+ic)*kH)*kW:]
						for kh := 0; kh < kH; kh++ {
							ih := oh*stride - padding + kh
							if ih < 0 || ih >= h {
								continue
							}
							for kw := 0; kw < kW; kw++ {
								iw := ow*stride - padding + kw
								if iw < 0 || iw >= wd {
									continue
								}
								dst[ih*wd+iw] += gv * ker[kh*kW+kw]
								gker[kh*kW+kw] += gv * src[ih*wd+iw]
							}
						}
					}
				}
			}
		}
	}

	gradIn, _ = NewTensor(input.Shape, Float32, gin)
	gradW, _ = NewTensor(weightShape, Float32, gw)
	if hasBias {
		gradB, _ = NewTensor([]int{outC}, Float32, gb)
	}
	return gradIn, gradW, gradB
}

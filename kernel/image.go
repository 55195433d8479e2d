package kernel

// DepthImage is a raw depth frame, H*W float32 samples in row-major order
// (fastest axis x), in whatever raw units depth_scale converts to meters.
type DepthImage struct {
	W, H int32
	Data []float32
}

// At returns the raw depth sample at pixel (x,y). Callers must bounds-check
// first; this has no safety net, matching the hot-loop-no-branch style of
// the kernel's per-pixel indexers.
func (d DepthImage) At(x, y int32) float32 {
	return d.Data[y*d.W+x]
}

// ColorImage is an optional RGB frame paired with a DepthImage, channels in
// [0,255], one plane per channel.
type ColorImage struct {
	W, H    int32
	R, G, B []float32
}

func (c ColorImage) At(x, y int32) (r, g, b float32) {
	i := y*c.W + x
	return c.R[i], c.G[i], c.B[i]
}

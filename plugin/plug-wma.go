package plugin

/*
	WeightedMA

	Returns a weighted moving average over the sample window,
	weight increasing linearly with recency, so the oldest
	sample contributes the least.

	~~~ Plugin Reference Implementation ~~~
*/

// WMAWindow is the sample capacity the filter expects.
const WMAWindow = 3

type WeightedMAPlugin struct{}

// Smooth is the main wrapper for the interface.
// An empty window returns 0; a single sample passes through.
func (p *WeightedMAPlugin) Smooth(window []float64) float64 {
	if len(window) == 0 {
		return 0
	}

	var sum, weights float64
	for i, v := range window {
		w := float64(i + 1) // oldest gets weight 1
		sum += v * w
		weights += w
	}
	return sum / weights
}

func (p *WeightedMAPlugin) WindowReq() int { return WMAWindow }
func (p *WeightedMAPlugin) Type() string   { return "weighted_ma" }

// PassthroughPlugin disables smoothing: the newest raw sample wins.
// The performance monitor recommends this under latency pressure.
type PassthroughPlugin struct{}

func (p *PassthroughPlugin) Smooth(window []float64) float64 {
	if len(window) == 0 {
		return 0
	}
	return window[len(window)-1]
}

func (p *PassthroughPlugin) WindowReq() int { return 1 }
func (p *PassthroughPlugin) Type() string   { return "passthrough" }

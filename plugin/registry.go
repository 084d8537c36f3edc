package plugin

import "fmt"

// Smoothers is a global map of AngleSmoother plugins.
var Smoothers = map[string]func() AngleSmoother{
	"weighted_ma": func() AngleSmoother {
		return &WeightedMAPlugin{}
	},
	"passthrough": func() AngleSmoother {
		return &PassthroughPlugin{}
	},
}

func SmootherLookup(name string) (AngleSmoother, error) {
	factory, ok := Smoothers[name]
	if !ok {
		return nil, fmt.Errorf("unknown smoother: %s", name)
	}
	return factory(), nil
}

// Decoders is a global map of FrameDecoder plugins.
var Decoders = map[string]func() FrameDecoder{
	"json_frame": func() FrameDecoder {
		return NewJSONFrameDecoder()
	},
}

func DecoderLookup(name string) (FrameDecoder, error) {
	factory, ok := Decoders[name]
	if !ok {
		return nil, fmt.Errorf("unknown decoder: %s", name)
	}
	return factory(), nil
}

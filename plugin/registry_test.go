package plugin_test

import (
	"testing"

	Fp "github.com/maroda/formsense/plugin"
)

func TestSmootherLookup(t *testing.T) {
	t.Run("Returns known smoother", func(t *testing.T) {
		known := "weighted_ma"
		got, err := Fp.SmootherLookup(known)
		want := known
		assertError(t, err, nil)
		assertStringContains(t, got.Type(), want)
	})

	t.Run("Returns error if smoothers don't exist", func(t *testing.T) {
		unknown := "kalman"
		_, err := Fp.SmootherLookup(unknown)
		assertGotError(t, err)
	})
}

func TestDecoderLookup(t *testing.T) {
	t.Run("Returns known decoder", func(t *testing.T) {
		known := "json_frame"
		got, err := Fp.DecoderLookup(known)
		want := known
		assertError(t, err, nil)
		assertStringContains(t, got.Type(), want)
	})

	t.Run("Returns error if decoders don't exist", func(t *testing.T) {
		unknown := "craquemattic"
		_, err := Fp.DecoderLookup(unknown)
		assertGotError(t, err)
	})
}

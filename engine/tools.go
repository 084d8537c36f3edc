package formsense

import (
	"log/slog"
	"math"
	"os"
	"strconv"
)

// FillEnvVar returns the value of a runtime Environment Variable
func FillEnvVar(ev string) string {
	// If the EnvVar doesn't exist return a default string
	value := os.Getenv(ev)
	if value == "" {
		value = "ENOENT"
	}
	return value
}

// FillEnvVarInt returns the integer value of a runtime Environment
// Variable, or the given default when unset or unparseable.
func FillEnvVarInt(ev string, def int) int {
	value := os.Getenv(ev)
	if value == "" {
		return def
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		slog.Error("Could not parse env var as int, using default",
			slog.String("var", ev), slog.Any("Error", err))
		return def
	}
	return i
}

// FloatPrecise rounds a float to /p/ decimal places
func FloatPrecise(f float64, p int) float64 {
	scale := math.Pow(10, float64(p))
	return math.Round(f*scale) / scale
}

// Clamp01 bounds a score to [0,1]
func Clamp01(f float64) float64 {
	return math.Max(0, math.Min(1, f))
}

package afe

import "math"

const (
	echoThreshold   = 0.55
	envelopeDecim   = 8
	noiseGateRMS    = 0.003
	agcTargetRMS    = 0.1
	agcMaxGain      = 8.0
	agcMinInputRMS  = 0.001
	agcSmoothFactor = 0.2
)

// echoSuppressor mutes microphone frames that correlate with what the
// speaker just played.
type echoSuppressor struct {
	threshold float64
}

func newEchoSuppressor() *echoSuppressor {
	return &echoSuppressor{threshold: echoThreshold}
}

// isEcho compares a mic frame against the reference samples read for it
func (es *echoSuppressor) isEcho(mic, ref []int16) bool {
	if len(mic) == 0 || len(ref) == 0 {
		return false
	}
	in := toFloat(mic)
	rf := toFloat(ref)

	if correlation(in, rf) > es.threshold {
		return true
	}
	// envelope correlation catches sibilants that the room phase-shifts
	return envelopeCorrelation(in, rf, envelopeDecim) > es.threshold+0.05
}

// suppress zeroes frame when it is echo and reports whether it did
func (es *echoSuppressor) suppress(frame, ref []int16) bool {
	if !es.isEcho(frame, ref) {
		return false
	}
	for i := range frame {
		frame[i] = 0
	}
	return true
}

// correlation is the normalised cross-correlation of the overlapping
// prefix, clamped to [0, 1]
func correlation(in, ref []float64) float64 {
	n := len(in)
	if n > len(ref) {
		n = len(ref)
	}
	if n == 0 {
		return 0
	}
	inE := energy(in[:n])
	refE := energy(ref[:n])
	if inE == 0 || refE == 0 {
		return 0
	}
	dot := 0.0
	for i := 0; i < n; i++ {
		dot += in[i] * ref[i]
	}
	c := dot / math.Sqrt(inE*refE)
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func envelopeCorrelation(in, ref []float64, decimation int) float64 {
	inEnv := envelope(in, decimation)
	refEnv := envelope(ref, decimation)
	n := len(inEnv)
	if n > len(refEnv) {
		n = len(refEnv)
	}
	if n < 2 {
		return 0
	}
	inEnv, refEnv = inEnv[:n], refEnv[:n]

	inMean, refMean := mean(inEnv), mean(refEnv)
	dot, inVar, refVar := 0.0, 0.0, 0.0
	for i := 0; i < n; i++ {
		a := inEnv[i] - inMean
		b := refEnv[i] - refMean
		dot += a * b
		inVar += a * a
		refVar += b * b
	}
	if inVar <= 0 || refVar <= 0 {
		return 0
	}
	return dot / math.Sqrt(inVar*refVar)
}

func envelope(samples []float64, decimation int) []float64 {
	env := make([]float64, len(samples)/decimation)
	for i := range env {
		sum := 0.0
		for j := 0; j < decimation; j++ {
			sum += math.Abs(samples[i*decimation+j])
		}
		env[i] = sum
	}
	return env
}

// noiseGate silences frames below the noise floor
func noiseGate(frame []int16) bool {
	if frameRMS(frame) >= noiseGateRMS {
		return false
	}
	for i := range frame {
		frame[i] = 0
	}
	return true
}

// agc moves the frame level toward a target RMS with a smoothed gain
type agc struct {
	gain float64
}

func newAGC() *agc {
	return &agc{gain: 1.0}
}

func (a *agc) apply(frame []int16) {
	rms := frameRMS(frame)
	if rms < agcMinInputRMS {
		return
	}
	want := agcTargetRMS / rms
	if want > agcMaxGain {
		want = agcMaxGain
	}
	a.gain += (want - a.gain) * agcSmoothFactor
	if a.gain == 1.0 {
		return
	}
	for i, s := range frame {
		v := float64(s) * a.gain
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		frame[i] = int16(v)
	}
}

func toFloat(samples []int16) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s) / 32768.0
	}
	return out
}

func energy(samples []float64) float64 {
	e := 0.0
	for _, s := range samples {
		e += s * s
	}
	return e
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

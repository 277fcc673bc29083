package model

import (
	"fmt"
	"math"
)

// Prediction is the raw outcome of one forward pass.
type Prediction struct {
	Label         string
	Index         int
	Probabilities []float32
}

// NewPrediction maps a model output onto the label vocabulary. When logits is
// set the output is passed through softmax first.
func NewPrediction(classes []string, output []float32, logits bool) (*Prediction, error) {
	if len(output) != len(classes) {
		return nil, fmt.Errorf("%w: got %d outputs for %d classes", ErrClassMismatch, len(output), len(classes))
	}

	probs := make([]float32, len(output))
	if logits {
		probs = Softmax(output)
	} else {
		copy(probs, output)
	}

	idx := Argmax(probs)
	return &Prediction{
		Label:         classes[idx],
		Index:         idx,
		Probabilities: probs,
	}, nil
}

// Confidence is the predicted class probability as a percentage rounded to
// two decimals.
func (p *Prediction) Confidence() float64 {
	return RoundConfidence(p.Probabilities[p.Index])
}

// Result is the JSON shape of the prediction.
func (p *Prediction) Result() ClassificationResult {
	return ClassificationResult{
		Class:      p.Label,
		Confidence: p.Confidence(),
	}
}

// RoundConfidence scales prob to [0,100] and rounds it to two decimals.
func RoundConfidence(prob float32) float64 {
	pct := math.Round(float64(prob)*100*100) / 100
	switch {
	case math.IsNaN(pct), pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}

// Argmax returns the index of the largest value, preferring the first on ties.
// NaN values never win.
func Argmax(values []float32) int {
	best := 0
	for i, v := range values {
		if isNaN(values[best]) || v > values[best] {
			best = i
		}
	}
	return best
}

// Softmax returns a numerically stable softmax of logits.
func Softmax(logits []float32) []float32 {
	out := make([]float32, len(logits))
	if len(logits) == 0 {
		return out
	}

	top := logits[Argmax(logits)]
	var sum float64
	for i, v := range logits {
		e := math.Exp(float64(v - top))
		out[i] = float32(e)
		sum += e
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}

func isNaN(f float32) bool {
	return f != f
}

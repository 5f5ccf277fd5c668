package textrec

import "math"

// Blank positions supported by exported CTC heads.
const (
	BlankFirst = "first"
	BlankLast  = "last"
)

// Decoded is a greedy CTC decoding of one sequence.
type Decoded struct {
	Indices []int     // collapsed class indices, blanks removed
	Probs   []float64 // probability of each kept index
}

// argmax returns the index of the largest value.
func argmax(v []float32) int {
	idx := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[idx] {
			idx = i
		}
	}
	return idx
}

// probOf returns the softmax probability of v[idx]. Values that already sum to
// one within [0,1] are taken as probabilities.
func probOf(v []float32, idx int) float64 {
	var sum float64
	lo, hi := v[0], v[0]
	for _, x := range v {
		sum += float64(x)
		lo = min(lo, x)
		hi = max(hi, x)
	}
	if sum > 0.99 && sum < 1.01 && lo >= 0 && hi <= 1 {
		return float64(v[idx])
	}
	var denom float64
	for _, x := range v {
		denom += math.Exp(float64(x - hi))
	}
	if denom == 0 {
		return 0
	}
	return math.Exp(float64(v[idx]-hi)) / denom
}

// Collapse drops blanks and merges consecutive repeats.
func Collapse(indices []int, probs []float64, blank int) ([]int, []float64) {
	outIdx := make([]int, 0, len(indices))
	outProb := make([]float64, 0, len(indices))
	prev := -1
	for i, idx := range indices {
		if idx == blank {
			prev = idx
			continue
		}
		if idx == prev {
			continue
		}
		outIdx = append(outIdx, idx)
		if i < len(probs) {
			outProb = append(outProb, probs[i])
		} else {
			outProb = append(outProb, 0)
		}
		prev = idx
	}
	return outIdx, outProb
}

// DecodeGreedy decodes a [N, T, C] logit or probability tensor.
func DecodeGreedy(data []float32, shape []int64, blank int) []Decoded {
	if len(shape) != 3 {
		return nil
	}
	n, steps, classes := int(shape[0]), int(shape[1]), int(shape[2])
	if n <= 0 || steps <= 0 || classes <= 0 || len(data) < n*steps*classes {
		return nil
	}
	out := make([]Decoded, n)
	for b := range n {
		indices := make([]int, steps)
		probs := make([]float64, steps)
		for t := range steps {
			off := (b*steps + t) * classes
			step := data[off : off+classes]
			indices[t] = argmax(step)
			probs[t] = probOf(step, indices[t])
		}
		idx, p := Collapse(indices, probs, blank)
		out[b] = Decoded{Indices: idx, Probs: p}
	}
	return out
}

// Confidence is the mean of the kept character probabilities, 0 when empty.
func Confidence(probs []float64) float64 {
	if len(probs) == 0 {
		return 0
	}
	var s float64
	for _, p := range probs {
		s += p
	}
	return s / float64(len(probs))
}

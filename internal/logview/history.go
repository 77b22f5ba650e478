package logview

import "strings"

// Ring is a fixed-capacity sample window feeding the monitor graphs.
type Ring struct {
	samples []float64
	next    int
	full    bool
}

func NewRing(n int) *Ring {
	if n < 1 {
		n = 1
	}
	return &Ring{samples: make([]float64, n)}
}

func (r *Ring) Push(v float64) {
	r.samples[r.next] = v
	r.next++
	if r.next == len(r.samples) {
		r.next = 0
		r.full = true
	}
}

func (r *Ring) Len() int {
	if r.full {
		return len(r.samples)
	}
	return r.next
}

// Values returns the window contents, oldest first.
func (r *Ring) Values() []float64 {
	if !r.full {
		return append([]float64(nil), r.samples[:r.next]...)
	}
	out := make([]float64, 0, len(r.samples))
	out = append(out, r.samples[r.next:]...)
	out = append(out, r.samples[:r.next]...)
	return out
}

func (r *Ring) Last() float64 {
	if r.Len() == 0 {
		return 0
	}
	i := r.next - 1
	if i < 0 {
		i = len(r.samples) - 1
	}
	return r.samples[i]
}

// MinAvgMax summarizes the window. An empty ring reports zeros.
func (r *Ring) MinAvgMax() (min, avg, max float64) {
	vals := r.Values()
	if len(vals) == 0 {
		return 0, 0, 0
	}
	min, max = vals[0], vals[0]
	sum := 0.0
	for _, v := range vals {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	return min, sum / float64(len(vals)), max
}

// Delta reports how much the newest sample grew over the oldest of the
// last n, the measure behind the error-rate alert.
func (r *Ring) Delta(n int) float64 {
	vals := r.Values()
	if len(vals) < 2 {
		return 0
	}
	if len(vals) > n {
		vals = vals[len(vals)-n:]
	}
	return vals[len(vals)-1] - vals[0]
}

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders the last width samples as a block-character bar, the
// whole window scaled between its own minimum and maximum.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	var b strings.Builder
	for _, v := range values {
		idx := 0
		if max > min {
			idx = int((v - min) / (max - min) * float64(len(sparkRunes)-1))
		}
		b.WriteRune(sparkRunes[idx])
	}
	return b.String()
}

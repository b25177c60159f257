package graph

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

// cosine returns the cosine similarity in [-1,1]. Mismatched or zero vectors
// score -1 so they never clear a threshold.
func cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return -1
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return -1
	}
	s := floats.Dot(a, b) / (na * nb)
	return math.Max(-1, math.Min(1, s))
}

// bestCosine is the max similarity of v against any query.
func bestCosine(v []float64, queries [][]float64) float64 {
	best := -1.0
	for _, q := range queries {
		if s := cosine(v, q); s > best {
			best = s
		}
	}
	return best
}

// nativeToCosine maps Neo4j's vector.similarity.cosine, which is normalized to
// [0,1] as (1+cos)/2, back to plain cosine.
func nativeToCosine(score float64) float64 { return 2*score - 1 }

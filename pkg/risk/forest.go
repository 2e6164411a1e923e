package risk

import (
	"math"
	"math/rand/v2"
)

// forest is a bagged ensemble of gini trees.
type forest struct {
	trees      []*tree
	importance []float64
}

func fitForest(x [][]float64, y []int, trees int, seed uint64) *forest {
	n, d := len(x), len(x[0])
	maxFeatures := max(1, int(math.Sqrt(float64(d))))

	rng := rand.New(rand.NewPCG(seed, seed))
	f := &forest{
		trees:      make([]*tree, 0, trees),
		importance: make([]float64, d),
	}

	splitting := 0
	for range trees {
		// each tree gets its own stream so its shape only depends on the seed and its position
		treeRng := rand.New(rand.NewPCG(rng.Uint64(), rng.Uint64()))

		w := make([]float64, n)
		for range n {
			w[treeRng.IntN(n)]++
		}

		t := growTree(x, y, w, maxFeatures, treeRng)
		f.trees = append(f.trees, t)

		if t.splits() > 0 {
			splitting++
			for i, v := range t.importance {
				f.importance[i] += v
			}
		}
	}

	var sum float64
	for i := range f.importance {
		if splitting > 0 {
			f.importance[i] /= float64(splitting)
		}
		sum += f.importance[i]
	}
	if sum > 0 {
		for i := range f.importance {
			f.importance[i] /= sum
		}
	}

	return f
}

// churnProbability averages the leaf probabilities of every tree.
func (f *forest) churnProbability(x []float64) float64 {
	var sum float64
	for _, t := range f.trees {
		sum += t.predict(x)
	}
	return sum / float64(len(f.trees))
}

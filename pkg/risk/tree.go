package risk

import (
	"math/rand/v2"
	"sort"
)

const (
	leafFeature     = -1
	minSamplesSplit = 2

	// values closer than this are treated as equal when placing a threshold
	featureThreshold = 1e-7
	impurityEpsilon  = 1e-7
)

// node is a flattened decision tree node. Leaves have feature == leafFeature.
type node struct {
	feature   int
	threshold float64
	left      int
	right     int
	churnProb float64
}

type tree struct {
	nodes      []node
	importance []float64
}

// predict returns the churn probability of the leaf x falls into.
func (t *tree) predict(x []float64) float64 {
	i := 0
	for t.nodes[i].feature != leafFeature {
		n := t.nodes[i]
		if x[n.feature] <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
	return t.nodes[i].churnProb
}

func (t *tree) splits() int {
	n := 0
	for _, nd := range t.nodes {
		if nd.feature != leafFeature {
			n++
		}
	}
	return n
}

// treeBuilder grows one gini tree over weighted samples.
type treeBuilder struct {
	x           [][]float64
	y           []int
	w           []float64
	maxFeatures int
	rng         *rand.Rand
	t           *tree
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

func growTree(x [][]float64, y []int, w []float64, maxFeatures int, rng *rand.Rand) *tree {
	b := &treeBuilder{
		x:           x,
		y:           y,
		w:           w,
		maxFeatures: maxFeatures,
		rng:         rng,
		t:           &tree{importance: make([]float64, len(x[0]))},
	}

	idx := make([]int, 0, len(x))
	var total float64
	for i, wi := range w {
		if wi > 0 {
			idx = append(idx, i)
			total += wi
		}
	}

	b.grow(idx)

	// normalise the impurity decrease by the root weight, then to unit sum
	var sum float64
	for i := range b.t.importance {
		b.t.importance[i] /= total
		sum += b.t.importance[i]
	}
	if sum > 0 {
		for i := range b.t.importance {
			b.t.importance[i] /= sum
		}
	}

	return b.t
}

// grow adds the subtree for idx and returns its node index.
func (b *treeBuilder) grow(idx []int) int {
	pos, neg := b.classWeights(idx)
	total := pos + neg
	impurity := gini(pos, neg)

	id := len(b.t.nodes)
	b.t.nodes = append(b.t.nodes, node{feature: leafFeature, churnProb: pos / total})

	if len(idx) < minSamplesSplit || impurity <= impurityEpsilon {
		return id
	}

	best, ok := b.bestSplit(idx, pos, neg, impurity)
	if !ok {
		return id
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][best.feature] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	b.t.importance[best.feature] += best.gain

	l := b.grow(left)
	r := b.grow(right)

	b.t.nodes[id].feature = best.feature
	b.t.nodes[id].threshold = best.threshold
	b.t.nodes[id].left = l
	b.t.nodes[id].right = r

	return id
}

// bestSplit draws candidate features in random order. Constant features are
// skipped without counting toward maxFeatures, and the search continues past
// maxFeatures until a valid split exists.
func (b *treeBuilder) bestSplit(idx []int, pos, neg, impurity float64) (split, bool) {
	var best split
	total := pos + neg
	found := false

	order := b.rng.Perm(len(b.x[0]))
	sorted := make([]int, len(idx))

	var visited int
	for _, f := range order {
		if visited >= b.maxFeatures && found {
			break
		}

		copy(sorted, idx)
		sort.SliceStable(sorted, func(i, j int) bool {
			return b.x[sorted[i]][f] < b.x[sorted[j]][f]
		})

		if b.x[sorted[len(sorted)-1]][f] <= b.x[sorted[0]][f]+featureThreshold {
			continue
		}
		visited++

		var lPos, lNeg float64
		for k := 0; k < len(sorted)-1; k++ {
			i := sorted[k]
			if b.y[i] == 1 {
				lPos += b.w[i]
			} else {
				lNeg += b.w[i]
			}

			cur, next := b.x[i][f], b.x[sorted[k+1]][f]
			if next <= cur+featureThreshold {
				continue
			}

			rPos, rNeg := pos-lPos, neg-lNeg
			lw, rw := lPos+lNeg, rPos+rNeg
			gain := total*impurity - lw*gini(lPos, lNeg) - rw*gini(rPos, rNeg)

			if !found || gain > best.gain {
				thr := cur/2 + next/2
				if thr >= next {
					thr = cur
				}
				best = split{feature: f, threshold: thr, gain: gain}
				found = true
			}
		}
	}

	return best, found
}

func (b *treeBuilder) classWeights(idx []int) (pos, neg float64) {
	for _, i := range idx {
		if b.y[i] == 1 {
			pos += b.w[i]
		} else {
			neg += b.w[i]
		}
	}
	return pos, neg
}

func gini(pos, neg float64) float64 {
	total := pos + neg
	if total == 0 {
		return 0
	}
	p, q := pos/total, neg/total
	return 1 - p*p - q*q
}

package pricing

import (
	"math/rand"
	"sort"

	"mobile-price-api/models"

	"gonum.org/v1/gonum/stat"
)

const (
	maxTreeDepth = 12
	minLeafSize  = 2
)

// Forest is a bootstrap-aggregated set of regression trees, fit once per
// request and discarded with it. The bootstrap RNG is seeded from config so
// identical training data always yields the identical prediction.
type Forest struct {
	trees []*treeNode
}

type treeNode struct {
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
	value     float64
	leaf      bool
}

// TrainForest drops unpriced rows, then grows the configured number of trees
// on bootstrap resamples of what remains.
func TrainForest(rows []FeatureRow, prices []*float64, trees int, seed int64) (*Forest, error) {
	var samples [][]float64
	var labels []float64
	for i, row := range rows {
		if prices[i] == nil {
			continue
		}
		samples = append(samples, row.vector())
		labels = append(labels, *prices[i])
	}
	if len(samples) == 0 {
		return nil, &models.ModelFitError{Reason: "no priced rows in training data"}
	}
	if len(samples[0]) == 0 {
		return nil, &models.ModelFitError{Reason: "empty feature matrix"}
	}

	rng := rand.New(rand.NewSource(seed))
	forest := &Forest{trees: make([]*treeNode, 0, trees)}
	for t := 0; t < trees; t++ {
		idx := make([]int, len(samples))
		for i := range idx {
			idx[i] = rng.Intn(len(samples))
		}
		forest.trees = append(forest.trees, growTree(samples, labels, idx, 0))
	}
	return forest, nil
}

// Predict scores one feature row as the mean of the per-tree estimates.
func (f *Forest) Predict(row FeatureRow) float64 {
	x := row.vector()
	estimates := make([]float64, len(f.trees))
	for i, tree := range f.trees {
		estimates[i] = tree.predict(x)
	}
	return stat.Mean(estimates, nil)
}

func (n *treeNode) predict(x []float64) float64 {
	for !n.leaf {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

func growTree(samples [][]float64, labels []float64, idx []int, depth int) *treeNode {
	values := make([]float64, len(idx))
	for i, j := range idx {
		values[i] = labels[j]
	}
	mean := stat.Mean(values, nil)

	if depth >= maxTreeDepth || len(idx) < 2*minLeafSize || stat.Variance(values, nil) == 0 {
		return &treeNode{leaf: true, value: mean}
	}

	feature, threshold, ok := bestSplit(samples, labels, idx)
	if !ok {
		return &treeNode{leaf: true, value: mean}
	}

	var left, right []int
	for _, j := range idx {
		if samples[j][feature] <= threshold {
			left = append(left, j)
		} else {
			right = append(right, j)
		}
	}
	if len(left) < minLeafSize || len(right) < minLeafSize {
		return &treeNode{leaf: true, value: mean}
	}

	return &treeNode{
		feature:   feature,
		threshold: threshold,
		left:      growTree(samples, labels, left, depth+1),
		right:     growTree(samples, labels, right, depth+1),
	}
}

// bestSplit finds the (feature, threshold) pair minimising the weighted sum
// of squared errors across the two children. Candidate thresholds are the
// midpoints between consecutive distinct feature values.
func bestSplit(samples [][]float64, labels []float64, idx []int) (int, float64, bool) {
	bestFeature := -1
	bestThreshold := 0.0
	bestScore := 0.0
	found := false

	features := len(samples[idx[0]])
	for f := 0; f < features; f++ {
		vals := make([]float64, 0, len(idx))
		for _, j := range idx {
			vals = append(vals, samples[j][f])
		}
		sort.Float64s(vals)

		for i := 1; i < len(vals); i++ {
			if vals[i] == vals[i-1] {
				continue
			}
			threshold := (vals[i] + vals[i-1]) / 2

			var leftVals, rightVals []float64
			for _, j := range idx {
				if samples[j][f] <= threshold {
					leftVals = append(leftVals, labels[j])
				} else {
					rightVals = append(rightVals, labels[j])
				}
			}
			if len(leftVals) < minLeafSize || len(rightVals) < minLeafSize {
				continue
			}

			score := sumSquaredError(leftVals) + sumSquaredError(rightVals)
			if !found || score < bestScore {
				bestFeature = f
				bestThreshold = threshold
				bestScore = score
				found = true
			}
		}
	}

	return bestFeature, bestThreshold, found
}

func sumSquaredError(values []float64) float64 {
	mean := stat.Mean(values, nil)
	sse := 0.0
	for _, v := range values {
		d := v - mean
		sse += d * d
	}
	return sse
}

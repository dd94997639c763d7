package nnue

import (
	"encoding/binary"

	"lukechampine.com/frand"
)

// Network holds the quantized weights. It is read-only after loading and
// shared by every search thread.
type Network struct {
	// FeatureWeights is InputSize rows of Hidden columns.
	FeatureWeights []int16
	FeatureBias    [Hidden]int16

	// OutputWeights rows 0..Hidden-1 read the side to move's half.
	OutputWeights [2 * Hidden][OutputBuckets]int16
	OutputBias    [OutputBuckets]int16
}

// NewNetwork creates a network with zero weights.
func NewNetwork() *Network {
	return &Network{FeatureWeights: make([]int16, InputSize*Hidden)}
}

func (n *Network) row(feature int) []int16 {
	return n.FeatureWeights[feature*Hidden : (feature+1)*Hidden]
}

func sqrClippedReLU(x int16) int64 {
	v := int64(x)
	if v < 0 {
		return 0
	}
	if v > QA {
		v = QA
	}
	return v * v
}

// Forward computes the output for the two hidden vectors, side to move first.
func (n *Network) Forward(us, them *[Hidden]int16, bucket int) int {
	var sum int64
	for i := 0; i < Hidden; i++ {
		sum += sqrClippedReLU(us[i]) * int64(n.OutputWeights[i][bucket])
		sum += sqrClippedReLU(them[i]) * int64(n.OutputWeights[Hidden+i][bucket])
	}
	out := sum/QA + int64(n.OutputBias[bucket])
	return int(out * Scale / (QA * QB))
}

// RandomNetwork builds a deterministic network from seed, for tests and
// for running without a weight file.
func RandomNetwork(seed uint64) *Network {
	var key [32]byte
	binary.LittleEndian.PutUint64(key[:], seed)
	rng := frand.NewCustom(key[:], 1024, 12)

	n := NewNetwork()
	for i := range n.FeatureWeights {
		n.FeatureWeights[i] = int16(rng.Intn(65) - 32)
	}
	for i := range n.FeatureBias {
		n.FeatureBias[i] = int16(rng.Intn(129))
	}
	for i := range n.OutputWeights {
		for b := range n.OutputWeights[i] {
			n.OutputWeights[i][b] = int16(rng.Intn(129) - 64)
		}
	}
	for b := range n.OutputBias {
		n.OutputBias[b] = int16(rng.Intn(1025) - 512)
	}
	return n
}

package nnue

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// ParamCount is the number of int16 values in a weight file.
const ParamCount = InputSize*Hidden + Hidden + 2*Hidden*OutputBuckets + OutputBuckets

// FileSize is the exact byte length of a weight file.
const FileSize = 2 * ParamCount

// ErrSize is returned for weight files of the wrong length.
var ErrSize = errors.New("nnue: weight file size mismatch")

// Load reads a weight file from disk.
func Load(filename string) (*Network, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open weights file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat weights file: %w", err)
	}
	if info.Size() != FileSize {
		return nil, fmt.Errorf("%w: %s has %d bytes, want %d", ErrSize, filename, info.Size(), FileSize)
	}
	return Read(bufio.NewReader(f))
}

// Read decodes a little-endian weight stream in file order:
// feature weights, feature biases, output weights, output biases.
// Trailing bytes are an error.
func Read(r io.Reader) (*Network, error) {
	n := NewNetwork()
	if err := binary.Read(r, binary.LittleEndian, n.FeatureWeights); err != nil {
		return nil, sizeErr("feature weights", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &n.FeatureBias); err != nil {
		return nil, sizeErr("feature bias", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &n.OutputWeights); err != nil {
		return nil, sizeErr("output weights", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &n.OutputBias); err != nil {
		return nil, sizeErr("output bias", err)
	}

	var extra [1]byte
	if k, _ := r.Read(extra[:]); k != 0 {
		return nil, fmt.Errorf("%w: trailing data", ErrSize)
	}
	return n, nil
}

func sizeErr(section string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated %s", ErrSize, section)
	}
	return fmt.Errorf("failed to read %s: %w", section, err)
}

// Save writes the network in the format Read expects.
func (n *Network) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, n.FeatureWeights); err != nil {
		return fmt.Errorf("failed to write feature weights: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, &n.FeatureBias); err != nil {
		return fmt.Errorf("failed to write feature bias: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, &n.OutputWeights); err != nil {
		return fmt.Errorf("failed to write output weights: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, &n.OutputBias); err != nil {
		return fmt.Errorf("failed to write output bias: %w", err)
	}
	return bw.Flush()
}

// SaveFile writes the network to filename.
func (n *Network) SaveFile(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create weights file: %w", err)
	}
	if err := n.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

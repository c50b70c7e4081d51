package verify

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/BadgerOps/sbomcheck/internal/manifest"
	"github.com/BadgerOps/sbomcheck/internal/spdx"
)

// ErrMalformedChecksum is returned for declared digests that are not valid
// even-length hex.
var ErrMalformedChecksum = errors.New("malformed checksum")

func decodeChecksum(fileID string, c spdx.Checksum) ([]byte, error) {
	if len(c.Value)%2 != 0 {
		return nil, fmt.Errorf("%w: %s digest of %s has odd length %d", ErrMalformedChecksum, c.Algorithm, fileID, len(c.Value))
	}
	b, err := hex.DecodeString(c.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s digest of %s: %v", ErrMalformedChecksum, c.Algorithm, fileID, err)
	}
	return b, nil
}

// compareAssociation checks every declared checksum of a against computed.
// It returns nil when all of them match.
func compareAssociation(a manifest.FileAssociation, computed map[spdx.ChecksumAlgorithm][]byte) (*HashVerificationFailure, error) {
	var mismatches []HashMismatch
	for _, c := range a.File.Checksums {
		expected, err := decodeChecksum(a.File.SPDXID, c)
		if err != nil {
			return nil, err
		}
		actual, ok := computed[c.Algorithm]
		if !ok {
			return nil, fmt.Errorf("no %s digest computed for %s", c.Algorithm, a.Path)
		}
		if !bytes.Equal(expected, actual) {
			mismatches = append(mismatches, HashMismatch{
				Algorithm: string(c.Algorithm),
				Expected:  hex.EncodeToString(expected),
				Actual:    hex.EncodeToString(actual),
			})
		}
	}
	if len(mismatches) == 0 {
		return nil, nil
	}
	return &HashVerificationFailure{Candidate: candidateFrom(a), Mismatches: mismatches}, nil
}

// distinctAlgorithms collects every algorithm declared by any association,
// in first-seen order.
func distinctAlgorithms(assocs []manifest.FileAssociation) []spdx.ChecksumAlgorithm {
	seen := make(map[spdx.ChecksumAlgorithm]bool)
	var algs []spdx.ChecksumAlgorithm
	for _, a := range assocs {
		for _, c := range a.File.Checksums {
			if !seen[c.Algorithm] {
				seen[c.Algorithm] = true
				algs = append(algs, c.Algorithm)
			}
		}
	}
	return algs
}

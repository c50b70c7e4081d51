package storage

import (
	"context"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/BadgerOps/sbomcheck/internal/spdx"
)

// SupportedAlgorithms lists the algorithms every provider can compute.
var SupportedAlgorithms = []spdx.ChecksumAlgorithm{spdx.SHA1, spdx.SHA256, spdx.SHA384, spdx.SHA512}

// canonicalAlgorithm maps an algorithm name to its upper-case SPDX spelling
// and reports whether it is supported.
func canonicalAlgorithm(alg spdx.ChecksumAlgorithm) (spdx.ChecksumAlgorithm, bool) {
	canonical := spdx.ChecksumAlgorithm(strings.ToUpper(string(alg)))
	for _, supported := range SupportedAlgorithms {
		if canonical == supported {
			return canonical, true
		}
	}
	return canonical, false
}

func newHash(alg spdx.ChecksumAlgorithm) (hash.Hash, error) {
	canonical, _ := canonicalAlgorithm(alg)
	switch canonical {
	case spdx.SHA1:
		return sha1.New(), nil
	case spdx.SHA256:
		return sha256.New(), nil
	case spdx.SHA384:
		return sha512.New384(), nil
	case spdx.SHA512:
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, alg)
	}
}

// CheckAlgorithms returns ErrUnsupportedAlgorithm for the first algorithm in
// algs no provider can compute.
func CheckAlgorithms(algs []spdx.ChecksumAlgorithm) error {
	for _, alg := range algs {
		if _, err := newHash(alg); err != nil {
			return err
		}
	}
	return nil
}

// hashReader feeds r through one hash per distinct algorithm in a single
// pass. The result is keyed by the algorithms exactly as requested.
func hashReader(ctx context.Context, r io.Reader, algs []spdx.ChecksumAlgorithm) (map[spdx.ChecksumAlgorithm][]byte, error) {
	hashes := make(map[spdx.ChecksumAlgorithm]hash.Hash, len(algs))
	writers := make([]io.Writer, 0, len(algs))
	for _, alg := range algs {
		if _, dup := hashes[alg]; dup {
			continue
		}
		h, err := newHash(alg)
		if err != nil {
			return nil, err
		}
		hashes[alg] = h
		writers = append(writers, h)
	}

	if _, err := io.Copy(io.MultiWriter(writers...), &ctxReader{ctx: ctx, r: r}); err != nil {
		return nil, err
	}

	sums := make(map[spdx.ChecksumAlgorithm][]byte, len(hashes))
	for alg, h := range hashes {
		sums[alg] = h.Sum(nil)
	}
	return sums, nil
}

// ctxReader stops a copy once ctx is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

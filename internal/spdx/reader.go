package spdx

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/BadgerOps/sbomcheck/internal/safety"
	"github.com/gowebpki/jcs"
	"github.com/kaptinlin/jsonschema"
)

// DefaultMaxManifestSize caps how much of a manifest file Read will load.
const DefaultMaxManifestSize int64 = 256 << 20

// ErrManifestUnreadable is returned when a manifest cannot be read or parsed.
var ErrManifestUnreadable = errors.New("manifest unreadable")

//go:embed schema/manifest.schema.json
var manifestSchemaJSON []byte

var (
	schemaOnce     sync.Once
	manifestSchema *jsonschema.Schema
	schemaErr      error
)

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.AssertFormat = true
		manifestSchema, schemaErr = compiler.Compile(manifestSchemaJSON)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile manifest schema: %w", schemaErr)
		}
	})
	return manifestSchema, schemaErr
}

// Read loads and parses the manifest at path. maxSize <= 0 selects
// DefaultMaxManifestSize.
func Read(path string, maxSize int64) (*Document, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxManifestSize
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrManifestUnreadable, path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	data, err := safety.ReadAllWithLimit(f, maxSize)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrManifestUnreadable, path, err)
	}
	return Parse(data)
}

// Parse validates raw JSON against the manifest schema and decodes it.
// Missing packages, files or relationships arrays decode as empty.
func Parse(data []byte) (*Document, error) {
	schema, err := loadSchema()
	if err != nil {
		return nil, err
	}

	result := schema.ValidateJSON(data)
	if !result.IsValid() {
		return nil, fmt.Errorf("%w: schema validation failed: %v", ErrManifestUnreadable, result.Errors)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parsing manifest: %v", ErrManifestUnreadable, err)
	}

	digest, err := digestJCS(data)
	if err != nil {
		return nil, fmt.Errorf("%w: canonicalizing manifest: %v", ErrManifestUnreadable, err)
	}
	doc.Digest = digest

	if doc.Packages == nil {
		doc.Packages = []Package{}
	}
	if doc.Files == nil {
		doc.Files = []File{}
	}
	if doc.Relationships == nil {
		doc.Relationships = []Relationship{}
	}
	return &doc, nil
}

// digestJCS canonicalizes JSON (RFC 8785) and returns a sha256 hex digest.
func digestJCS(input []byte) (string, error) {
	canonical, err := jcs.Transform(input)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

package spdx

import (
	"strings"

	packageurl "github.com/package-url/packageurl-go"
)

// PURL returns the first parseable purl external reference of the package.
func (p *Package) PURL() (packageurl.PackageURL, bool) {
	for _, ref := range p.ExternalRefs {
		if !strings.EqualFold(ref.ReferenceType, "purl") {
			continue
		}
		purl, err := packageurl.FromString(ref.ReferenceLocator)
		if err != nil {
			continue
		}
		return purl, true
	}
	return packageurl.PackageURL{}, false
}

// DisplayName is the package name, followed by its purl when one is declared.
func (p *Package) DisplayName() string {
	if purl, ok := p.PURL(); ok {
		return p.Name + " (" + purl.ToString() + ")"
	}
	return p.Name
}

// Package resolverfs implements spec.md §6's SDK resolver discovery
// contract: given a root directory, find resolver artifacts laid out as
// root/<Name>/<Name>.<ext>, preferring a root/<Name>/<Name>.xml manifest's
// <Path> element when one exists. Grounded on the teacher's
// internal/configfile file-parsing conventions (read, parse, return a typed
// error on any structural problem rather than a bare os/encoding error).
package resolverfs

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"regexp"

	"github.com/BurntSushi/toml"

	"github.com/buildcore/engine/internal/builderrors"
)

// Manifest is the parsed shape of a root/<Name>/<Name>.xml resolver
// manifest (spec.md §6).
type Manifest struct {
	XMLName             xml.Name `xml:"SdkResolver"`
	Path                string   `xml:"Path"`
	ResolvableSdkPattern string   `xml:"ResolvableSdkPattern"`
}

// TOMLManifest is an alternate manifest format some resolvers ship,
// equivalent in content to Manifest.
type TOMLManifest struct {
	Path                 string `toml:"path"`
	ResolvableSdkPattern string `toml:"resolvable_sdk_pattern"`
}

// Resolved is one discovered resolver artifact.
type Resolved struct {
	Name                 string
	Path                 string
	ResolvableSdkPattern *regexp.Regexp
}

// Discover finds the resolver artifact for name under root, per spec.md §6:
// prefer root/<name>/<name>.xml's <Path> element if the manifest exists,
// then root/<name>/<name>.toml, otherwise fall back to any
// root/<name>/<name>.<ext> file found directly.
func Discover(root, name string) (*Resolved, error) {
	dir := filepath.Join(root, name)

	xmlManifest := filepath.Join(dir, name+".xml")
	if _, err := os.Stat(xmlManifest); err == nil {
		return discoverFromXML(name, xmlManifest)
	}

	tomlManifest := filepath.Join(dir, name+".toml")
	if _, err := os.Stat(tomlManifest); err == nil {
		return discoverFromTOML(name, tomlManifest)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, builderrors.Wrap(builderrors.KindResolverArtifactMissing, err, "no resolver artifact for %q under %s", name, root)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if base := stripExt(e.Name()); base == name {
			return &Resolved{Name: name, Path: filepath.Join(dir, e.Name())}, nil
		}
	}
	return nil, builderrors.New(builderrors.KindResolverArtifactMissing, "no resolver artifact for %q under %s", name, root)
}

func discoverFromXML(name, manifestPath string) (*Resolved, error) {
	data, err := os.ReadFile(manifestPath) // #nosec G304 -- resolver root is operator supplied
	if err != nil {
		return nil, builderrors.Wrap(builderrors.KindResolverManifestMalformed, err, "reading manifest %s", manifestPath)
	}
	var m Manifest
	if err := xml.Unmarshal(data, &m); err != nil {
		return nil, builderrors.Wrap(builderrors.KindResolverManifestMalformed, err, "parsing manifest %s", manifestPath)
	}
	return finishManifest(name, manifestPath, m.Path, m.ResolvableSdkPattern)
}

func discoverFromTOML(name, manifestPath string) (*Resolved, error) {
	var m TOMLManifest
	if _, err := toml.DecodeFile(manifestPath, &m); err != nil {
		return nil, builderrors.Wrap(builderrors.KindResolverManifestMalformed, err, "parsing manifest %s", manifestPath)
	}
	return finishManifest(name, manifestPath, m.Path, m.ResolvableSdkPattern)
}

func finishManifest(name, manifestPath, path, pattern string) (*Resolved, error) {
	if path == "" {
		return nil, builderrors.New(builderrors.KindResolverManifestMalformed, "manifest %s has no Path element", manifestPath)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(filepath.Dir(manifestPath), path)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, builderrors.Wrap(builderrors.KindResolverManifestPathMissing, err, "manifest %s points at missing path %s", manifestPath, path)
	}
	r := &Resolved{Name: name, Path: path}
	if pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, builderrors.Wrap(builderrors.KindResolverManifestMalformed, err, "manifest %s has invalid ResolvableSdkPattern", manifestPath)
		}
		r.ResolvableSdkPattern = re
	}
	return r, nil
}

func stripExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}

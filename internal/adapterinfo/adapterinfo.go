package adapterinfo

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed plugin.yaml
var manifest []byte

// Metadata captures static identifiers for the studio binary.
type Metadata struct {
	Name        string
	BinaryName  string
	Slug        string
	Description string
	GeneratorID string
	Version     string
	Slot        string // NAP slot served over gRPC
	Transport   string
}

const (
	slotTTS       = "tts"
	transportGRPC = "grpc"
)

// Info describes the current build.
var Info = mustParse(manifest)

// SynthesisMetadata produces the standard metadata payload attached to
// emitted audio chunks.
func SynthesisMetadata(model, voiceID, source string) map[string]string {
	return map[string]string{
		"generator": Info.GeneratorID,
		"model":     model,
		"voice_id":  voiceID,
		"source":    source,
		"format":    "audio/mpeg",
	}
}

// Version returns the semantic version from the manifest.
func Version() string {
	return Info.Version
}

func mustParse(data []byte) Metadata {
	meta, err := parseManifest(data)
	if err != nil {
		panic(err)
	}
	return meta
}

// manifest layout: metadata identifies the build, spec describes how nupi
// launches and reaches the NAP surface.
type manifestDocument struct {
	Metadata struct {
		Name        string `yaml:"name"`
		Slug        string `yaml:"slug"`
		Description string `yaml:"description"`
		Version     string `yaml:"version"`
		Generator   string `yaml:"generator"`
	} `yaml:"metadata"`
	Spec struct {
		Slot       string `yaml:"slot"`
		Entrypoint struct {
			Command   string `yaml:"command"`
			Transport string `yaml:"transport"`
		} `yaml:"entrypoint"`
	} `yaml:"spec"`
}

func parseManifest(data []byte) (Metadata, error) {
	var doc manifestDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Metadata{}, fmt.Errorf("adapterinfo: decode manifest: %w", err)
	}

	md, sp := doc.Metadata, doc.Spec
	slug := strings.TrimSpace(md.Slug)
	version := strings.TrimSpace(md.Version)
	switch {
	case slug == "":
		return Metadata{}, fmt.Errorf("adapterinfo: metadata.slug missing in manifest")
	case version == "":
		return Metadata{}, fmt.Errorf("adapterinfo: metadata.version missing in manifest")
	}

	slot := firstNonEmpty(sp.Slot, slotTTS)
	if slot != slotTTS {
		return Metadata{}, fmt.Errorf("adapterinfo: spec.slot %q is not served by the studio, want %q", slot, slotTTS)
	}
	transport := firstNonEmpty(sp.Entrypoint.Transport, transportGRPC)
	if transport != transportGRPC {
		return Metadata{}, fmt.Errorf("adapterinfo: spec.entrypoint.transport %q unsupported, want %q", transport, transportGRPC)
	}

	name := firstNonEmpty(md.Name, slug)
	return Metadata{
		Name:        name,
		Slug:        slug,
		Version:     version,
		Description: firstNonEmpty(md.Description, name),
		GeneratorID: firstNonEmpty(md.Generator, slug),
		BinaryName:  firstNonEmpty(strings.TrimPrefix(strings.TrimSpace(sp.Entrypoint.Command), "./"), slug),
		Slot:        slot,
		Transport:   transport,
	}, nil
}

func firstNonEmpty(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}

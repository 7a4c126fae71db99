package sync

import (
	"bytes"
	"embed"
	"io"
	"io/fs"
	"os"
	"path"
)

//go:embed mappings
var embeddedMappingFiles embed.FS

// MappingFile is one YAML source for the property mapping configuration.
type MappingFile struct {
	Name   string
	Reader io.Reader
	Length int
}

type EmbeddedMappings struct {
	Root  string
	Files EmbeddedFS
}

type EmbeddedFS interface {
	Open(name string) (fs.File, error)
	ReadFile(name string) ([]byte, error)
}

// DefaultEmbeddedMappings returns the mapping files compiled into the binary.
func DefaultEmbeddedMappings() EmbeddedMappings {
	return EmbeddedMappings{Root: "mappings", Files: embeddedMappingFiles}
}

func (em EmbeddedMappings) MustFindRootMappingFile(filename string) (MappingFile, error) {
	var result MappingFile
	name := path.Join(em.Root, filename)
	mappings, err := em.Files.ReadFile(name)
	if err == nil {
		result.Name = name
		result.Reader = bytes.NewReader(mappings)
		result.Length = len(mappings)
	}
	return result, err
}

func (em EmbeddedMappings) MustFindDefaultsMappingFile() (MappingFile, error) {
	return em.MustFindRootMappingFile("defaults.yaml")
}

// ReadMappingFile loads a mapping override file from disk.
func ReadMappingFile(name string) (MappingFile, error) {
	var result MappingFile
	mappings, err := os.ReadFile(name)
	if err == nil {
		result.Name = name
		result.Reader = bytes.NewReader(mappings)
		result.Length = len(mappings)
	}
	return result, err
}

package sync

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/config"
)

// Config is the immutable service configuration, constructed once at
// startup and passed explicitly into the client and orchestrator.
type Config struct {
	SourceToken               string
	DestToken                 string
	ClientSecret              string
	Port                      int
	Debug                     bool
	SkipSignatureVerification bool
	FormFilter                []string
	Mapping                   Mapping
}

// TokensConfigured reports whether both portal tokens are set. Missing
// tokens degrade the sync endpoints but never prevent startup.
func (c Config) TokensConfigured() bool {
	return c.SourceToken != "" && c.DestToken != ""
}

// VerifySignatures reports whether webhook signature verification is active.
func (c Config) VerifySignatures() bool {
	return !c.SkipSignatureVerification && c.ClientSecret != ""
}

// FormAllowed reports whether a form id passes the configured allow-list.
// An empty list allows all forms.
func (c Config) FormAllowed(formID string) bool {
	if len(c.FormFilter) == 0 {
		return true
	}
	for _, id := range c.FormFilter {
		if id == formID {
			return true
		}
	}
	return false
}

// configOptions holds optional configuration for LoadConfig.
type configOptions struct {
	lookupEnv   func(string) (string, bool)
	mappingPath string
}

// ConfigOption is a functional option for configuring LoadConfig.
type ConfigOption func(*configOptions)

// ConfigWithMappingPath adds a mapping YAML file that overrides the
// embedded defaults.
func ConfigWithMappingPath(path string) ConfigOption {
	return func(o *configOptions) {
		o.mappingPath = path
	}
}

// ConfigWithLookupEnv substitutes the environment lookup (used in tests).
func ConfigWithLookupEnv(lookup func(string) (string, bool)) ConfigOption {
	return func(o *configOptions) {
		o.lookupEnv = lookup
	}
}

// LoadConfig builds the service configuration from environment variables
// and the mapping YAML (embedded defaults plus an optional override file).
func LoadConfig(opts ...ConfigOption) (Config, error) {
	var options configOptions
	for _, opt := range opts {
		opt(&options)
	}
	lookup := options.lookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	getenv := func(key string, fallback string) string {
		if v, exists := lookup(key); exists && v != "" {
			return v
		}
		return fallback
	}

	result := Config{
		SourceToken:               getenv("HUBSPOT_SOURCE_TOKEN", ""),
		DestToken:                 getenv("HUBSPOT_DEST_TOKEN", ""),
		ClientSecret:              getenv("HUBSPOT_CLIENT_SECRET", ""),
		Debug:                     strings.EqualFold(getenv("DEBUG", "false"), "true"),
		SkipSignatureVerification: strings.EqualFold(getenv("SKIP_SIGNATURE_VERIFICATION", "false"), "true"),
	}

	port, err := strconv.Atoi(getenv("PORT", "8080"))
	if err != nil {
		return result, fmt.Errorf("invalid PORT: %w", err)
	}
	result.Port = port

	if filter := getenv("FORM_FILTER", ""); filter != "" {
		for _, id := range strings.Split(filter, ",") {
			if id = strings.TrimSpace(id); id != "" {
				result.FormFilter = append(result.FormFilter, id)
			}
		}
	}

	defaultsFile, err := DefaultEmbeddedMappings().MustFindDefaultsMappingFile()
	if err != nil {
		return result, fmt.Errorf("failed to read defaults mapping file %w", err)
	}
	sources := []MappingFile{defaultsFile}
	if options.mappingPath != "" {
		overrideFile, err := ReadMappingFile(options.mappingPath)
		if err != nil {
			return result, fmt.Errorf("failed to read mapping file %w", err)
		}
		sources = append(sources, overrideFile)
	}

	result.Mapping, err = YAMLMappingUnmarshaler{}.Unmarshal(lookup, sources...)
	if err != nil {
		return result, err
	}
	if err := result.Mapping.Validate(); err != nil {
		return result, fmt.Errorf("invalid property mapping: %w", err)
	}

	return result, nil
}

// YAMLMappingUnmarshaler loads the property mapping table from YAML
// sources. Later sources override earlier ones; ${VAR} references are
// expanded through the provided environment lookup.
type YAMLMappingUnmarshaler struct{}

func (u YAMLMappingUnmarshaler) Unmarshal(lookupEnv func(string) (string, bool), sources ...MappingFile) (Mapping, error) {
	var result Mapping
	var options []config.YAMLOption
	for _, s := range sources {
		if s.Length > 0 {
			options = append(options, config.Source(s.Reader))
		}
	}
	options = append(options, config.Expand(lookupEnv))
	yaml, err := config.NewYAML(options...)
	if err != nil {
		return result, fmt.Errorf("failed to read yaml mapping %w", err)
	}
	readError := func(key string, cause error) error {
		return fmt.Errorf("failed to read '%s' from yaml mapping %w", key, cause)
	}
	key := "properties"
	err = yaml.Get(key).Populate(&result.Properties)
	if err != nil {
		return result, readError(key, err)
	}
	key = "renames"
	if yaml.Get(key).HasValue() {
		err = yaml.Get(key).Populate(&result.Renames)
		if err != nil {
			return result, readError(key, err)
		}
	}
	key = "skip"
	if yaml.Get(key).HasValue() {
		err = yaml.Get(key).Populate(&result.Skip)
		if err != nil {
			return result, readError(key, err)
		}
	}
	key = "safe"
	if yaml.Get(key).HasValue() {
		err = yaml.Get(key).Populate(&result.Safe)
		if err != nil {
			return result, readError(key, err)
		}
	}
	key = "transforms"
	if yaml.Get(key).HasValue() {
		err = yaml.Get(key).Populate(&result.Transforms)
		if err != nil {
			return result, readError(key, err)
		}
	}
	return result, nil
}

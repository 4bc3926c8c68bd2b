// Package catalog provides the static model catalog and the Kaito premade
// model catalog. Entries are loaded once and never mutated at runtime.
package catalog

import (
	"fmt"
	"os"
	"sort"

	"k8s.io/klog/v2"
	"sigs.k8s.io/yaml"

	"github.com/llmkube/llmkube/pkg/provider"
)

// Model describes a deployable model from the static catalog.
type Model struct {
	// ID is globally unique and may contain path-like separators, e.g.
	// "meta-llama/Llama-3.1-8B-Instruct".
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`

	// ParameterCount is the number of parameters; 0 means unknown.
	ParameterCount float64 `json:"parameterCount,omitempty"`
	// Size is a human size string such as "8B" or "70b".
	Size string `json:"size,omitempty"`

	// MinGPUMemory is a minimum GPU memory hint such as "16GB".
	MinGPUMemory string `json:"minGpuMemory,omitempty"`
	// EstimatedGPUMemoryGB is an explicit memory estimate; 0 means none.
	EstimatedGPUMemoryGB float64 `json:"estimatedGpuMemoryGb,omitempty"`
	// MinGPUs is the minimum GPU count the model is known to need.
	MinGPUs int `json:"minGpus,omitempty"`

	// Engines lists the inference engines the model supports.
	Engines []string `json:"engines,omitempty"`
	// Gated marks models requiring an access token to download.
	Gated bool `json:"gated,omitempty"`
}

// SupportsEngine reports whether the model lists engine as supported. An
// empty engine set means no restriction is known.
func (m *Model) SupportsEngine(engine string) bool {
	if len(m.Engines) == 0 {
		return true
	}
	for _, e := range m.Engines {
		if e == engine {
			return true
		}
	}
	return false
}

// catalogFile is the on-disk YAML layout.
type catalogFile struct {
	Models  []Model                 `json:"models"`
	Premade []provider.PremadeModel `json:"premadeModels"`
}

// Catalog is the immutable model lookup. It also implements
// provider.PremadeCatalog for Kaito validation.
type Catalog struct {
	models  map[string]*Model
	premade map[string]*provider.PremadeModel
}

// New builds a catalog from explicit entries.
func New(models []Model, premade []provider.PremadeModel) *Catalog {
	c := &Catalog{
		models:  make(map[string]*Model, len(models)),
		premade: make(map[string]*provider.PremadeModel, len(premade)),
	}
	for i := range models {
		c.models[models[i].ID] = &models[i]
	}
	for i := range premade {
		c.premade[premade[i].ID] = &premade[i]
	}
	return c
}

// Load parses a YAML catalog file. Falls back to the built-in defaults when
// path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}
	klog.Infof("Loaded model catalog from %s (%d models, %d premade)", path, len(file.Models), len(file.Premade))
	return New(file.Models, file.Premade), nil
}

// FindModel returns the model for id, or nil when unknown.
func (c *Catalog) FindModel(id string) *Model {
	return c.models[id]
}

// GetPremadeModel implements provider.PremadeCatalog.
func (c *Catalog) GetPremadeModel(id string) *provider.PremadeModel {
	return c.premade[id]
}

// Models returns all models sorted by id; callers must not mutate the
// returned entries.
func (c *Catalog) Models() []*Model {
	out := make([]*Model, 0, len(c.models))
	for _, m := range c.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

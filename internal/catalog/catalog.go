package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/domain"
	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/schema/validator"
)

// Catalog holds the entity specifications known to the host. It is read-only after construction.
type Catalog struct {
	entities map[string]*domain.EntitySpec
	tableIDs map[string]string
	keys     []string
}

// New validates the entities and indexes them by key and table id.
func New(entities ...*domain.EntitySpec) (*Catalog, error) {
	c := &Catalog{
		entities: make(map[string]*domain.EntitySpec, len(entities)),
		tableIDs: make(map[string]string),
	}
	for _, entity := range entities {
		if entity == nil {
			continue
		}
		if _, exists := c.entities[entity.Key]; exists {
			return nil, fmt.Errorf("duplicate entity %s", entity.Key)
		}
		c.entities[entity.Key] = entity
		c.keys = append(c.keys, entity.Key)
	}
	sort.Strings(c.keys)

	if err := validator.ValidateEntities(c.entities); err != nil {
		return nil, err
	}

	for _, key := range c.keys {
		for _, tableID := range c.entities[key].TableIDs {
			tableID = strings.TrimSpace(tableID)
			if tableID == "" {
				continue
			}
			if owner, exists := c.tableIDs[tableID]; exists && owner != key {
				return nil, fmt.Errorf("table id %s is claimed by both %s and %s", tableID, owner, key)
			}
			c.tableIDs[tableID] = key
		}
	}
	return c, nil
}

// Entity returns the entity with the given key.
func (c *Catalog) Entity(key string) (*domain.EntitySpec, bool) {
	if c == nil {
		return nil, false
	}
	entity, ok := c.entities[key]
	return entity, ok
}

// ResolveEntityByTableID matches a declared table id first, then the entity key,
// then either of them case-insensitively.
func (c *Catalog) ResolveEntityByTableID(tableID string) (*domain.EntitySpec, bool) {
	if c == nil {
		return nil, false
	}
	tableID = strings.TrimSpace(tableID)
	if tableID == "" {
		return nil, false
	}
	if key, ok := c.tableIDs[tableID]; ok {
		return c.entities[key], true
	}
	if entity, ok := c.entities[tableID]; ok {
		return entity, true
	}
	for _, key := range c.keys {
		entity := c.entities[key]
		if strings.EqualFold(key, tableID) {
			return entity, true
		}
		for _, candidate := range entity.TableIDs {
			if strings.EqualFold(strings.TrimSpace(candidate), tableID) {
				return entity, true
			}
		}
	}
	return nil, false
}

// Entities lists entities ordered by key.
func (c *Catalog) Entities() []*domain.EntitySpec {
	out := make([]*domain.EntitySpec, 0, len(c.keys))
	for _, key := range c.keys {
		out = append(out, c.entities[key])
	}
	return out
}

// Parse builds a catalog from one YAML document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return build([]document{doc})
}

// LoadFile reads a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// LoadDir reads every *.yaml and *.yml file in dir. Files holding a top level
// name and items list are enum directories named after the file when name is empty.
func LoadDir(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog directory: %w", err)
	}
	var docs []document
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog file %s: %w", name, err)
		}
		var doc document
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse catalog file %s: %w", name, err)
		}
		if len(doc.Items) > 0 && doc.Name == "" {
			doc.Name = strings.TrimSuffix(name, filepath.Ext(name))
		}
		docs = append(docs, doc)
	}
	return build(docs)
}

// Load reads path as a directory or a single file.
func Load(path string) (*Catalog, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat catalog %s: %w", path, err)
	}
	if info.IsDir() {
		return LoadDir(path)
	}
	return LoadFile(path)
}

func build(docs []document) (*Catalog, error) {
	var enumDocs []enumDoc
	for _, doc := range docs {
		enumDocs = append(enumDocs, doc.Enums...)
		if len(doc.Items) > 0 {
			enumDocs = append(enumDocs, enumDoc{Name: doc.Name, Items: doc.Items})
		}
	}
	enums := enumOptions(enumDocs)

	var entities []*domain.EntitySpec
	for _, doc := range docs {
		for _, ed := range doc.Entities {
			spec, err := ed.toSpec(enums)
			if err != nil {
				return nil, err
			}
			entities = append(entities, spec)
		}
	}
	return New(entities...)
}

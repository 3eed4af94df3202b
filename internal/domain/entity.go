package domain

import "strings"

// FieldType is the declared storage type of a field.
type FieldType string

const (
	FieldTypeString    FieldType = "string"
	FieldTypeText      FieldType = "text"
	FieldTypeNumber    FieldType = "number"
	FieldTypeInteger   FieldType = "integer"
	FieldTypeBoolean   FieldType = "boolean"
	FieldTypeDate      FieldType = "date"
	FieldTypeTimestamp FieldType = "timestamp"
	FieldTypeReference FieldType = "reference"
	FieldTypeEnum      FieldType = "enum"
)

// DefaultPrimaryKey is used when an entity does not declare one.
const DefaultPrimaryKey = "id"

// EntitySpec describes a logical table: its fields, its backing storage table
// and the roles allowed to read it. It is immutable once the catalog is built.
type EntitySpec struct {
	Key          string
	Name         string
	TableIDs     []string
	StorageTable string
	PrimaryKey   string
	DisplayField string
	Fields       map[string]FieldSpec
	Security     Security
	Views        []View
}

// Security lists the roles required per operation. An empty list means open access.
type Security struct {
	Read []string
}

// Reference points a field at another entity that supplies its labels.
type Reference struct {
	EntityType string
	LabelField string
}

// OptionItem is a static value -> label mapping with an optional display order.
type OptionItem struct {
	Value string
	Label string
	Order *float64
}

// FieldSpec describes one field of an entity.
type FieldSpec struct {
	Key          string
	Column       string
	Type         FieldType
	Label        string
	Virtual      bool
	Compute      ComputeSpec
	OptionSource string
	Reference    *Reference
	LabelFromRow string
	Enum         string
	Options      []OptionItem
}

// ColumnName returns the physical column backing the field.
func (f FieldSpec) ColumnName() string {
	if f.Column != "" {
		return f.Column
	}
	return f.Key
}

// LabelEntity returns the entity key supplying labels for the field, if any.
func (f FieldSpec) LabelEntity() string {
	if source := strings.TrimSpace(f.OptionSource); source != "" {
		return source
	}
	if f.Reference != nil {
		return strings.TrimSpace(f.Reference.EntityType)
	}
	return ""
}

// Field returns the named field spec.
func (e *EntitySpec) Field(key string) (FieldSpec, bool) {
	if e == nil {
		return FieldSpec{}, false
	}
	field, ok := e.Fields[key]
	return field, ok
}

// HasField reports whether a field with the given key exists.
func (e *EntitySpec) HasField(key string) bool {
	_, ok := e.Field(key)
	return ok
}

// PrimaryKeyColumn returns the physical column of the primary key.
func (e *EntitySpec) PrimaryKeyColumn() string {
	key := e.PrimaryKey
	if key == "" {
		key = DefaultPrimaryKey
	}
	if field, ok := e.Field(key); ok && !field.Virtual {
		return field.ColumnName()
	}
	return key
}

// PhysicalColumn returns the column for a stored field.
func (e *EntitySpec) PhysicalColumn(key string) (string, bool) {
	field, ok := e.Field(key)
	if !ok || field.Virtual {
		return "", false
	}
	return field.ColumnName(), true
}

// View returns the built-in saved view with the given id.
func (e *EntitySpec) View(id string) (View, bool) {
	if e == nil {
		return View{}, false
	}
	for _, view := range e.Views {
		if view.ID == id {
			return view, true
		}
	}
	return View{}, false
}

// StoredColumn resolves a stored field, or the undeclared primary key, to its column.
func (e *EntitySpec) StoredColumn(key string) (string, bool) {
	if column, ok := e.PhysicalColumn(key); ok {
		return column, true
	}
	primary := e.PrimaryKey
	if primary == "" {
		primary = DefaultPrimaryKey
	}
	if key == primary && !e.HasField(key) {
		return key, true
	}
	return "", false
}

package catalog

import (
	"fmt"
	"strings"

	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/domain"
)

// document is the YAML layout of a catalog file.
type document struct {
	Enums    []enumDoc   `yaml:"enums"`
	Entities []entityDoc `yaml:"entities"`

	// standalone enum directory files carry name and items at the top level
	Name  string        `yaml:"name"`
	Items []enumItemDoc `yaml:"items"`
}

type enumDoc struct {
	Name  string        `yaml:"name"`
	Items []enumItemDoc `yaml:"items"`
}

type enumItemDoc struct {
	Code  string   `yaml:"code"`
	Name  string   `yaml:"name"`
	Order *float64 `yaml:"order,omitempty"`
}

type entityDoc struct {
	Key          string      `yaml:"key"`
	Name         string      `yaml:"name"`
	TableIDs     []string    `yaml:"tableIds"`
	Table        string      `yaml:"table"`
	PrimaryKey   string      `yaml:"primaryKey"`
	DisplayField string      `yaml:"displayField"`
	Security     securityDoc `yaml:"security"`
	Fields       []fieldDoc  `yaml:"fields"`
	Views        []viewDoc   `yaml:"views"`
}

type securityDoc struct {
	Read []string `yaml:"read"`
}

type referenceDoc struct {
	EntityType string `yaml:"entityType"`
	LabelField string `yaml:"labelField"`
}

type optionDoc struct {
	Value string   `yaml:"value"`
	Label string   `yaml:"label"`
	Order *float64 `yaml:"order,omitempty"`
}

type fieldDoc struct {
	Key          string        `yaml:"key"`
	Column       string        `yaml:"column"`
	Type         string        `yaml:"type"`
	Label        string        `yaml:"label"`
	Virtual      bool          `yaml:"virtual"`
	Compute      *computeDoc   `yaml:"compute"`
	OptionSource string        `yaml:"optionSource"`
	Reference    *referenceDoc `yaml:"reference"`
	LabelFromRow string        `yaml:"labelFromRow"`
	Enum         string        `yaml:"enum"`
	Options      []optionDoc   `yaml:"options"`
}

type joinStepDoc struct {
	Entity       string `yaml:"entity"`
	LocalField   string `yaml:"localField"`
	ForeignField string `yaml:"foreignField"`
}

type computeDoc struct {
	Kind        string        `yaml:"kind"`
	SourceField string        `yaml:"sourceField"`
	Fields      []string      `yaml:"fields"`
	Separator   *string       `yaml:"separator"`
	Joins       []joinStepDoc `yaml:"joins"`
	GroupField  string        `yaml:"groupField"`
	LabelField  string        `yaml:"labelField"`
	OrderField  string        `yaml:"orderField"`

	AssignmentEntity   string `yaml:"assignmentEntity"`
	LocalKeyField      string `yaml:"localKeyField"`
	AssignmentKeyField string `yaml:"assignmentKeyField"`
	PrimaryFlagField   string `yaml:"primaryFlagField"`
	TargetKeyField     string `yaml:"targetKeyField"`
	TargetEntity       string `yaml:"targetEntity"`
	TargetForeignField string `yaml:"targetForeignField"`
}

type viewDoc struct {
	ID            string                `yaml:"id"`
	Name          string                `yaml:"name"`
	GroupBy       domain.GroupBy        `yaml:"groupBy"`
	Filters       []domain.FilterClause `yaml:"filters"`
	FilterMode    string                `yaml:"filterMode"`
	SortBy        string                `yaml:"sortBy"`
	SortDirection string                `yaml:"sortDirection"`
}

func (d entityDoc) toSpec(enums map[string][]domain.OptionItem) (*domain.EntitySpec, error) {
	key := strings.TrimSpace(d.Key)
	if key == "" {
		return nil, fmt.Errorf("entity key is required")
	}
	spec := &domain.EntitySpec{
		Key:          key,
		Name:         d.Name,
		TableIDs:     d.TableIDs,
		StorageTable: strings.TrimSpace(d.Table),
		PrimaryKey:   strings.TrimSpace(d.PrimaryKey),
		DisplayField: strings.TrimSpace(d.DisplayField),
		Fields:       make(map[string]domain.FieldSpec, len(d.Fields)),
		Security:     domain.Security{Read: d.Security.Read},
	}
	if spec.PrimaryKey == "" {
		spec.PrimaryKey = domain.DefaultPrimaryKey
	}
	for _, fd := range d.Fields {
		field, err := fd.toSpec(enums)
		if err != nil {
			return nil, fmt.Errorf("entity %s: %w", key, err)
		}
		if _, exists := spec.Fields[field.Key]; exists {
			return nil, fmt.Errorf("entity %s: duplicate field %s", key, field.Key)
		}
		spec.Fields[field.Key] = field
	}
	for _, vd := range d.Views {
		spec.Views = append(spec.Views, domain.View{
			ID:            vd.ID,
			Name:          vd.Name,
			GroupBy:       vd.GroupBy,
			Filters:       vd.Filters,
			FilterMode:    vd.FilterMode,
			SortBy:        vd.SortBy,
			SortDirection: vd.SortDirection,
		})
	}
	return spec, nil
}

func (d fieldDoc) toSpec(enums map[string][]domain.OptionItem) (domain.FieldSpec, error) {
	key := strings.TrimSpace(d.Key)
	if key == "" {
		return domain.FieldSpec{}, fmt.Errorf("field key is required")
	}
	field := domain.FieldSpec{
		Key:          key,
		Column:       strings.TrimSpace(d.Column),
		Type:         domain.FieldType(strings.ToLower(strings.TrimSpace(d.Type))),
		Label:        d.Label,
		Virtual:      d.Virtual,
		OptionSource: strings.TrimSpace(d.OptionSource),
		LabelFromRow: strings.TrimSpace(d.LabelFromRow),
		Enum:         strings.TrimSpace(d.Enum),
	}
	if d.Reference != nil {
		field.Reference = &domain.Reference{
			EntityType: strings.TrimSpace(d.Reference.EntityType),
			LabelField: strings.TrimSpace(d.Reference.LabelField),
		}
	}
	for _, od := range d.Options {
		label := od.Label
		if label == "" {
			label = od.Value
		}
		field.Options = append(field.Options, domain.OptionItem{Value: od.Value, Label: label, Order: od.Order})
	}
	if field.Enum != "" && len(field.Options) == 0 {
		items, ok := enums[field.Enum]
		if !ok {
			return domain.FieldSpec{}, fmt.Errorf("field %s references unknown enum %s", key, field.Enum)
		}
		field.Options = items
	}
	if d.Compute != nil {
		compute, err := d.Compute.toSpec()
		if err != nil {
			return domain.FieldSpec{}, fmt.Errorf("field %s: %w", key, err)
		}
		field.Compute = compute
		field.Virtual = true
	}
	return field, nil
}

func (d computeDoc) toSpec() (domain.ComputeSpec, error) {
	switch domain.ComputeKind(strings.TrimSpace(d.Kind)) {
	case domain.ComputeKindLabelFrom:
		return domain.LabelFrom{SourceField: d.SourceField}, nil
	case domain.ComputeKindConcat:
		separator := domain.DefaultConcatSeparator
		if d.Separator != nil {
			separator = *d.Separator
		}
		return domain.Concat{Fields: d.Fields, Separator: separator}, nil
	case domain.ComputeKindJoin:
		steps := make([]domain.JoinStep, 0, len(d.Joins))
		for _, step := range d.Joins {
			steps = append(steps, domain.JoinStep{Entity: step.Entity, LocalField: step.LocalField, ForeignField: step.ForeignField})
		}
		return domain.Join{Joins: steps, GroupField: d.GroupField, LabelField: d.LabelField, OrderField: d.OrderField}, nil
	case domain.ComputeKindExternalAssignmentJoin:
		return domain.ExternalAssignmentJoin{
			AssignmentEntity:   d.AssignmentEntity,
			LocalKeyField:      d.LocalKeyField,
			AssignmentKeyField: d.AssignmentKeyField,
			PrimaryFlagField:   d.PrimaryFlagField,
			TargetKeyField:     d.TargetKeyField,
			TargetEntity:       d.TargetEntity,
			TargetForeignField: d.TargetForeignField,
			GroupField:         d.GroupField,
			LabelField:         d.LabelField,
			OrderField:         d.OrderField,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported compute kind %q", d.Kind)
	}
}

func enumOptions(docs []enumDoc) map[string][]domain.OptionItem {
	enums := make(map[string][]domain.OptionItem, len(docs))
	for _, doc := range docs {
		items := make([]domain.OptionItem, 0, len(doc.Items))
		for _, item := range doc.Items {
			label := item.Name
			if label == "" {
				label = item.Code
			}
			items = append(items, domain.OptionItem{Value: item.Code, Label: label, Order: item.Order})
		}
		enums[doc.Name] = items
	}
	return enums
}

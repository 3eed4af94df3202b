package domain

// ComputeKind names a virtual field computation strategy.
type ComputeKind string

const (
	ComputeKindLabelFrom              ComputeKind = "labelFrom"
	ComputeKindConcat                 ComputeKind = "concat"
	ComputeKindJoin                   ComputeKind = "join"
	ComputeKindExternalAssignmentJoin ComputeKind = "externalAssignmentJoin"
)

// DefaultConcatSeparator joins concat parts when no separator is declared.
const DefaultConcatSeparator = " "

// ComputeSpec is implemented by LabelFrom, Concat, Join and ExternalAssignmentJoin.
type ComputeSpec interface {
	Kind() ComputeKind
	computeSpec()
}

// LabelFrom makes the virtual field the resolved label of SourceField.
type LabelFrom struct {
	SourceField string
}

// Concat makes the virtual field the store-side concatenation of Fields.
type Concat struct {
	Fields    []string
	Separator string
}

// JoinStep follows LocalField of the previous table to ForeignField of Entity.
type JoinStep struct {
	Entity       string
	LocalField   string
	ForeignField string
}

// Join reads GroupField (and optional label/order fields) from the last table of a join chain.
type Join struct {
	Joins      []JoinStep
	GroupField string
	LabelField string
	OrderField string
}

// ExternalAssignmentJoin resolves a value through an assignment table keyed by an
// external identifier instead of a foreign key column.
//
//	base.LocalKeyField = assignment.AssignmentKeyField
//	assignment.TargetKeyField = target.TargetForeignField
type ExternalAssignmentJoin struct {
	AssignmentEntity   string
	LocalKeyField      string
	AssignmentKeyField string
	PrimaryFlagField   string
	TargetKeyField     string
	TargetEntity       string
	TargetForeignField string
	GroupField         string
	LabelField         string
	OrderField         string
}

func (LabelFrom) Kind() ComputeKind              { return ComputeKindLabelFrom }
func (Concat) Kind() ComputeKind                 { return ComputeKindConcat }
func (Join) Kind() ComputeKind                   { return ComputeKindJoin }
func (ExternalAssignmentJoin) Kind() ComputeKind { return ComputeKindExternalAssignmentJoin }

func (LabelFrom) computeSpec()              {}
func (Concat) computeSpec()                 {}
func (Join) computeSpec()                   {}
func (ExternalAssignmentJoin) computeSpec() {}

// SeparatorOrDefault returns the declared separator or a single space.
func (c Concat) SeparatorOrDefault() string {
	if c.Separator == "" {
		return DefaultConcatSeparator
	}
	return c.Separator
}

// AsJoin expresses the assignment join as a two step join chain.
func (e ExternalAssignmentJoin) AsJoin() Join {
	return Join{
		Joins: []JoinStep{
			{Entity: e.AssignmentEntity, LocalField: e.LocalKeyField, ForeignField: e.AssignmentKeyField},
			{Entity: e.TargetEntity, LocalField: e.TargetKeyField, ForeignField: e.TargetForeignField},
		},
		GroupField: e.GroupField,
		LabelField: e.LabelField,
		OrderField: e.OrderField,
	}
}

package grouping

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/domain"
	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/repository"
)

func group(t *testing.T, service *Service, req Request) *domain.GroupedTable {
	t.Helper()
	result, err := service.Group(context.Background(), req)
	require.NoError(t, err)
	return result
}

func TestGroup_FiltersBeforeGrouping(t *testing.T) {
	service := newTestService(t)

	result := group(t, service, Request{
		TableID: "erp.projects",
		GroupBy: domain.GroupBy{Field: "region"},
		Filters: []domain.FilterClause{{Field: "status", Operator: "equals", Value: "active"}},
	})

	assert.Equal(t, "erp.projects", result.TableID)
	assert.Equal(t, map[string]int64{"APAC": 1, "EU": 2, "US": 2}, result.GroupCounts)
	assert.Equal(t, []string{"APAC", "EU", "US"}, result.GroupOrder)
	assert.Equal(t, domain.GroupOrderValue, result.GroupBy.OrderBy)
	assert.Equal(t, domain.SortDirectionAsc, result.GroupBy.OrderDirection)
	assert.Nil(t, result.Groups)
}

func TestGroup_LabelFromMergesValuesSharingALabel(t *testing.T) {
	service := newTestService(t)

	result := group(t, service, Request{TableID: "projects", GroupBy: domain.GroupBy{Field: "ownerName"}})

	// u1 and u3 are both called Alice; the unknown owner keeps its raw value.
	assert.Equal(t, map[string]int64{"Alice": 4, "Bob": 1, "ghost": 1, "": 1}, result.GroupCounts)
	assert.Equal(t, []string{"Alice", "Bob", "ghost", ""}, result.GroupOrder)
}

func TestGroup_RelatedSortOrder(t *testing.T) {
	service := newTestService(t)

	for _, field := range []string{"departmentId", "departmentName"} {
		asc := group(t, service, Request{
			TableID: "projects",
			GroupBy: domain.GroupBy{Field: field, OrderBy: "relatedSortOrder"},
		})
		assert.Equal(t, map[string]int64{"Engineering": 3, "Sales": 2, "Ops": 1, "": 1}, asc.GroupCounts, field)
		assert.Equal(t, []string{"Sales", "Engineering", "Ops", ""}, asc.GroupOrder, field)

		desc := group(t, service, Request{
			TableID: "projects",
			GroupBy: domain.GroupBy{Field: field, OrderBy: "relatedSortOrder", OrderDirection: "desc"},
		})
		assert.Equal(t, []string{"Engineering", "Sales", "Ops", ""}, desc.GroupOrder, field)
	}
}

func TestGroup_AutoOrderingPicksRelatedSortOrderWhenAvailable(t *testing.T) {
	service := newTestService(t)

	result := group(t, service, Request{TableID: "projects", GroupBy: domain.GroupBy{Field: "priority"}})

	assert.Equal(t, domain.GroupOrderRelatedSortOrder, result.GroupBy.OrderBy)
	assert.Equal(t, map[string]int64{"High": 2, "Medium": 1, "Low": 2, "": 2}, result.GroupCounts)
	assert.Equal(t, []string{"High", "Medium", "Low", ""}, result.GroupOrder)
}

func TestGroup_CountOrdering(t *testing.T) {
	service := newTestService(t)

	result := group(t, service, Request{TableID: "projects", GroupBy: domain.GroupBy{Field: "region", OrderBy: "count"}})
	assert.Equal(t, domain.SortDirectionDesc, result.GroupBy.OrderDirection)
	assert.Equal(t, []string{"EU", "US", "APAC", ""}, result.GroupOrder)

	result = group(t, service, Request{TableID: "projects", GroupBy: domain.GroupBy{Field: "region", OrderBy: "count", OrderDirection: "ASC"}})
	assert.Equal(t, []string{"APAC", "US", "EU", ""}, result.GroupOrder)

	var total int64
	for _, count := range result.GroupCounts {
		total += count
	}
	assert.Equal(t, int64(7), total)
}

func TestGroup_CurrentUserView(t *testing.T) {
	service := newTestService(t)

	result := group(t, service, Request{TableID: "projects", ViewID: "mine", CallerID: "u1"})
	assert.Equal(t, "status", result.GroupBy.Field)
	// Fornax belongs to u1 but is archived.
	assert.Equal(t, map[string]int64{"Active": 2}, result.GroupCounts)

	override := group(t, service, Request{
		TableID:  "projects",
		ViewID:   "mine",
		CallerID: "u1",
		GroupBy:  domain.GroupBy{Field: "region"},
	})
	assert.Equal(t, map[string]int64{"EU": 2}, override.GroupCounts)
}

func TestGroup_UnknownViewIsIgnored(t *testing.T) {
	service := newTestService(t)

	result := group(t, service, Request{TableID: "projects", ViewID: "missing", GroupBy: domain.GroupBy{Field: "status"}})
	assert.Equal(t, map[string]int64{"Draft": 1, "Active": 5, "Done": 1}, result.GroupCounts)
	assert.Equal(t, []string{"Draft", "Active", "Done"}, result.GroupOrder)
}

func TestGroup_ConcatField(t *testing.T) {
	service := newTestService(t)

	result := group(t, service, Request{TableID: "employees", GroupBy: domain.GroupBy{Field: "fullName"}, IncludeRows: true})

	assert.Equal(t, map[string]int64{"Ada Lovelace": 2, "Alan Turing": 1, "Grace Hopper": 1}, result.GroupCounts)
	assert.Equal(t, []string{"Ada Lovelace", "Alan Turing", "Grace Hopper"}, result.GroupOrder)
	require.Len(t, result.Groups, 3)
	require.Len(t, result.Groups[0].Rows, 2)
	for _, row := range result.Groups[0].Rows {
		assert.Equal(t, "Ada Lovelace", row["fullName"])
		assert.Equal(t, "Ada", row["firstName"])
	}
}

// dollarReader renders every statement with $n placeholders before passing
// it to the wrapped reader.
type dollarReader struct {
	inner repository.TableReader
	mu    sync.Mutex
	sql   []string
	args  [][]any
}

func (r *dollarReader) Select(ctx context.Context, query sq.SelectBuilder) ([]repository.Record, error) {
	sqlText, args, err := query.PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.sql = append(r.sql, sqlText)
	r.args = append(r.args, args)
	r.mu.Unlock()
	return r.inner.Select(ctx, query)
}

func TestGroup_ConcatSeparatorWithQuestionMark(t *testing.T) {
	store, _ := openTestStore(t)
	people := &domain.EntitySpec{
		Key:          "people",
		StorageTable: "employees",
		PrimaryKey:   "id",
		Fields: map[string]domain.FieldSpec{
			"id":        {Key: "id"},
			"firstName": {Key: "firstName", Column: "first_name"},
			"lastName":  {Key: "lastName", Column: "last_name"},
			"fullName": {Key: "fullName", Virtual: true, Compute: domain.Concat{
				Fields:    []string{"firstName", "lastName"},
				Separator: " ? ",
			}},
		},
	}
	reader := &dollarReader{inner: store}
	service := NewService(stubCatalog{"people": people}, reader)

	result := group(t, service, Request{
		TableID:     "people",
		GroupBy:     domain.GroupBy{Field: "fullName"},
		Filters:     []domain.FilterClause{{Field: "lastName", Operator: "notEquals", Value: "Hopper"}},
		IncludeRows: true,
	})
	assert.Equal(t, map[string]int64{"Ada ? Lovelace": 2, "Alan ? Turing": 1}, result.GroupCounts)
	assert.Equal(t, []string{"Ada ? Lovelace", "Alan ? Turing"}, result.GroupOrder)
	require.Len(t, result.Groups, 2)
	assert.Len(t, result.Groups[0].Rows, 2)

	require.NotEmpty(t, reader.sql)
	for i, sqlText := range reader.sql {
		assert.Contains(t, sqlText, "' ? '")
		assert.Equal(t, len(reader.args[i]), strings.Count(sqlText, "$"), sqlText)
	}
}

func TestGroup_StructuredFilterValuesDoNotFailTheRequest(t *testing.T) {
	service := newTestService(t)

	ranged := group(t, service, Request{
		TableID: "projects",
		GroupBy: domain.GroupBy{Field: "status"},
		Filters: []domain.FilterClause{{Field: "dueDate", Operator: "inRange", Value: map[string]any{"from": "2024-02-01"}}},
	})
	assert.Equal(t, map[string]int64{"Active": 3}, ranged.GroupCounts)

	ignored := group(t, service, Request{
		TableID: "projects",
		GroupBy: domain.GroupBy{Field: "status"},
		Filters: []domain.FilterClause{{Field: "status", Operator: "equals", Value: map[string]any{"colour": "red"}}},
	})
	assert.Equal(t, map[string]int64{"Draft": 1, "Active": 5, "Done": 1}, ignored.GroupCounts)
}

func TestGroup_LabelFromRowOnVirtualField(t *testing.T) {
	store, _ := openTestStore(t)
	people := &domain.EntitySpec{
		Key:          "people",
		StorageTable: "employees",
		PrimaryKey:   "id",
		Fields: map[string]domain.FieldSpec{
			"id":        {Key: "id"},
			"firstName": {Key: "firstName", Column: "first_name"},
			"lastName":  {Key: "lastName", Column: "last_name"},
			"fullName": {Key: "fullName", Virtual: true, LabelFromRow: "badge", Compute: domain.Concat{
				Fields: []string{"firstName", "lastName"},
			}},
		},
	}
	service := NewService(stubCatalog{"people": people}, store)

	result := group(t, service, Request{TableID: "people", GroupBy: domain.GroupBy{Field: "badge"}, IncludeRows: true})
	assert.Equal(t, map[string]int64{"Ada Lovelace": 2, "Alan Turing": 1, "Grace Hopper": 1}, result.GroupCounts)
	assert.Equal(t, "badge", result.GroupBy.Field)
	require.Len(t, result.Groups, 3)
	for _, row := range result.Groups[0].Rows {
		assert.Equal(t, "Ada Lovelace", row["badge"])
	}
}

func TestGroup_ExternalAssignmentJoin(t *testing.T) {
	service := newTestService(t)

	divisions := group(t, service, Request{TableID: "hr.employees", GroupBy: domain.GroupBy{Field: "divisionName"}})
	assert.Equal(t, domain.GroupOrderRelatedSortOrder, divisions.GroupBy.OrderBy)
	assert.Equal(t, map[string]int64{"Research": 2, "Operations": 1, "": 1}, divisions.GroupCounts)
	assert.Equal(t, []string{"Operations", "Research", ""}, divisions.GroupOrder)

	locations := group(t, service, Request{TableID: "hr.employees", GroupBy: domain.GroupBy{Field: "locationName"}})
	assert.Equal(t, map[string]int64{"Berlin": 1, "Lisbon": 1, "": 2}, locations.GroupCounts)
	assert.Equal(t, []string{"Berlin", "Lisbon", ""}, locations.GroupOrder)
}

func TestGroup_IncludeRowsPagesEachGroup(t *testing.T) {
	service := newTestService(t)

	result := group(t, service, Request{
		TableID:       "projects",
		GroupBy:       domain.GroupBy{Field: "status"},
		IncludeRows:   true,
		GroupPageSize: 2,
	})

	require.Len(t, result.Groups, 3)
	keys := make([]string, 0, len(result.Groups))
	for _, g := range result.Groups {
		keys = append(keys, g.Key)
		assert.Equal(t, result.GroupCounts[g.Key], g.Total, g.Key)
		assert.LessOrEqual(t, len(g.Rows), 2, g.Key)
	}
	assert.Equal(t, result.GroupOrder, keys)

	active := result.Groups[1]
	assert.Equal(t, "Active", active.Key)
	assert.Equal(t, int64(5), active.Total)
	require.Len(t, active.Rows, 2)
	assert.Equal(t, "p1", active.Rows[0]["id"])
	assert.Equal(t, "p2", active.Rows[1]["id"])
	assert.Equal(t, "active", active.Rows[0]["status"], "stored values are not replaced by labels")
	assert.Equal(t, "u1", active.Rows[0]["ownerId"], "columns are exposed under field keys")

	sorted := group(t, service, Request{
		TableID:       "projects",
		GroupBy:       domain.GroupBy{Field: "status"},
		IncludeRows:   true,
		GroupPageSize: 2,
		SortBy:        "name",
		SortDirection: "desc",
	})
	assert.Equal(t, "Gemini", sorted.Groups[1].Rows[0]["name"])
	assert.Equal(t, "Fornax", sorted.Groups[1].Rows[1]["name"])
}

func TestGroup_RowsAgreeWithGroups(t *testing.T) {
	service := newTestService(t)

	for _, field := range []string{"ownerName", "region", "departmentName", "divisionName"} {
		tableID := "projects"
		if field == "divisionName" {
			tableID = "employees"
		}
		result := group(t, service, Request{TableID: tableID, GroupBy: domain.GroupBy{Field: field}, IncludeRows: true})

		for _, g := range result.Groups {
			assert.Len(t, g.Rows, int(g.Total), "%s/%s", field, g.Key)
			for _, row := range g.Rows {
				assert.Equal(t, g.Key, repository.FormatValue(row[field]), "%s/%s", field, g.Key)
			}
		}
	}
}

func TestGroup_LabelFromRowBackfillsRows(t *testing.T) {
	service := newTestService(t)

	result := group(t, service, Request{TableID: "hr.employees", ViewID: "by-department", IncludeRows: true})

	assert.Equal(t, "departmentName", result.GroupBy.Field)
	assert.Equal(t, []string{"Sales", "Engineering"}, result.GroupOrder)
	require.Len(t, result.Groups, 2)

	engineering := result.Groups[1]
	require.Len(t, engineering.Rows, 2)
	assert.Equal(t, "Lovelace", engineering.Rows[0]["lastName"])
	assert.Equal(t, "Turing", engineering.Rows[1]["lastName"])
	for _, row := range engineering.Rows {
		assert.Equal(t, "Engineering", row["departmentName"])
		assert.Equal(t, "d1", row["departmentId"])
	}
}

func TestGroup_FilterSemantics(t *testing.T) {
	service := newTestService(t)

	cases := []struct {
		name    string
		req     Request
		grouped map[string]int64
	}{
		{
			name: "any mode",
			req: Request{
				GroupBy:    domain.GroupBy{Field: "status"},
				FilterMode: "any",
				Filters: []domain.FilterClause{
					{Field: "status", Operator: "equals", Value: "done"},
					{Field: "region", Operator: "equals", Value: "APAC"},
				},
			},
			grouped: map[string]int64{"Active": 1, "Done": 1},
		},
		{
			name: "search is case insensitive",
			req: Request{
				GroupBy: domain.GroupBy{Field: "region"},
				Search:  "APO",
			},
			grouped: map[string]int64{"EU": 1},
		},
		{
			name: "search narrows any mode",
			req: Request{
				GroupBy:    domain.GroupBy{Field: "region"},
				FilterMode: "any",
				Search:     "gem",
				Filters: []domain.FilterClause{
					{Field: "region", Operator: "equals", Value: "EU"},
					{Field: "region", Operator: "equals", Value: "APAC"},
				},
			},
			grouped: map[string]int64{"APAC": 1},
		},
		{
			name: "notEquals keeps nulls",
			req: Request{
				GroupBy: domain.GroupBy{Field: "region"},
				Filters: []domain.FilterClause{{Field: "region", Operator: "notEquals", Value: "EU"}},
			},
			grouped: map[string]int64{"US": 2, "APAC": 1, "": 1},
		},
		{
			name: "equals null is ignored",
			req: Request{
				GroupBy: domain.GroupBy{Field: "region"},
				Filters: []domain.FilterClause{{Field: "region", Operator: "equals", Value: nil}},
			},
			grouped: map[string]int64{"EU": 3, "US": 2, "APAC": 1, "": 1},
		},
		{
			name: "isEmpty",
			req: Request{
				GroupBy: domain.GroupBy{Field: "status"},
				Filters: []domain.FilterClause{{Field: "region", Operator: "isEmpty"}},
			},
			grouped: map[string]int64{"Done": 1},
		},
		{
			name: "isTrue",
			req: Request{
				GroupBy: domain.GroupBy{Field: "region"},
				Filters: []domain.FilterClause{{Field: "archived", Operator: "isTrue"}},
			},
			grouped: map[string]int64{"US": 1},
		},
		{
			name: "date range",
			req: Request{
				GroupBy: domain.GroupBy{Field: "status"},
				Filters: []domain.FilterClause{{Field: "dueDate", Operator: "dateBetween", Value: "2024-01-01..2024-01-31"}},
			},
			grouped: map[string]int64{"Draft": 1, "Active": 2},
		},
		{
			name: "number comparison",
			req: Request{
				GroupBy: domain.GroupBy{Field: "region"},
				Filters: []domain.FilterClause{{Field: "budget", Operator: "greaterThan", Value: "400", ValueType: "number"}},
			},
			grouped: map[string]int64{"EU": 2},
		},
		{
			name: "unknown field and unknown operator",
			req: Request{
				GroupBy: domain.GroupBy{Field: "region"},
				Filters: []domain.FilterClause{
					{Field: "legacy", Operator: "equals", Value: "x"},
					{Field: "name", Operator: "resembles", Value: "orn"},
				},
			},
			grouped: map[string]int64{"US": 1},
		},
		{
			name: "concat field filter",
			req: Request{
				TableID: "employees",
				GroupBy: domain.GroupBy{Field: "managerName"},
				Filters: []domain.FilterClause{{Field: "fullName", Operator: "startsWith", Value: "ada "}},
			},
			grouped: map[string]int64{"Alice": 1, "Bob": 1},
		},
	}

	for _, tc := range cases {
		if tc.req.TableID == "" {
			tc.req.TableID = "projects"
		}
		result, err := service.Group(context.Background(), tc.req)
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.grouped, result.GroupCounts, tc.name)
	}
}

func TestGroup_IsIdempotent(t *testing.T) {
	service := newTestService(t, WithRowWorkers(2))
	req := Request{TableID: "projects", GroupBy: domain.GroupBy{Field: "ownerName"}, IncludeRows: true}

	first := group(t, service, req)
	second := group(t, service, req)
	assert.Equal(t, first, second)
}

func TestGroup_Errors(t *testing.T) {
	service := newTestService(t)

	cases := []struct {
		name   string
		req    Request
		kind   Kind
		status int
	}{
		{"missing table", Request{GroupBy: domain.GroupBy{Field: "status"}}, KindInput, http.StatusBadRequest},
		{"unknown table", Request{TableID: "erp.unknown", GroupBy: domain.GroupBy{Field: "status"}}, KindNotFound, http.StatusNotFound},
		{"missing group field", Request{TableID: "projects"}, KindInput, http.StatusBadRequest},
		{"undeclared group field", Request{TableID: "projects", GroupBy: domain.GroupBy{Field: "colour"}}, KindResolution, http.StatusBadRequest},
	}

	for _, tc := range cases {
		_, err := service.Group(context.Background(), tc.req)
		require.Error(t, err, tc.name)
		assert.Equal(t, tc.kind, KindOf(err), tc.name)
		assert.Equal(t, tc.status, StatusCode(err), tc.name)
	}

	_, err := service.Group(context.Background(), Request{TableID: "projects", GroupBy: domain.GroupBy{Field: "colour"}})
	assert.True(t, errors.Is(err, ErrUnknownGroupField))
}

func TestGroup_ResolutionFailsBeforeAnyQuery(t *testing.T) {
	reader, _ := openTestStore(t)
	counting := &countingReader{inner: reader}
	service := NewService(loadTestCatalog(t), counting)

	_, err := service.Group(context.Background(), Request{TableID: "projects", GroupBy: domain.GroupBy{Field: "colour"}})
	require.Error(t, err)
	assert.Equal(t, int64(0), counting.calls.Load())
}

func TestGroup_StoreFailure(t *testing.T) {
	reader, _ := openTestStore(t)
	service := NewService(loadTestCatalog(t), &countingReader{inner: reader, fail: errStoreDown})

	_, err := service.Group(context.Background(), Request{TableID: "projects", GroupBy: domain.GroupBy{Field: "status"}})
	require.Error(t, err)
	assert.Equal(t, KindStore, KindOf(err))
	assert.True(t, errors.Is(err, errStoreDown))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
}

func TestGroup_MisconfiguredCatalog(t *testing.T) {
	reader, _ := openTestStore(t)
	tasks := &domain.EntitySpec{
		Key:          "tasks",
		StorageTable: "projects",
		PrimaryKey:   "id",
		Fields: map[string]domain.FieldSpec{
			"id":           {Key: "id"},
			"ownerId":      {Key: "ownerId", Column: "owner_id", OptionSource: "people"},
			"departmentId": {Key: "departmentId", Column: "department_id"},
			"office": {Key: "office", Virtual: true, Compute: domain.Join{
				Joins:      []domain.JoinStep{{Entity: "offices", LocalField: "departmentId", ForeignField: "id"}},
				GroupField: "id",
			}},
		},
	}
	service := NewService(stubCatalog{
		"tasks":  tasks,
		"drafts": {Key: "drafts"},
	}, reader)

	// a missing label source degrades to raw values
	result := group(t, service, Request{TableID: "tasks", GroupBy: domain.GroupBy{Field: "ownerId"}})
	assert.Equal(t, map[string]int64{"u1": 3, "u2": 1, "u3": 1, "ghost": 1, "": 1}, result.GroupCounts)
	assert.Equal(t, []string{"ghost", "u1", "u2", "u3", ""}, result.GroupOrder)

	_, err := service.Group(context.Background(), Request{TableID: "tasks", GroupBy: domain.GroupBy{Field: "office"}})
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(err))

	_, err = service.Group(context.Background(), Request{TableID: "drafts", GroupBy: domain.GroupBy{Field: "id"}})
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
}

func TestGroupableFields(t *testing.T) {
	service := newTestService(t)
	entity, ok := service.ResolveTable("employees")
	require.True(t, ok)

	fields := service.GroupableFields(entity)
	assert.Contains(t, fields, "fullName")
	assert.Contains(t, fields, "divisionName")
	assert.Contains(t, fields, "managerName")
	assert.Contains(t, fields, "active")
}

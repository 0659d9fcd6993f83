package experience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAssemblesFullAggregate(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	req := &CreateRequest{
		Name:    "Lectura en familia",
		Code:    "LF-1",
		StateID: 1,
		UserID:  12,
		Institution: &InstitutionInput{
			Name:        "IE Central",
			Departments: []PlaceInput{{Name: "Huila"}},
		},
		Leaders:            []LeaderInput{{Name: "Ana", IdentityDocument: "100"}, {IdentityDocument: "100", Email: "ana@ie.co"}},
		Documents:          []DocumentInput{{Name: "Anexo", URLPDF: "https://files/anexo.pdf"}},
		Objectives:         []ObjectiveInput{{DescriptionProblem: "Baja lectura"}},
		Developments:       []DevelopmentInput{{Coverage: "200"}},
		ThematicLineIDs:    []int64{1, 2, 2, 0},
		PopulationGradeIDs: []int64{3},
		Grades:             []GradeInput{{ID: 5, Description: "Quinto"}},
	}

	e := Build(req, now)

	assert.Equal(t, "Lectura en familia", e.Name)
	assert.Equal(t, int64(12), e.UserID)
	assert.Equal(t, now, e.CreatedAt)
	require.NotNil(t, e.Institution)
	assert.Len(t, e.Institution.Departments, 1)
	require.Len(t, e.Leaders, 1)
	assert.Equal(t, "ana@ie.co", e.Leaders[0].Email)
	assert.Len(t, e.Documents, 1)
	assert.Len(t, e.Objectives, 1)
	assert.Len(t, e.Developments, 1)
	assert.Len(t, e.LineThematics, 2)
	assert.Len(t, e.Populations, 1)
	require.Len(t, e.Grades, 1)
	assert.Equal(t, "Quinto", e.Grades[0].Description)

	require.Len(t, e.History, 1)
	assert.Equal(t, "CREATE", e.History[0].Action)
	assert.Equal(t, int64(12), e.History[0].UserID)
}

func TestBuildKeepsSuppliedHistory(t *testing.T) {
	e := Build(&CreateRequest{
		Name:    "x",
		UserID:  1,
		History: []HistoryInput{{Action: "IMPORT", TableName: "Experience", UserID: 1}},
	}, time.Now())

	require.Len(t, e.History, 1)
	assert.Equal(t, "IMPORT", e.History[0].Action)
}

func TestBuildWithoutOptionalPartsHasEmptyCollections(t *testing.T) {
	e := NewBuilder(nil).Build(time.Now())

	assert.Nil(t, e.Institution)
	assert.NotNil(t, e.Leaders)
	assert.NotNil(t, e.History)
	assert.Empty(t, e.History)
}

func TestNaturalKey(t *testing.T) {
	tests := map[string]string{
		"":           "",
		"   ":        "",
		" Plan ":     "plan",
		"PLAN":       "plan",
		"CC-1023 \t": "cc-1023",
	}
	for in, want := range tests {
		assert.Equal(t, want, NaturalKey(in), "input %q", in)
	}
}

package search

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	meili "github.com/meilisearch/meilisearch-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"experiences/api/internal/experience"
)

func newPG(t *testing.T) (*PgFTS, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPgFTS(db), mock
}

func TestPgFTSSearchScopesToOwner(t *testing.T) {
	pg, mock := newPG(t)
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM experiences e WHERE .* AND e.user_id = \\$2").
		WithArgs("huerta", int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("FROM experiences e").
		WithArgs("huerta", int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "code", "snippet", "institution", "user_id"}).
			AddRow(int64(3), "Huerta escolar", "H-1", "<mark>huerta</mark>", "IE Las Palmas", int64(7)))

	results, total, err := pg.Search(context.Background(), Query{Text: "huerta", OwnerID: 7})

	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, results, 1)
	assert.Equal(t, int64(3), results[0].ID)
	assert.Equal(t, "IE Las Palmas", results[0].Institution)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgFTSBlankQueryReturnsNothing(t *testing.T) {
	pg, mock := newPG(t)

	results, total, err := pg.Search(context.Background(), Query{Text: "   "})

	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, results)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceFallsBackToPG(t *testing.T) {
	pg, mock := newPG(t)
	mock.ExpectQuery("SELECT count").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("FROM experiences e").WillReturnRows(sqlmock.NewRows([]string{"id", "name", "code", "snippet", "institution", "user_id"}))

	resp := NewService(nil, pg, nil).Search(context.Background(), Query{Text: "lectura"})

	assert.Equal(t, BackendPG, resp.Backend)
	assert.NotNil(t, resp.Results)
	assert.Equal(t, "lectura", resp.Query)
}

func TestServiceSwallowsPGErrors(t *testing.T) {
	pg, mock := newPG(t)
	mock.ExpectQuery("SELECT count").WillReturnError(errors.New("syntax error in tsquery"))

	resp := NewService(nil, pg, nil).Search(context.Background(), Query{Text: "a & b"})

	assert.Empty(t, resp.Results)
	assert.Zero(t, resp.Total)
}

func TestIndexWithoutMeiliIsNoop(t *testing.T) {
	svc := NewService(nil, nil, nil)
	assert.NoError(t, svc.IndexExperience(context.Background(), &experience.Experience{ID: 1}))
}

func TestLoadAllRecordsSplitsLeaders(t *testing.T) {
	pg, mock := newPG(t)
	mock.ExpectQuery("FROM experiences e").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "code", "tl", "rec", "soc", "inst", "state", "user", "leaders"}).
			AddRow(int64(1), "Huerta", "", "", "", "", "IE", int64(2), int64(7), "Ana|Luis"))

	records, err := pg.LoadAllRecords(context.Background())

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"Ana", "Luis"}, records[0].Leaders)
}

func TestRecordFromExperience(t *testing.T) {
	e := &experience.Experience{
		ID:          4,
		Name:        "Huerta",
		UserID:      7,
		Institution: &experience.Institution{Name: "IE Las Palmas"},
		Leaders:     []*experience.Leader{{Name: " Ana "}, {Name: ""}},
	}

	record := RecordFromExperience(e)

	assert.Equal(t, "IE Las Palmas", record.Institution)
	assert.Equal(t, []string{"Ana"}, record.Leaders)
	assert.Equal(t, int64(7), record.UserID)
}

func TestSearchRequestFiltersOwner(t *testing.T) {
	sr := searchRequest(Query{Text: "huerta", OwnerID: 9, Limit: 500, Offset: -3})

	assert.Equal(t, "huerta", sr.Query)
	assert.Equal(t, int64(100), sr.Limit)
	assert.Equal(t, int64(0), sr.Offset)
	assert.Equal(t, []string{"userId = 9"}, sr.Filter)
}

func TestHitToResultPrefersFormatted(t *testing.T) {
	hit := meili.Hit{
		"id":         json.RawMessage(`12`),
		"userId":     json.RawMessage(`7`),
		"name":       json.RawMessage(`"Huerta escolar"`),
		"_formatted": json.RawMessage(`{"name":"<mark>Huerta</mark> escolar","id":"12"}`),
	}

	r := hitToResult(hit)

	assert.Equal(t, int64(12), r.ID)
	assert.Equal(t, int64(7), r.UserID)
	assert.Equal(t, "<mark>Huerta</mark> escolar", r.Name)
}

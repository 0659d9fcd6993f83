package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"experiences/api/internal/experience"
	"experiences/api/internal/permission"
)

func newMock(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStore(db), mock
}

var permissionColumns = []string{"id", "experience_id", "user_id", "approved", "created_at", "expires_at"}

func TestPermissionGetByExperienceIDMissingReturnsNil(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("FROM experience_edit_permissions WHERE experience_id").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(permissionColumns))

	p, err := s.Permissions().GetByExperienceID(context.Background(), 42)

	require.NoError(t, err)
	assert.Nil(t, p)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionGetByExperienceIDScansExpiry(t *testing.T) {
	s, mock := newMock(t)
	created := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	expires := created.Add(30 * time.Minute)
	mock.ExpectQuery("FROM experience_edit_permissions WHERE experience_id").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(permissionColumns).AddRow(int64(1), int64(42), int64(7), true, created, expires))

	p, err := s.Permissions().GetByExperienceID(context.Background(), 42)

	require.NoError(t, err)
	require.NotNil(t, p)
	assert.True(t, p.Approved)
	require.NotNil(t, p.ExpiresAt)
	assert.Equal(t, expires, *p.ExpiresAt)
}

func TestPermissionAddMapsUniqueViolation(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("INSERT INTO experience_edit_permissions").
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := s.Permissions().Add(context.Background(), &permission.Permission{ExperienceID: 42, UserID: 7, CreatedAt: time.Now()})

	assert.ErrorIs(t, err, permission.ErrDuplicate)
}

func TestPermissionAddAssignsID(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("INSERT INTO experience_edit_permissions").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))

	p := &permission.Permission{ExperienceID: 42, UserID: 7, CreatedAt: time.Now()}
	require.NoError(t, s.Permissions().Add(context.Background(), p))
	assert.Equal(t, int64(11), p.ID)
}

func TestPermissionUpdateWithoutRowIsNotRequested(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec("UPDATE experience_edit_permissions").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Permissions().Update(context.Background(), &permission.Permission{ExperienceID: 9})

	assert.ErrorIs(t, err, permission.ErrNotRequested)
}

func TestPermissionListAllIncludesNames(t *testing.T) {
	s, mock := newMock(t)
	created := time.Now().UTC()
	mock.ExpectQuery("FROM experience_edit_permissions p").
		WillReturnRows(sqlmock.NewRows(append(permissionColumns, "name_experiences", "username")).
			AddRow(int64(1), int64(42), int64(7), false, created, nil, "Huerta", "profe.ana"))

	items, err := s.Permissions().ListAll(context.Background())

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Huerta", items[0].ExperienceName)
	assert.Equal(t, "profe.ana", items[0].UserName)
	assert.Nil(t, items[0].ExpiresAt)
}

func TestRolesForUser(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("FROM user_roles ur JOIN roles r").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Profesor").AddRow("SUPERADMIN"))

	roles, err := s.Users().RolesForUser(context.Background(), 7)

	require.NoError(t, err)
	assert.Equal(t, []string{"Profesor", "SUPERADMIN"}, roles)
}

func TestGetUserByEmailNotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("FROM users u").
		WithArgs("ana@ie.edu.co").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.Users().GetUserByEmail(context.Background(), " Ana@IE.edu.co ")

	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestLoadShallowByIDMissingReturnsNil(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("FROM experiences e").
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	item, err := s.Experiences().LoadShallowByID(context.Background(), 404)

	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestLoadShallowByIDNormalizesCollections(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery("FROM experiences e").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name_experiences", "code", "thematic_location", "development_time", "recognition",
			"socialization", "state_experience_id", "state_name", "user_id", "url_pdf", "created_at", "updated_at",
		}).AddRow(int64(1), "Huerta", "H-1", "", nil, "", "", nil, "", int64(7), "", now, now))

	item, err := s.Experiences().LoadShallowByID(context.Background(), 1)

	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "Huerta", item.Name)
	assert.True(t, item.DevelopmentTime.IsZero())
	assert.Zero(t, item.StateID)
	assert.NotNil(t, item.Leaders)
	assert.NotNil(t, item.History)
}

func TestSaveUpdatesExistingAndInsertsNewChildren(t *testing.T) {
	s, mock := newMock(t)
	item := &experience.Experience{
		ID:        5,
		Name:      "Huerta",
		UserID:    7,
		UpdatedAt: time.Now().UTC(),
		Leaders:   []*experience.Leader{{ID: 3, Name: "B", IdentityDocument: "123"}},
		Documents: []*experience.Document{{Name: "Plan", URLLink: "http://x"}},
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE experiences SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE leaders SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO documents").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))
	mock.ExpectCommit()

	require.NoError(t, s.Experiences().Save(context.Background(), item))
	assert.Equal(t, int64(9), item.Documents[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRollsBackOnChildFailure(t *testing.T) {
	s, mock := newMock(t)
	boom := errors.New("disk full")
	item := &experience.Experience{
		ID:      5,
		History: []*experience.HistoryEntry{{Action: "UPDATE", TableName: "Experience"}},
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE experiences SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO history_experiences").WillReturnError(boom)
	mock.ExpectRollback()

	err := s.Experiences().Save(context.Background(), item)

	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertAssignsRootAndChildIDs(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now().UTC()
	item := experience.Build(&experience.CreateRequest{
		Name:            "Lectura",
		UserID:          7,
		ThematicLineIDs: []int64{2},
	}, now)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO experiences").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(77)))
	mock.ExpectQuery("INSERT INTO experience_line_thematics").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery("INSERT INTO history_experiences").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(2)))
	mock.ExpectCommit()

	require.NoError(t, s.Experiences().Insert(context.Background(), item))
	assert.Equal(t, int64(77), item.ID)
	assert.Equal(t, int64(1), item.LineThematics[0].ID)
	assert.Equal(t, int64(2), item.History[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkQueryFiltersActiveRows(t *testing.T) {
	query := linkQuery("experience_grades", "grade_id", "grades", true, graphOptions{names: true, activeOnly: true})

	assert.Contains(t, query, "LEFT JOIN grades c ON c.id = l.grade_id")
	assert.Contains(t, query, "l.description, ")
	assert.Contains(t, query, "AND l.state = TRUE")

	plain := linkQuery("experience_populations", "population_grade_id", "population_grades", false, graphOptions{})
	assert.NotContains(t, plain, "JOIN")
	assert.NotContains(t, plain, "state = TRUE")
}

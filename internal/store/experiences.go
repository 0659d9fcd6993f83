package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"experiences/api/internal/experience"
)

// ExperienceStore persists the Experience aggregate. Children with ID 0 are
// inserted on save; existing children are updated where the merge rules
// allow it and never deleted.
type ExperienceStore struct {
	db *sql.DB
}

func NewExperienceStore(db *sql.DB) *ExperienceStore {
	return &ExperienceStore{db: db}
}

const experienceColumns = `
	e.id, e.name_experiences, e.code, e.thematic_location, e.development_time,
	e.recognition, e.socialization, e.state_experience_id, COALESCE(se.name, ''),
	e.user_id, e.url_pdf, e.created_at, e.updated_at`

const experienceFrom = `
	FROM experiences e
	LEFT JOIN state_experiences se ON se.id = e.state_experience_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExperience(row rowScanner) (*experience.Experience, error) {
	var (
		item            experience.Experience
		developmentTime sql.NullTime
		stateID         sql.NullInt64
	)
	err := row.Scan(
		&item.ID, &item.Name, &item.Code, &item.ThematicLocation, &developmentTime,
		&item.Recognition, &item.Socialization, &stateID, &item.StateName,
		&item.UserID, &item.PDFURL, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if developmentTime.Valid {
		item.DevelopmentTime = developmentTime.Time
	}
	item.StateID = stateID.Int64
	item.Normalize()
	return &item, nil
}

// LoadShallowByID loads the root row only. It returns (nil, nil) when the
// experience does not exist.
func (s *ExperienceStore) LoadShallowByID(ctx context.Context, id int64) (*experience.Experience, error) {
	item, err := scanExperience(s.db.QueryRowContext(ctx, `SELECT `+experienceColumns+experienceFrom+` WHERE e.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load experience %d: %w", id, err)
	}
	return item, nil
}

// LoadByID loads the full aggregate. withDetails also resolves catalogue
// names on link rows, which the merge path does not need.
func (s *ExperienceStore) LoadByID(ctx context.Context, id int64, withDetails bool) (*experience.Experience, error) {
	item, err := s.LoadShallowByID(ctx, id)
	if err != nil || item == nil {
		return item, err
	}
	if err := s.loadGraph(ctx, item, graphOptions{names: withDetails}); err != nil {
		return nil, err
	}
	return item, nil
}

// GetDetailForm loads the aggregate for the admin review form: catalogue
// names resolved and inactive link rows left out.
func (s *ExperienceStore) GetDetailForm(ctx context.Context, id int64) (*experience.Experience, error) {
	item, err := s.LoadShallowByID(ctx, id)
	if err != nil || item == nil {
		return item, err
	}
	if err := s.loadGraph(ctx, item, graphOptions{names: true, activeOnly: true}); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *ExperienceStore) ListAll(ctx context.Context) ([]*experience.Experience, error) {
	return s.list(ctx, `SELECT `+experienceColumns+experienceFrom+` ORDER BY e.id`)
}

func (s *ExperienceStore) ListByUser(ctx context.Context, userID int64) ([]*experience.Experience, error) {
	return s.list(ctx, `SELECT `+experienceColumns+experienceFrom+` WHERE e.user_id = $1 ORDER BY e.id`, userID)
}

func (s *ExperienceStore) list(ctx context.Context, query string, args ...any) ([]*experience.Experience, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list experiences: %w", err)
	}
	defer rows.Close()

	items := make([]*experience.Experience, 0)
	for rows.Next() {
		item, err := scanExperience(rows)
		if err != nil {
			return nil, fmt.Errorf("scan experience: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Insert persists a new aggregate and assigns every generated ID.
func (s *ExperienceStore) Insert(ctx context.Context, item *experience.Experience) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO experiences (
				name_experiences, code, thematic_location, development_time, recognition,
				socialization, state_experience_id, user_id, url_pdf, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id
		`, item.Name, item.Code, item.ThematicLocation, nullTime(item.DevelopmentTime), item.Recognition,
			item.Socialization, nullID(item.StateID), item.UserID, item.PDFURL, item.CreatedAt, item.UpdatedAt,
		).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("insert experience: %w", err)
		}
		return saveChildren(ctx, tx, item)
	})
}

// Save writes the root row and reconciles owned children. Concurrent saves
// of the same experience are last-write-wins on the root row.
func (s *ExperienceStore) Save(ctx context.Context, item *experience.Experience) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE experiences SET
				name_experiences = $2, code = $3, thematic_location = $4, development_time = $5,
				recognition = $6, socialization = $7, state_experience_id = $8, url_pdf = $9,
				updated_at = $10
			WHERE id = $1
		`, item.ID, item.Name, item.Code, item.ThematicLocation, nullTime(item.DevelopmentTime),
			item.Recognition, item.Socialization, nullID(item.StateID), item.PDFURL, item.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update experience %d: %w", item.ID, err)
		}
		if affected, err := result.RowsAffected(); err == nil && affected == 0 {
			return fmt.Errorf("update experience %d: %w", item.ID, sql.ErrNoRows)
		}
		return saveChildren(ctx, tx, item)
	})
}

// SetPDFURL records the location of the generated report.
func (s *ExperienceStore) SetPDFURL(ctx context.Context, id int64, url string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE experiences SET url_pdf = $2 WHERE id = $1`, id, url); err != nil {
		return fmt.Errorf("set pdf url: %w", err)
	}
	return nil
}

func (s *ExperienceStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func saveChildren(ctx context.Context, q queryer, item *experience.Experience) error {
	item.Normalize()
	steps := []func(context.Context, queryer, *experience.Experience) error{
		saveInstitution,
		saveLeaders,
		saveDocuments,
		saveObjectives,
		saveDevelopments,
		saveLinks,
		saveHistory,
	}
	for _, step := range steps {
		if err := step(ctx, q, item); err != nil {
			return err
		}
	}
	return nil
}

func saveInstitution(ctx context.Context, q queryer, item *experience.Experience) error {
	inst := item.Institution
	if inst == nil {
		return nil
	}
	if inst.ID == 0 {
		err := q.QueryRowContext(ctx, `
			INSERT INTO institutions (
				experience_id, name, address, phone, code_dane, email_institutional,
				name_rector, characteristic, territorial_entity, tests_know
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id
		`, item.ID, inst.Name, inst.Address, int64(inst.Phone), inst.CodeDane, inst.EmailInstitutional,
			inst.NameRector, inst.Characteristic, inst.TerritorialEntity, inst.TestsKnow,
		).Scan(&inst.ID)
		if err != nil {
			return fmt.Errorf("insert institution: %w", err)
		}
	} else {
		_, err := q.ExecContext(ctx, `
			UPDATE institutions SET
				name = $2, address = $3, phone = $4, code_dane = $5, email_institutional = $6,
				name_rector = $7, characteristic = $8, territorial_entity = $9, tests_know = $10
			WHERE id = $1
		`, inst.ID, inst.Name, inst.Address, int64(inst.Phone), inst.CodeDane, inst.EmailInstitutional,
			inst.NameRector, inst.Characteristic, inst.TerritorialEntity, inst.TestsKnow)
		if err != nil {
			return fmt.Errorf("update institution: %w", err)
		}
	}

	groups := []struct {
		kind   string
		places []*experience.Place
	}{
		{kind: placeDepartment, places: inst.Departments},
		{kind: placeMunicipality, places: inst.Municipalities},
		{kind: placeCommune, places: inst.Communes},
		{kind: placeEEZone, places: inst.EEZones},
	}
	for _, group := range groups {
		for _, place := range group.places {
			if place.ID != 0 {
				continue
			}
			err := q.QueryRowContext(ctx, `
				INSERT INTO institution_places (institution_id, kind, name) VALUES ($1, $2, $3) RETURNING id
			`, inst.ID, group.kind, place.Name).Scan(&place.ID)
			if err != nil {
				return fmt.Errorf("insert %s: %w", group.kind, err)
			}
		}
	}
	return nil
}

const (
	placeDepartment   = "department"
	placeMunicipality = "municipality"
	placeCommune      = "commune"
	placeEEZone       = "eezone"
)

func saveLeaders(ctx context.Context, q queryer, item *experience.Experience) error {
	for _, leader := range item.Leaders {
		if leader.ID == 0 {
			err := q.QueryRowContext(ctx, `
				INSERT INTO leaders (experience_id, name, identity_document, email, phone, position)
				VALUES ($1, $2, $3, $4, $5, $6) RETURNING id
			`, item.ID, leader.Name, leader.IdentityDocument, leader.Email, int64(leader.Phone), leader.Position).Scan(&leader.ID)
			if err != nil {
				return fmt.Errorf("insert leader: %w", err)
			}
			continue
		}
		_, err := q.ExecContext(ctx, `
			UPDATE leaders SET name = $2, identity_document = $3, email = $4, phone = $5, position = $6
			WHERE id = $1
		`, leader.ID, leader.Name, leader.IdentityDocument, leader.Email, int64(leader.Phone), leader.Position)
		if err != nil {
			return fmt.Errorf("update leader %d: %w", leader.ID, err)
		}
	}
	return nil
}

func saveDocuments(ctx context.Context, q queryer, item *experience.Experience) error {
	for _, document := range item.Documents {
		if document.ID == 0 {
			err := q.QueryRowContext(ctx, `
				INSERT INTO documents (experience_id, name, url_link, url_pdf, url_pdf_experience)
				VALUES ($1, $2, $3, $4, $5) RETURNING id
			`, item.ID, document.Name, document.URLLink, document.URLPDF, document.URLPDFExperience).Scan(&document.ID)
			if err != nil {
				return fmt.Errorf("insert document: %w", err)
			}
			continue
		}
		_, err := q.ExecContext(ctx, `
			UPDATE documents SET name = $2, url_link = $3, url_pdf = $4, url_pdf_experience = $5
			WHERE id = $1
		`, document.ID, document.Name, document.URLLink, document.URLPDF, document.URLPDFExperience)
		if err != nil {
			return fmt.Errorf("update document %d: %w", document.ID, err)
		}
	}
	return nil
}

// saveObjectives only inserts: objectives are append-only records.
func saveObjectives(ctx context.Context, q queryer, item *experience.Experience) error {
	for _, objective := range item.Objectives {
		if objective.ID != 0 {
			continue
		}
		err := q.QueryRowContext(ctx, `
			INSERT INTO objectives (
				experience_id, description_problem, objective_experience, approach,
				methodology, innovation, pmi, nnaj, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id
		`, item.ID, objective.DescriptionProblem, objective.ObjectiveExperience, objective.Approach,
			objective.Methodology, objective.Innovation, objective.Pmi, objective.Nnaj, objective.CreatedAt,
		).Scan(&objective.ID)
		if err != nil {
			return fmt.Errorf("insert objective: %w", err)
		}
		for _, support := range objective.SupportInformations {
			err := q.QueryRowContext(ctx, `
				INSERT INTO support_informations (objective_id, summary, metaphorical_phrase, testimony, follow_evaluation)
				VALUES ($1, $2, $3, $4, $5) RETURNING id
			`, objective.ID, support.Summary, support.MetaphoricalPhrase, support.Testimony, support.FollowEvaluation).Scan(&support.ID)
			if err != nil {
				return fmt.Errorf("insert support information: %w", err)
			}
		}
		for _, monitoring := range objective.Monitorings {
			err := q.QueryRowContext(ctx, `
				INSERT INTO monitorings (objective_id, monitoring_evaluation, sustainability, transfer, result)
				VALUES ($1, $2, $3, $4, $5) RETURNING id
			`, objective.ID, monitoring.MonitoringEvaluation, monitoring.Sustainability, monitoring.Transfer, monitoring.Result).Scan(&monitoring.ID)
			if err != nil {
				return fmt.Errorf("insert monitoring: %w", err)
			}
		}
	}
	return nil
}

func saveDevelopments(ctx context.Context, q queryer, item *experience.Experience) error {
	for _, development := range item.Developments {
		if development.ID != 0 {
			continue
		}
		err := q.QueryRowContext(ctx, `
			INSERT INTO developments (
				experience_id, cross_cutting_project, population, pedagogical_strategies, coverage, covid_pandemic
			) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id
		`, item.ID, development.CrossCuttingProject, development.Population, development.PedagogicalStrategies,
			development.Coverage, development.CovidPandemic,
		).Scan(&development.ID)
		if err != nil {
			return fmt.Errorf("insert development: %w", err)
		}
	}
	return nil
}

func saveLinks(ctx context.Context, q queryer, item *experience.Experience) error {
	for _, link := range item.LineThematics {
		if link.ID != 0 {
			continue
		}
		err := q.QueryRowContext(ctx, `
			INSERT INTO experience_line_thematics (experience_id, line_thematic_id, state, created_at)
			VALUES ($1, $2, $3, $4) RETURNING id
		`, item.ID, link.LineThematicID, link.State, link.CreatedAt).Scan(&link.ID)
		if err != nil {
			return fmt.Errorf("insert thematic line link: %w", err)
		}
	}
	for _, link := range item.Populations {
		if link.ID != 0 {
			continue
		}
		err := q.QueryRowContext(ctx, `
			INSERT INTO experience_populations (experience_id, population_grade_id, state, created_at)
			VALUES ($1, $2, $3, $4) RETURNING id
		`, item.ID, link.PopulationGradeID, link.State, link.CreatedAt).Scan(&link.ID)
		if err != nil {
			return fmt.Errorf("insert population link: %w", err)
		}
	}
	for _, link := range item.Grades {
		if link.ID != 0 {
			if _, err := q.ExecContext(ctx, `UPDATE experience_grades SET description = $2 WHERE id = $1`, link.ID, link.Description); err != nil {
				return fmt.Errorf("update grade link %d: %w", link.ID, err)
			}
			continue
		}
		err := q.QueryRowContext(ctx, `
			INSERT INTO experience_grades (experience_id, grade_id, description, state, created_at)
			VALUES ($1, $2, $3, $4, $5) RETURNING id
		`, item.ID, link.GradeID, link.Description, link.State, link.CreatedAt).Scan(&link.ID)
		if err != nil {
			return fmt.Errorf("insert grade link: %w", err)
		}
	}
	return nil
}

func saveHistory(ctx context.Context, q queryer, item *experience.Experience) error {
	for _, entry := range item.History {
		if entry.ID != 0 {
			continue
		}
		err := q.QueryRowContext(ctx, `
			INSERT INTO history_experiences (experience_id, action, table_name, user_id, created_at)
			VALUES ($1, $2, $3, $4, $5) RETURNING id
		`, item.ID, entry.Action, entry.TableName, entry.UserID, entry.CreatedAt).Scan(&entry.ID)
		if err != nil {
			return fmt.Errorf("insert history: %w", err)
		}
	}
	return nil
}

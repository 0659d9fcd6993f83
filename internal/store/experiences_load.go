package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"experiences/api/internal/experience"
)

type graphOptions struct {
	names      bool
	activeOnly bool
}

func (s *ExperienceStore) loadGraph(ctx context.Context, item *experience.Experience, opts graphOptions) error {
	loaders := []func(context.Context, *experience.Experience, graphOptions) error{
		s.loadInstitution,
		s.loadLeaders,
		s.loadDocuments,
		s.loadObjectives,
		s.loadDevelopments,
		s.loadThematics,
		s.loadGrades,
		s.loadPopulations,
		s.loadHistory,
	}
	for _, load := range loaders {
		if err := load(ctx, item, opts); err != nil {
			return err
		}
	}
	item.Normalize()
	return nil
}

func (s *ExperienceStore) loadInstitution(ctx context.Context, item *experience.Experience, _ graphOptions) error {
	var (
		inst  experience.Institution
		phone int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, address, phone, code_dane, email_institutional, name_rector,
			characteristic, territorial_entity, tests_know
		FROM institutions WHERE experience_id = $1
	`, item.ID).Scan(&inst.ID, &inst.Name, &inst.Address, &phone, &inst.CodeDane, &inst.EmailInstitutional,
		&inst.NameRector, &inst.Characteristic, &inst.TerritorialEntity, &inst.TestsKnow)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load institution: %w", err)
	}
	inst.Phone = uint32(phone)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, name FROM institution_places WHERE institution_id = $1 ORDER BY id
	`, inst.ID)
	if err != nil {
		return fmt.Errorf("load institution places: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			place experience.Place
			kind  string
		)
		if err := rows.Scan(&place.ID, &kind, &place.Name); err != nil {
			return fmt.Errorf("scan institution place: %w", err)
		}
		switch kind {
		case placeDepartment:
			inst.Departments = append(inst.Departments, &place)
		case placeMunicipality:
			inst.Municipalities = append(inst.Municipalities, &place)
		case placeCommune:
			inst.Communes = append(inst.Communes, &place)
		case placeEEZone:
			inst.EEZones = append(inst.EEZones, &place)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate institution places: %w", err)
	}
	item.Institution = &inst
	return nil
}

func (s *ExperienceStore) loadLeaders(ctx context.Context, item *experience.Experience, _ graphOptions) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, identity_document, email, phone, position
		FROM leaders WHERE experience_id = $1 ORDER BY id
	`, item.ID)
	if err != nil {
		return fmt.Errorf("load leaders: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			leader experience.Leader
			phone  int64
		)
		if err := rows.Scan(&leader.ID, &leader.Name, &leader.IdentityDocument, &leader.Email, &phone, &leader.Position); err != nil {
			return fmt.Errorf("scan leader: %w", err)
		}
		leader.Phone = uint64(phone)
		item.Leaders = append(item.Leaders, &leader)
	}
	return rows.Err()
}

func (s *ExperienceStore) loadDocuments(ctx context.Context, item *experience.Experience, _ graphOptions) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, url_link, url_pdf, url_pdf_experience
		FROM documents WHERE experience_id = $1 ORDER BY id
	`, item.ID)
	if err != nil {
		return fmt.Errorf("load documents: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var document experience.Document
		if err := rows.Scan(&document.ID, &document.Name, &document.URLLink, &document.URLPDF, &document.URLPDFExperience); err != nil {
			return fmt.Errorf("scan document: %w", err)
		}
		item.Documents = append(item.Documents, &document)
	}
	return rows.Err()
}

func (s *ExperienceStore) loadObjectives(ctx context.Context, item *experience.Experience, _ graphOptions) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, description_problem, objective_experience, approach, methodology,
			innovation, pmi, nnaj, created_at
		FROM objectives WHERE experience_id = $1 ORDER BY id
	`, item.ID)
	if err != nil {
		return fmt.Errorf("load objectives: %w", err)
	}
	byID := make(map[int64]*experience.Objective)
	for rows.Next() {
		var objective experience.Objective
		if err := rows.Scan(&objective.ID, &objective.DescriptionProblem, &objective.ObjectiveExperience, &objective.Approach,
			&objective.Methodology, &objective.Innovation, &objective.Pmi, &objective.Nnaj, &objective.CreatedAt); err != nil {
			rows.Close()
			return fmt.Errorf("scan objective: %w", err)
		}
		item.Objectives = append(item.Objectives, &objective)
		byID[objective.ID] = &objective
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("close objectives: %w", err)
	}
	if len(byID) == 0 {
		return nil
	}

	supportRows, err := s.db.QueryContext(ctx, `
		SELECT si.id, si.objective_id, si.summary, si.metaphorical_phrase, si.testimony, si.follow_evaluation
		FROM support_informations si
		JOIN objectives o ON o.id = si.objective_id
		WHERE o.experience_id = $1 ORDER BY si.id
	`, item.ID)
	if err != nil {
		return fmt.Errorf("load support informations: %w", err)
	}
	defer supportRows.Close()
	for supportRows.Next() {
		var (
			support     experience.SupportInformation
			objectiveID int64
		)
		if err := supportRows.Scan(&support.ID, &objectiveID, &support.Summary, &support.MetaphoricalPhrase, &support.Testimony, &support.FollowEvaluation); err != nil {
			return fmt.Errorf("scan support information: %w", err)
		}
		if objective, ok := byID[objectiveID]; ok {
			objective.SupportInformations = append(objective.SupportInformations, &support)
		}
	}
	if err := supportRows.Err(); err != nil {
		return err
	}

	monitoringRows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.objective_id, m.monitoring_evaluation, m.sustainability, m.transfer, m.result
		FROM monitorings m
		JOIN objectives o ON o.id = m.objective_id
		WHERE o.experience_id = $1 ORDER BY m.id
	`, item.ID)
	if err != nil {
		return fmt.Errorf("load monitorings: %w", err)
	}
	defer monitoringRows.Close()
	for monitoringRows.Next() {
		var (
			monitoring  experience.Monitoring
			objectiveID int64
		)
		if err := monitoringRows.Scan(&monitoring.ID, &objectiveID, &monitoring.MonitoringEvaluation, &monitoring.Sustainability, &monitoring.Transfer, &monitoring.Result); err != nil {
			return fmt.Errorf("scan monitoring: %w", err)
		}
		if objective, ok := byID[objectiveID]; ok {
			objective.Monitorings = append(objective.Monitorings, &monitoring)
		}
	}
	return monitoringRows.Err()
}

func (s *ExperienceStore) loadDevelopments(ctx context.Context, item *experience.Experience, _ graphOptions) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, cross_cutting_project, population, pedagogical_strategies, coverage, covid_pandemic
		FROM developments WHERE experience_id = $1 ORDER BY id
	`, item.ID)
	if err != nil {
		return fmt.Errorf("load developments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var development experience.Development
		if err := rows.Scan(&development.ID, &development.CrossCuttingProject, &development.Population,
			&development.PedagogicalStrategies, &development.Coverage, &development.CovidPandemic); err != nil {
			return fmt.Errorf("scan development: %w", err)
		}
		item.Developments = append(item.Developments, &development)
	}
	return rows.Err()
}

// linkQuery selects id, reference id, name, [description,] state, created_at
// for a link table, optionally joined with its catalogue and filtered to
// active rows.
func linkQuery(table, refColumn, catalogue string, withDescription bool, opts graphOptions) string {
	name := `''`
	join := ""
	if opts.names {
		name = `COALESCE(c.name, '')`
		join = ` LEFT JOIN ` + catalogue + ` c ON c.id = l.` + refColumn
	}
	description := ""
	if withDescription {
		description = `l.description, `
	}
	query := `SELECT l.id, l.` + refColumn + `, ` + name + `, ` + description + `l.state, l.created_at FROM ` + table + ` l` + join +
		` WHERE l.experience_id = $1`
	if opts.activeOnly {
		query += ` AND l.state = TRUE`
	}
	return query + ` ORDER BY l.id`
}

func (s *ExperienceStore) loadThematics(ctx context.Context, item *experience.Experience, opts graphOptions) error {
	rows, err := s.db.QueryContext(ctx, linkQuery("experience_line_thematics", "line_thematic_id", "line_thematics", false, opts), item.ID)
	if err != nil {
		return fmt.Errorf("load thematic lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var link experience.LineThematicLink
		if err := rows.Scan(&link.ID, &link.LineThematicID, &link.Name, &link.State, &link.CreatedAt); err != nil {
			return fmt.Errorf("scan thematic line: %w", err)
		}
		item.LineThematics = append(item.LineThematics, &link)
	}
	return rows.Err()
}

func (s *ExperienceStore) loadGrades(ctx context.Context, item *experience.Experience, opts graphOptions) error {
	rows, err := s.db.QueryContext(ctx, linkQuery("experience_grades", "grade_id", "grades", true, opts), item.ID)
	if err != nil {
		return fmt.Errorf("load grades: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var link experience.GradeLink
		if err := rows.Scan(&link.ID, &link.GradeID, &link.Name, &link.Description, &link.State, &link.CreatedAt); err != nil {
			return fmt.Errorf("scan grade: %w", err)
		}
		item.Grades = append(item.Grades, &link)
	}
	return rows.Err()
}

func (s *ExperienceStore) loadPopulations(ctx context.Context, item *experience.Experience, opts graphOptions) error {
	rows, err := s.db.QueryContext(ctx, linkQuery("experience_populations", "population_grade_id", "population_grades", false, opts), item.ID)
	if err != nil {
		return fmt.Errorf("load populations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var link experience.PopulationLink
		if err := rows.Scan(&link.ID, &link.PopulationGradeID, &link.Name, &link.State, &link.CreatedAt); err != nil {
			return fmt.Errorf("scan population: %w", err)
		}
		item.Populations = append(item.Populations, &link)
	}
	return rows.Err()
}

func (s *ExperienceStore) loadHistory(ctx context.Context, item *experience.Experience, _ graphOptions) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action, table_name, user_id, created_at
		FROM history_experiences WHERE experience_id = $1 ORDER BY id
	`, item.ID)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var entry experience.HistoryEntry
		if err := rows.Scan(&entry.ID, &entry.Action, &entry.TableName, &entry.UserID, &entry.CreatedAt); err != nil {
			return fmt.Errorf("scan history: %w", err)
		}
		item.History = append(item.History, &entry)
	}
	return rows.Err()
}

package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS searches experiences with PostgreSQL full-text search over the
// generated search_vector column.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

const tsQuery = "websearch_to_tsquery('spanish', $1)"

func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	where := "e.search_vector @@ " + tsQuery
	args := []any{q.Text}
	if q.OwnerID > 0 {
		where += " AND e.user_id = $2"
		args = append(args, q.OwnerID)
	}

	var total int
	if err := p.db.QueryRowContext(ctx, "SELECT count(*) FROM experiences e WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`
		SELECT e.id, e.name_experiences, e.code,
			ts_headline('spanish', coalesce(e.recognition, '') || ' ' || coalesce(e.thematic_location, ''), %s,
				'MaxFragments=1,MaxWords=30,StartSel=<mark>,StopSel=</mark>') AS snippet,
			COALESCE(i.name, ''), e.user_id
		FROM experiences e
		LEFT JOIN institutions i ON i.experience_id = e.id
		WHERE %s
		ORDER BY ts_rank(e.search_vector, %s) DESC, e.id DESC
		LIMIT %d OFFSET %d`,
		tsQuery, where, tsQuery, normalizeLimit(q.Limit), max(q.Offset, 0))

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Name, &r.Code, &r.Snippet, &r.Institution, &r.UserID); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]Record, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT e.id, e.name_experiences, e.code, e.thematic_location, e.recognition, e.socialization,
			COALESCE(i.name, ''), COALESCE(e.state_experience_id, 0), e.user_id,
			COALESCE((SELECT string_agg(l.name, '|' ORDER BY l.id) FROM leaders l WHERE l.experience_id = e.id), '')
		FROM experiences e
		LEFT JOIN institutions i ON i.experience_id = e.id
		ORDER BY e.id
	`)
	if err != nil {
		return nil, fmt.Errorf("load experiences: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var (
			r       Record
			leaders string
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Code, &r.ThematicLocation, &r.Recognition, &r.Socialization,
			&r.Institution, &r.StateID, &r.UserID, &leaders); err != nil {
			return nil, fmt.Errorf("scan experience: %w", err)
		}
		r.Leaders = splitLeaders(leaders)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate experiences: %w", err)
	}
	return records, nil
}

func splitLeaders(joined string) []string {
	leaders := []string{}
	for _, name := range strings.Split(joined, "|") {
		if name = strings.TrimSpace(name); name != "" {
			leaders = append(leaders, name)
		}
	}
	return leaders
}

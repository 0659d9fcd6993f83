// Package search indexes experiences for full-text lookup. Meilisearch is
// preferred; PostgreSQL full-text search is the fallback.
package search

import (
	"strings"

	"experiences/api/internal/experience"
)

// Result is a single search hit returned to the caller.
type Result struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Code        string `json:"code,omitempty"`
	Snippet     string `json:"snippet"`
	Institution string `json:"institution,omitempty"`
	UserID      int64  `json:"userId"`
}

// Query describes a search request. A positive OwnerID restricts hits to
// experiences registered by that user.
type Query struct {
	Text    string
	OwnerID int64
	Limit   int
	Offset  int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Backend string   `json:"backend"`
}

// Record is the data we index for an experience.
type Record struct {
	ID               int64    `json:"id"`
	Name             string   `json:"name"`
	Code             string   `json:"code"`
	ThematicLocation string   `json:"thematicLocation"`
	Recognition      string   `json:"recognition"`
	Socialization    string   `json:"socialization"`
	Institution      string   `json:"institution"`
	Leaders          []string `json:"leaders"`
	StateID          int64    `json:"stateId"`
	UserID           int64    `json:"userId"`
}

func RecordFromExperience(e *experience.Experience) Record {
	record := Record{
		ID:               e.ID,
		Name:             e.Name,
		Code:             e.Code,
		ThematicLocation: e.ThematicLocation,
		Recognition:      e.Recognition,
		Socialization:    e.Socialization,
		StateID:          e.StateID,
		UserID:           e.UserID,
		Leaders:          []string{},
	}
	if e.Institution != nil {
		record.Institution = e.Institution.Name
	}
	for _, leader := range e.Leaders {
		if name := strings.TrimSpace(leader.Name); name != "" {
			record.Leaders = append(record.Leaders, name)
		}
	}
	return record
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}

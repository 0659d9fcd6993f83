package experience

import "time"

const (
	historyActionCreate = "CREATE"
	historyTable        = "Experience"
)

// Builder assembles a new aggregate from a CreateRequest. Each With step is
// recorded and replayed by Build so every child shares the same timestamp.
type Builder struct {
	req   *CreateRequest
	steps []func(*Experience, time.Time)
}

func NewBuilder(req *CreateRequest) *Builder {
	if req == nil {
		req = &CreateRequest{}
	}
	return &Builder{req: req}
}

func (b *Builder) WithInstitution() *Builder {
	if b.req.Institution == nil {
		return b
	}
	return b.step(func(e *Experience, _ time.Time) {
		mergeInstitution(e, b.req.Institution)
	})
}

func (b *Builder) WithDocuments() *Builder {
	return b.step(func(e *Experience, _ time.Time) {
		mergeDocuments(e, b.req.Documents)
	})
}

func (b *Builder) WithDevelopments() *Builder {
	return b.step(func(e *Experience, _ time.Time) {
		appendDevelopments(e, b.req.Developments)
	})
}

func (b *Builder) WithLeaders() *Builder {
	return b.step(func(e *Experience, _ time.Time) {
		mergeLeaders(e, b.req.Leaders)
	})
}

func (b *Builder) WithObjectives() *Builder {
	return b.step(func(e *Experience, now time.Time) {
		appendObjectives(e, b.req.Objectives, now)
	})
}

func (b *Builder) WithThematics() *Builder {
	return b.step(func(e *Experience, now time.Time) {
		e.LineThematics = linkThematics(e.LineThematics, b.req.ThematicLineIDs, now)
	})
}

func (b *Builder) WithGrades() *Builder {
	return b.step(func(e *Experience, now time.Time) {
		mergeGrades(e, b.req.Grades, now)
	})
}

func (b *Builder) WithPopulations() *Builder {
	return b.step(func(e *Experience, now time.Time) {
		e.Populations = linkPopulations(e.Populations, b.req.PopulationGradeIDs, now)
	})
}

// WithHistory records the supplied history rows, or a single CREATE row
// attributed to userID when the request carries none.
func (b *Builder) WithHistory(userID int64) *Builder {
	return b.step(func(e *Experience, now time.Time) {
		if len(b.req.History) > 0 {
			appendHistory(e, b.req.History, now)
			return
		}
		e.History = append(e.History, &HistoryEntry{
			Action:    historyActionCreate,
			TableName: historyTable,
			UserID:    userID,
			CreatedAt: now,
		})
	})
}

// Build returns the assembled aggregate with every collection initialised.
func (b *Builder) Build(now time.Time) *Experience {
	e := &Experience{
		Name:             b.req.Name,
		Code:             b.req.Code,
		ThematicLocation: b.req.ThematicLocation,
		DevelopmentTime:  b.req.DevelopmentTime,
		Recognition:      b.req.Recognition,
		Socialization:    b.req.Socialization,
		StateID:          b.req.StateID,
		UserID:           b.req.UserID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	e.Normalize()
	for _, apply := range b.steps {
		apply(e, now)
	}
	e.Normalize()
	return e
}

func (b *Builder) step(fn func(*Experience, time.Time)) *Builder {
	b.steps = append(b.steps, fn)
	return b
}

// Build runs the full registration chain for req.
func Build(req *CreateRequest, now time.Time) *Experience {
	userID := int64(0)
	if req != nil {
		userID = req.UserID
	}
	return NewBuilder(req).
		WithInstitution().
		WithDocuments().
		WithDevelopments().
		WithLeaders().
		WithObjectives().
		WithThematics().
		WithGrades().
		WithPopulations().
		WithHistory(userID).
		Build(now)
}

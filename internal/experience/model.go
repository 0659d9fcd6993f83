// Package experience holds the Experience aggregate and the rules that
// build it from a registration request and merge sparse patches into it.
package experience

import "time"

// Experience is the aggregate root. Owned collections hold pointers so a
// merge can update an element in place without replacing it.
type Experience struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Code             string    `json:"code"`
	ThematicLocation string    `json:"thematicLocation"`
	DevelopmentTime  time.Time `json:"developmentTime"`
	Recognition      string    `json:"recognition"`
	Socialization    string    `json:"socialization"`
	StateID          int64     `json:"stateId"`
	StateName        string    `json:"stateName,omitempty"`
	UserID           int64     `json:"userId"`
	PDFURL           string    `json:"pdfUrl,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`

	Institution   *Institution        `json:"institution,omitempty"`
	Leaders       []*Leader           `json:"leaders"`
	Documents     []*Document         `json:"documents"`
	Objectives    []*Objective        `json:"objectives"`
	Developments  []*Development      `json:"developments"`
	LineThematics []*LineThematicLink `json:"lineThematics"`
	Grades        []*GradeLink        `json:"grades"`
	Populations   []*PopulationLink   `json:"populations"`
	History       []*HistoryEntry     `json:"history"`
}

type Institution struct {
	ID                 int64    `json:"id"`
	Name               string   `json:"name"`
	Address            string   `json:"address"`
	Phone              uint32   `json:"phone"`
	CodeDane           string   `json:"codeDane"`
	EmailInstitutional string   `json:"emailInstitutional"`
	NameRector         string   `json:"nameRector"`
	Characteristic     string   `json:"characteristic"`
	TerritorialEntity  string   `json:"territorialEntity"`
	TestsKnow          string   `json:"testsKnow"`
	Departments        []*Place `json:"departments"`
	Municipalities     []*Place `json:"municipalities"`
	Communes           []*Place `json:"communes"`
	EEZones            []*Place `json:"eeZones"`
}

// Place is a name-only reference row hanging off an institution.
type Place struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Leader struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	IdentityDocument string `json:"identityDocument"`
	Email            string `json:"email"`
	Phone            uint64 `json:"phone"`
	Position         string `json:"position"`
}

type Document struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	URLLink          string `json:"urlLink"`
	URLPDF           string `json:"urlPdf"`
	URLPDFExperience string `json:"urlPdfExperience"`
}

type Objective struct {
	ID                  int64                 `json:"id"`
	DescriptionProblem  string                `json:"descriptionProblem"`
	ObjectiveExperience string                `json:"objectiveExperience"`
	Approach            string                `json:"approach"`
	Methodology         string                `json:"methodology"`
	Innovation          string                `json:"innovation"`
	Pmi                 string                `json:"pmi"`
	Nnaj                string                `json:"nnaj"`
	CreatedAt           time.Time             `json:"createdAt"`
	SupportInformations []*SupportInformation `json:"supportInformations"`
	Monitorings         []*Monitoring         `json:"monitorings"`
}

type SupportInformation struct {
	ID                 int64  `json:"id"`
	Summary            string `json:"summary"`
	MetaphoricalPhrase string `json:"metaphoricalPhrase"`
	Testimony          string `json:"testimony"`
	FollowEvaluation   string `json:"followEvaluation"`
}

type Monitoring struct {
	ID                   int64  `json:"id"`
	MonitoringEvaluation string `json:"monitoringEvaluation"`
	Sustainability       string `json:"sustainability"`
	Transfer             string `json:"transfer"`
	Result               string `json:"result"`
}

type Development struct {
	ID                    int64  `json:"id"`
	CrossCuttingProject   string `json:"crossCuttingProject"`
	Population            string `json:"population"`
	PedagogicalStrategies string `json:"pedagogicalStrategies"`
	Coverage              string `json:"coverage"`
	CovidPandemic         string `json:"covidPandemic"`
}

// LineThematicLink, GradeLink and PopulationLink reference catalogue rows.
// Name is filled by detail loaders only and never written back.
type LineThematicLink struct {
	ID             int64     `json:"id"`
	LineThematicID int64     `json:"lineThematicId"`
	Name           string    `json:"name,omitempty"`
	State          bool      `json:"state"`
	CreatedAt      time.Time `json:"createdAt"`
}

type GradeLink struct {
	ID          int64     `json:"id"`
	GradeID     int64     `json:"gradeId"`
	Name        string    `json:"name,omitempty"`
	Description string    `json:"description"`
	State       bool      `json:"state"`
	CreatedAt   time.Time `json:"createdAt"`
}

type PopulationLink struct {
	ID                int64     `json:"id"`
	PopulationGradeID int64     `json:"populationGradeId"`
	Name              string    `json:"name,omitempty"`
	State             bool      `json:"state"`
	CreatedAt         time.Time `json:"createdAt"`
}

// HistoryEntry is an audit row. Entries are only ever appended.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`
	TableName string    `json:"tableName"`
	UserID    int64     `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Normalize makes every owned collection non-nil, including the nested
// collections of the institution and of each objective.
func (e *Experience) Normalize() {
	if e == nil {
		return
	}
	if e.Leaders == nil {
		e.Leaders = []*Leader{}
	}
	if e.Documents == nil {
		e.Documents = []*Document{}
	}
	if e.Objectives == nil {
		e.Objectives = []*Objective{}
	}
	if e.Developments == nil {
		e.Developments = []*Development{}
	}
	if e.LineThematics == nil {
		e.LineThematics = []*LineThematicLink{}
	}
	if e.Grades == nil {
		e.Grades = []*GradeLink{}
	}
	if e.Populations == nil {
		e.Populations = []*PopulationLink{}
	}
	if e.History == nil {
		e.History = []*HistoryEntry{}
	}
	for _, objective := range e.Objectives {
		objective.normalize()
	}
	e.Institution.normalize()
}

func (i *Institution) normalize() {
	if i == nil {
		return
	}
	if i.Departments == nil {
		i.Departments = []*Place{}
	}
	if i.Municipalities == nil {
		i.Municipalities = []*Place{}
	}
	if i.Communes == nil {
		i.Communes = []*Place{}
	}
	if i.EEZones == nil {
		i.EEZones = []*Place{}
	}
}

func (o *Objective) normalize() {
	if o == nil {
		return
	}
	if o.SupportInformations == nil {
		o.SupportInformations = []*SupportInformation{}
	}
	if o.Monitorings == nil {
		o.Monitorings = []*Monitoring{}
	}
}

// FindLeader returns the leader whose identity document matches key after
// normalisation, or nil.
func (e *Experience) FindLeader(identityDocument string) *Leader {
	key := NaturalKey(identityDocument)
	if key == "" {
		return nil
	}
	for _, leader := range e.Leaders {
		if NaturalKey(leader.IdentityDocument) == key {
			return leader
		}
	}
	return nil
}

// FindDocument returns the document whose name matches after
// normalisation, or nil.
func (e *Experience) FindDocument(name string) *Document {
	key := NaturalKey(name)
	if key == "" {
		return nil
	}
	for _, document := range e.Documents {
		if NaturalKey(document.Name) == key {
			return document
		}
	}
	return nil
}

func (e *Experience) FindGrade(gradeID int64) *GradeLink {
	if gradeID <= 0 {
		return nil
	}
	for _, grade := range e.Grades {
		if grade.GradeID == gradeID {
			return grade
		}
	}
	return nil
}

// FirstLeader is used by report headers and notification payloads.
func (e *Experience) FirstLeader() *Leader {
	if e == nil || len(e.Leaders) == 0 {
		return nil
	}
	return e.Leaders[0]
}

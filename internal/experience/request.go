package experience

import "time"

// PatchRequest is a sparse update. Blank strings, nil pointers and
// non-positive numbers mean "not provided"; see ApplyPatch.
type PatchRequest struct {
	ExperienceID     int64      `json:"experienceId"`
	UserID           int64      `json:"userId"`
	Name             string     `json:"name"`
	Code             string     `json:"code"`
	ThematicLocation string     `json:"thematicLocation"`
	DevelopmentTime  *time.Time `json:"developmentTime"`
	Recognition      string     `json:"recognition"`
	Socialization    string     `json:"socialization"`
	StateID          *int64     `json:"stateId"`

	Leaders            []LeaderInput      `json:"leaders"`
	Institution        *InstitutionInput  `json:"institution"`
	Documents          []DocumentInput    `json:"documents"`
	Objectives         []ObjectiveInput   `json:"objectives"`
	Developments       []DevelopmentInput `json:"developments"`
	History            []HistoryInput     `json:"history"`
	PopulationGradeIDs []int64            `json:"populationGradeIds"`
	ThematicLineIDs    []int64            `json:"thematicLineIds"`
	Grades             []GradeInput       `json:"grades"`
}

// CreateRequest carries a full registration.
type CreateRequest struct {
	Name             string    `json:"name"`
	Code             string    `json:"code"`
	ThematicLocation string    `json:"thematicLocation"`
	DevelopmentTime  time.Time `json:"developmentTime"`
	Recognition      string    `json:"recognition"`
	Socialization    string    `json:"socialization"`
	StateID          int64     `json:"stateId"`
	UserID           int64     `json:"userId"`

	Institution        *InstitutionInput  `json:"institution"`
	Leaders            []LeaderInput      `json:"leaders"`
	Documents          []DocumentInput    `json:"documents"`
	Objectives         []ObjectiveInput   `json:"objectives"`
	Developments       []DevelopmentInput `json:"developments"`
	History            []HistoryInput     `json:"history"`
	PopulationGradeIDs []int64            `json:"populationGradeIds"`
	ThematicLineIDs    []int64            `json:"thematicLineIds"`
	Grades             []GradeInput       `json:"grades"`
}

type LeaderInput struct {
	Name             string  `json:"name"`
	IdentityDocument string  `json:"identityDocument"`
	Email            string  `json:"email"`
	Phone            *uint64 `json:"phone"`
	Position         string  `json:"position"`
}

type DocumentInput struct {
	Name             string `json:"name"`
	URLLink          string `json:"urlLink"`
	URLPDF           string `json:"urlPdf"`
	URLPDFExperience string `json:"urlPdfExperience"`
}

// GradeInput references a grade catalogue row by ID. Code and Name are
// accepted for compatibility with catalogue payloads and ignored.
type GradeInput struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ObjectiveInput struct {
	DescriptionProblem  string                    `json:"descriptionProblem"`
	ObjectiveExperience string                    `json:"objectiveExperience"`
	Approach            string                    `json:"approach"`
	Methodology         string                    `json:"methodology"`
	Innovation          string                    `json:"innovation"`
	Pmi                 string                    `json:"pmi"`
	Nnaj                string                    `json:"nnaj"`
	SupportInformations []SupportInformationInput `json:"supportInformations"`
	Monitorings         []MonitoringInput         `json:"monitorings"`
}

type SupportInformationInput struct {
	Summary            string `json:"summary"`
	MetaphoricalPhrase string `json:"metaphoricalPhrase"`
	Testimony          string `json:"testimony"`
	FollowEvaluation   string `json:"followEvaluation"`
}

type MonitoringInput struct {
	MonitoringEvaluation string `json:"monitoringEvaluation"`
	Sustainability       string `json:"sustainability"`
	Transfer             string `json:"transfer"`
	Result               string `json:"result"`
}

type DevelopmentInput struct {
	CrossCuttingProject   string `json:"crossCuttingProject"`
	Population            string `json:"population"`
	PedagogicalStrategies string `json:"pedagogicalStrategies"`
	Coverage              string `json:"coverage"`
	CovidPandemic         string `json:"covidPandemic"`
}

type HistoryInput struct {
	Action    string `json:"action"`
	TableName string `json:"tableName"`
	UserID    int64  `json:"userId"`
}

type InstitutionInput struct {
	Name               string       `json:"name"`
	Address            string       `json:"address"`
	Phone              *uint32      `json:"phone"`
	CodeDane           string       `json:"codeDane"`
	EmailInstitutional string       `json:"emailInstitutional"`
	NameRector         string       `json:"nameRector"`
	Characteristic     string       `json:"characteristic"`
	TerritorialEntity  string       `json:"territorialEntity"`
	TestsKnow          string       `json:"testsKnow"`
	Departments        []PlaceInput `json:"departments"`
	Municipalities     []PlaceInput `json:"municipalities"`
	Communes           []PlaceInput `json:"communes"`
	EEZones            []PlaceInput `json:"eeZones"`
}

type PlaceInput struct {
	Name string `json:"name"`
}

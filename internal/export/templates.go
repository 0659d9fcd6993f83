package export

import (
	"bytes"
	"embed"
	"html/template"
	"strconv"
	"strings"
	"time"

	"experiences/api/internal/experience"
)

//go:embed templates/*.html
var templateFS embed.FS

var experienceTemplate = template.Must(
	template.New("experience.html").Funcs(template.FuncMap{
		"orDash": orDash,
		"inc":    func(i int) int { return i + 1 },
		"date": func(t time.Time) string {
			if t.IsZero() {
				return "—"
			}
			return t.Format("2006-01-02")
		},
	}).ParseFS(templateFS, "templates/experience.html"),
)

// Field is a labelled value in a report section.
type Field struct {
	Label string
	Value string
}

// Section is a titled block of fields. Groups repeat the same labels for
// each element of a collection (one group per leader, objective, ...).
type Section struct {
	Title  string
	Fields []Field
	Groups [][]Field
}

type Link struct {
	Name string
	URL  string
}

// TemplateData holds data for the experience report template
type TemplateData struct {
	Name        string
	Institution string
	CreatedBy   string
	CreatedAt   time.Time
	Sections    []Section
	Links       []Link
	GeneratedAt time.Time
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "—"
	}
	return value
}

func joinOr(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	return strings.Join(values, ", ")
}

func firstPlace(places []*experience.Place) string {
	for _, place := range places {
		if place != nil && place.Name != "" {
			return place.Name
		}
	}
	return ""
}

func formatPhone[T uint32 | uint64](phone T) string {
	if phone == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(phone), 10)
}

// BuildTemplateData lays the aggregate out in report order: experience,
// development, institution, leaders, objectives and requested links.
func BuildTemplateData(e *experience.Experience, createdBy string, now time.Time) TemplateData {
	data := TemplateData{
		Name:        e.Name,
		CreatedBy:   createdBy,
		CreatedAt:   e.CreatedAt,
		GeneratedAt: now,
	}
	if e.Institution != nil {
		data.Institution = e.Institution.Name
	}

	thematics := make([]string, 0, len(e.LineThematics))
	for _, link := range e.LineThematics {
		if link.Name != "" {
			thematics = append(thematics, link.Name)
		}
	}
	grades := make([]string, 0, len(e.Grades))
	for _, link := range e.Grades {
		label := strings.TrimSpace(link.Description)
		if link.Name != "" {
			label = strings.TrimSpace(label + " (" + link.Name + ")")
		}
		if label != "" {
			grades = append(grades, label)
		}
	}
	populations := make([]string, 0, len(e.Populations))
	for _, link := range e.Populations {
		if link.Name != "" {
			populations = append(populations, link.Name)
		}
	}

	developmentTime := ""
	if !e.DevelopmentTime.IsZero() {
		developmentTime = e.DevelopmentTime.Format("2006-01-02")
	}

	data.Sections = append(data.Sections, Section{
		Title: "Experiencia Significativa",
		Fields: []Field{
			{"Nombre de la Experiencia Significativa", e.Name},
			{"Código", e.Code},
			{"Estado de desarrollo", e.StateName},
			{"Área principal que se desarrolla", e.ThematicLocation},
			{"Tiempo de desarrollo", developmentTime},
			{"Enfoque temático", joinOr(thematics, "No disponible")},
			{"Grados", joinOr(grades, "No registrados")},
			{"Grupo poblacional", joinOr(populations, "No registrado")},
		},
	})

	development := Section{
		Title: "Desarrollo de la Experiencia",
		Fields: []Field{
			{"Reconocimiento de la Experiencia Significativa", e.Recognition},
			{"La Experiencia Significativa cuenta con", e.Socialization},
		},
	}
	for _, dev := range e.Developments {
		development.Groups = append(development.Groups, []Field{
			{"Proyecto transversal", dev.CrossCuttingProject},
			{"Modelo educativo", dev.Population},
			{"Estrategias pedagógicas", dev.PedagogicalStrategies},
			{"Cobertura", dev.Coverage},
			{"Pandemia COVID-19", dev.CovidPandemic},
		})
	}
	data.Sections = append(data.Sections, development)

	if inst := e.Institution; inst != nil {
		data.Sections = append(data.Sections, Section{
			Title: "Identificación Institucional",
			Fields: []Field{
				{"Nombre", inst.Name},
				{"Dirección", inst.Address},
				{"Teléfono", formatPhone(inst.Phone)},
				{"Email", inst.EmailInstitutional},
				{"Código DANE", inst.CodeDane},
				{"Rector(a)", inst.NameRector},
				{"Características del EE", inst.Characteristic},
				{"Entidad Territorial Certificada (ETC)", inst.TerritorialEntity},
				{"Departamento", firstPlace(inst.Departments)},
				{"Municipio", firstPlace(inst.Municipalities)},
				{"Comuna", firstPlace(inst.Communes)},
				{"Zona", firstPlace(inst.EEZones)},
			},
		})
	}

	if len(e.Leaders) > 0 {
		leaders := Section{Title: "Datos Líder de la Experiencia Significativa"}
		for _, leader := range e.Leaders {
			leaders.Groups = append(leaders.Groups, []Field{
				{"Líder de la Experiencia Significativa", leader.Name},
				{"Número de identificación", leader.IdentityDocument},
				{"Correo electrónico", strings.ToLower(leader.Email)},
				{"Número de contacto", formatPhone(leader.Phone)},
				{"Tipo de vinculación", leader.Position},
			})
		}
		data.Sections = append(data.Sections, leaders)
	}

	if len(e.Objectives) > 0 {
		objectives := Section{Title: "Fundamentación Teórica y Metodológica"}
		for _, objective := range e.Objectives {
			group := []Field{
				{"Descripción del problema", objective.DescriptionProblem},
				{"Objetivo propuesto", objective.ObjectiveExperience},
				{"Enfoque", objective.Approach},
				{"Metodología", objective.Methodology},
				{"Innovación", objective.Innovation},
				{"Articulación con el PEI y el PMI", objective.Pmi},
				{"Coherencia con el desarrollo integral de los NNAJ", objective.Nnaj},
			}
			for _, support := range objective.SupportInformations {
				group = append(group,
					Field{"Reorganización y actualización permanente", support.Summary},
					Field{"Empoderamiento de la comunidad educativa", support.MetaphoricalPhrase},
					Field{"Recursos y métodos novedosos", support.Testimony},
					Field{"Permanencia y mejora continua", support.FollowEvaluation},
				)
			}
			for _, monitoring := range objective.Monitorings {
				group = append(group,
					Field{"Mecanismos de réplica", monitoring.MonitoringEvaluation},
					Field{"Seguimiento y evaluación", monitoring.Sustainability},
					Field{"Transferencia", monitoring.Transfer},
					Field{"Resultados", monitoring.Result},
				)
			}
			objectives.Groups = append(objectives.Groups, group)
		}
		data.Sections = append(data.Sections, objectives)
	}

	for _, document := range e.Documents {
		data.Links = append(data.Links, Link{Name: document.Name, URL: document.URLLink})
	}
	return data
}

// RenderExperienceHTML renders the report template with provided data
func RenderExperienceHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := experienceTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

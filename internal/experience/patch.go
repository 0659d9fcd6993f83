package experience

import "time"

// ApplyPatch merges req into e in place. It never persists and does
// nothing when either argument is nil.
//
// Scalars are overwritten only when present: non-blank strings, non-nil
// positive numbers, non-zero times. A zero value therefore cannot clear
// a field. Leaders, documents and grades are matched by natural key and
// updated in place; thematic lines and populations are id sets; objectives,
// developments and history are appended unconditionally. UpdatedAt moves
// to now.
func ApplyPatch(e *Experience, req *PatchRequest, now time.Time) {
	if e == nil || req == nil {
		return
	}
	e.Normalize()

	setString(&e.Name, req.Name)
	setString(&e.Code, req.Code)
	setString(&e.ThematicLocation, req.ThematicLocation)
	if req.DevelopmentTime != nil && !req.DevelopmentTime.IsZero() {
		e.DevelopmentTime = *req.DevelopmentTime
	}
	setString(&e.Recognition, req.Recognition)
	setString(&e.Socialization, req.Socialization)
	setInt64(&e.StateID, req.StateID)

	mergeLeaders(e, req.Leaders)
	if req.Institution != nil {
		mergeInstitution(e, req.Institution)
	}
	mergeDocuments(e, req.Documents)
	mergeGrades(e, req.Grades, now)
	e.LineThematics = linkThematics(e.LineThematics, req.ThematicLineIDs, now)
	e.Populations = linkPopulations(e.Populations, req.PopulationGradeIDs, now)
	appendObjectives(e, req.Objectives, now)
	appendDevelopments(e, req.Developments)
	appendHistory(e, req.History, now)
	if !now.IsZero() {
		e.UpdatedAt = now
	}
}

func setString(target *string, value string) {
	if present(value) {
		*target = value
	}
}

func setInt64(target *int64, value *int64) {
	if value != nil && *value > 0 {
		*target = *value
	}
}

func setUint64(target *uint64, value *uint64) {
	if value != nil && *value > 0 {
		*target = *value
	}
}

func setUint32(target *uint32, value *uint32) {
	if value != nil && *value > 0 {
		*target = *value
	}
}

func mergeLeaders(e *Experience, inputs []LeaderInput) {
	for _, in := range inputs {
		if existing := e.FindLeader(in.IdentityDocument); existing != nil {
			updateLeaderDetails(existing, in)
			continue
		}
		if !anyPresent(in.Name, in.IdentityDocument, in.Email, in.Position) && (in.Phone == nil || *in.Phone == 0) {
			continue
		}
		leader := &Leader{}
		updateLeader(leader, in)
		e.Leaders = append(e.Leaders, leader)
	}
}

func updateLeader(leader *Leader, in LeaderInput) {
	setString(&leader.IdentityDocument, in.IdentityDocument)
	updateLeaderDetails(leader, in)
}

// updateLeaderDetails leaves the identity document alone so a matched
// leader keeps its stored key.
func updateLeaderDetails(leader *Leader, in LeaderInput) {
	setString(&leader.Name, in.Name)
	setString(&leader.Email, in.Email)
	setUint64(&leader.Phone, in.Phone)
	setString(&leader.Position, in.Position)
}

func mergeDocuments(e *Experience, inputs []DocumentInput) {
	for _, in := range inputs {
		if existing := e.FindDocument(in.Name); existing != nil {
			updateDocumentLinks(existing, in)
			continue
		}
		if !anyPresent(in.Name, in.URLLink, in.URLPDF, in.URLPDFExperience) {
			continue
		}
		document := &Document{}
		updateDocument(document, in)
		e.Documents = append(e.Documents, document)
	}
}

func updateDocument(document *Document, in DocumentInput) {
	setString(&document.Name, in.Name)
	updateDocumentLinks(document, in)
}

func updateDocumentLinks(document *Document, in DocumentInput) {
	setString(&document.URLLink, in.URLLink)
	setString(&document.URLPDF, in.URLPDF)
	setString(&document.URLPDFExperience, in.URLPDFExperience)
}

// mergeGrades keys on the catalogue grade id. Touching a grade that is
// already linked only refreshes its description.
func mergeGrades(e *Experience, inputs []GradeInput, now time.Time) {
	for _, in := range inputs {
		if in.ID <= 0 {
			continue
		}
		if existing := e.FindGrade(in.ID); existing != nil {
			setString(&existing.Description, in.Description)
			continue
		}
		e.Grades = append(e.Grades, &GradeLink{
			GradeID:     in.ID,
			Description: in.Description,
			State:       true,
			CreatedAt:   now,
		})
	}
}

func linkThematics(links []*LineThematicLink, ids []int64, now time.Time) []*LineThematicLink {
	seen := make(map[int64]struct{}, len(links))
	for _, link := range links {
		seen[link.LineThematicID] = struct{}{}
	}
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		links = append(links, &LineThematicLink{LineThematicID: id, State: true, CreatedAt: now})
	}
	return links
}

func linkPopulations(links []*PopulationLink, ids []int64, now time.Time) []*PopulationLink {
	seen := make(map[int64]struct{}, len(links))
	for _, link := range links {
		seen[link.PopulationGradeID] = struct{}{}
	}
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		links = append(links, &PopulationLink{PopulationGradeID: id, State: true, CreatedAt: now})
	}
	return links
}

func mergeInstitution(e *Experience, in *InstitutionInput) {
	if e.Institution == nil {
		e.Institution = &Institution{}
	}
	inst := e.Institution
	inst.normalize()

	setString(&inst.Name, in.Name)
	setString(&inst.Address, in.Address)
	setUint32(&inst.Phone, in.Phone)
	setString(&inst.CodeDane, in.CodeDane)
	setString(&inst.EmailInstitutional, in.EmailInstitutional)
	setString(&inst.NameRector, in.NameRector)
	setString(&inst.Characteristic, in.Characteristic)
	setString(&inst.TerritorialEntity, in.TerritorialEntity)
	setString(&inst.TestsKnow, in.TestsKnow)

	inst.Departments = appendPlaces(inst.Departments, in.Departments)
	inst.Municipalities = appendPlaces(inst.Municipalities, in.Municipalities)
	inst.Communes = appendPlaces(inst.Communes, in.Communes)
	inst.EEZones = appendPlaces(inst.EEZones, in.EEZones)
}

func appendPlaces(places []*Place, inputs []PlaceInput) []*Place {
	seen := make(map[string]struct{}, len(places))
	for _, place := range places {
		seen[NaturalKey(place.Name)] = struct{}{}
	}
	for _, in := range inputs {
		key := NaturalKey(in.Name)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		places = append(places, &Place{Name: in.Name})
	}
	return places
}

func appendObjectives(e *Experience, inputs []ObjectiveInput, now time.Time) {
	for _, in := range inputs {
		objective := &Objective{
			DescriptionProblem:  in.DescriptionProblem,
			ObjectiveExperience: in.ObjectiveExperience,
			Approach:            in.Approach,
			Methodology:         in.Methodology,
			Innovation:          in.Innovation,
			Pmi:                 in.Pmi,
			Nnaj:                in.Nnaj,
			CreatedAt:           now,
			SupportInformations: make([]*SupportInformation, 0, len(in.SupportInformations)),
			Monitorings:         make([]*Monitoring, 0, len(in.Monitorings)),
		}
		for _, s := range in.SupportInformations {
			objective.SupportInformations = append(objective.SupportInformations, &SupportInformation{
				Summary:            s.Summary,
				MetaphoricalPhrase: s.MetaphoricalPhrase,
				Testimony:          s.Testimony,
				FollowEvaluation:   s.FollowEvaluation,
			})
		}
		for _, m := range in.Monitorings {
			objective.Monitorings = append(objective.Monitorings, &Monitoring{
				MonitoringEvaluation: m.MonitoringEvaluation,
				Sustainability:       m.Sustainability,
				Transfer:             m.Transfer,
				Result:               m.Result,
			})
		}
		e.Objectives = append(e.Objectives, objective)
	}
}

func appendDevelopments(e *Experience, inputs []DevelopmentInput) {
	for _, in := range inputs {
		e.Developments = append(e.Developments, &Development{
			CrossCuttingProject:   in.CrossCuttingProject,
			Population:            in.Population,
			PedagogicalStrategies: in.PedagogicalStrategies,
			Coverage:              in.Coverage,
			CovidPandemic:         in.CovidPandemic,
		})
	}
}

func appendHistory(e *Experience, inputs []HistoryInput, now time.Time) {
	for _, in := range inputs {
		e.History = append(e.History, &HistoryEntry{
			Action:    in.Action,
			TableName: in.TableName,
			UserID:    in.UserID,
			CreatedAt: now,
		})
	}
}

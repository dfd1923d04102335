package resolve

import (
	"github.com/odvcencio/glenhance/internal/models"
)

const gitDirSuffix = ".git"

// AttachProjects qualifies each project against its owning namespace. A
// project whose namespace is absent keeps nil namespace-derived fields; it is
// never dropped.
func AttachProjects(namespaces map[int64]*models.QualifiedNamespace, projects []models.Project) ([]models.QualifiedProject, error) {
	seen := make(map[int64]struct{}, len(projects))
	out := make([]models.QualifiedProject, 0, len(projects))
	for _, p := range projects {
		if _, dup := seen[p.ID]; dup {
			return nil, &DuplicateIDError{Entity: "project", ID: p.ID}
		}
		seen[p.ID] = struct{}{}

		qp := models.QualifiedProject{Project: p}
		if p.NamespaceID != nil {
			if ns, ok := namespaces[*p.NamespaceID]; ok {
				nsLevel := ns.Level
				projectLevel := ns.Level + 1
				nsPath := ns.QualifiedPath
				nsName := ns.QualifiedName
				projectPath := nsPath + pathSeparator + p.Path
				projectName := nsName + nameSeparator + p.Name

				qp.NamespaceLevel = &nsLevel
				qp.QualifiedNamespacePath = &nsPath
				qp.QualifiedNamespaceName = &nsName
				qp.ProjectLevel = &projectLevel
				qp.QualifiedProjectPath = &projectPath
				qp.QualifiedProjectName = &projectName
			}
		}
		out = append(out, qp)
	}
	return out, nil
}

// AttachRepositories pairs every qualified project with its repositories.
// The join is outer on both sides: a project without a repository yields one
// row with nil repository fields, and a repository whose project is absent is
// kept with nil project-derived fields after all project rows. Rows follow
// project order, then repository order within a project.
func AttachRepositories(projects []models.QualifiedProject, repos []models.Repository) ([]models.QualifiedRepository, error) {
	known := make(map[int64]struct{}, len(projects))
	for _, p := range projects {
		known[p.ID] = struct{}{}
	}

	seen := make(map[int64]struct{}, len(repos))
	byProject := make(map[int64][]models.Repository, len(repos))
	var dangling []models.Repository
	for _, r := range repos {
		if _, dup := seen[r.ID]; dup {
			return nil, &DuplicateIDError{Entity: "repository", ID: r.ID}
		}
		seen[r.ID] = struct{}{}
		if r.ProjectID != nil {
			if _, ok := known[*r.ProjectID]; ok {
				byProject[*r.ProjectID] = append(byProject[*r.ProjectID], r)
				continue
			}
		}
		dangling = append(dangling, r)
	}

	out := make([]models.QualifiedRepository, 0, len(projects)+len(dangling))
	for i := range projects {
		p := &projects[i]
		owned := byProject[p.ID]
		if len(owned) == 0 {
			out = append(out, projectRow(p))
			continue
		}
		for _, r := range owned {
			row := projectRow(p)
			withRepository(&row, r)
			out = append(out, row)
		}
	}
	for _, r := range dangling {
		var row models.QualifiedRepository
		if r.ProjectID != nil {
			projectID := *r.ProjectID
			row.ProjectID = &projectID
		}
		withRepository(&row, r)
		out = append(out, row)
	}
	return out, nil
}

func projectRow(p *models.QualifiedProject) models.QualifiedRepository {
	projectID := p.ID
	row := models.QualifiedRepository{ProjectID: &projectID}
	if p.NamespaceID != nil {
		nsID := *p.NamespaceID
		row.NamespaceID = &nsID
	}
	if p.Resolved() {
		path := *p.QualifiedProjectPath
		name := *p.QualifiedProjectName
		gitDir := path + gitDirSuffix
		row.QualifiedProjectPath = &path
		row.QualifiedProjectName = &name
		row.QualifiedProjectGitDirPath = &gitDir
	}
	return row
}

func withRepository(row *models.QualifiedRepository, r models.Repository) {
	id := r.ID
	disk := r.DiskPath
	gitDir := r.DiskPath + gitDirSuffix
	row.RepositoryID = &id
	row.DiskPath = &disk
	row.DiskGitDirRelPath = &gitDir
	if r.ShardID != nil {
		shard := *r.ShardID
		row.ShardID = &shard
	}
	row.Extra = r.Extra
}

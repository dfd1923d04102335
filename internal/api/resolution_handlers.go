package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/odvcencio/glenhance/internal/locate"
	"github.com/odvcencio/glenhance/internal/models"
)

func (s *Server) handleListNamespaces(w http.ResponseWriter, r *http.Request) {
	root, ok := parseOptionalQueryID(w, r, "root")
	if !ok {
		return
	}
	p := s.published(w, r)
	if p == nil {
		return
	}
	annotateScope(r, attrScopeRoot, root)
	namespaces := p.Result.Namespaces
	if root != nil {
		namespaces = p.Result.NamespacesIn(p.Result.Subtree(*root))
	}
	writePage(w, r, namespaces)
}

func (s *Server) handleGetNamespace(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(w, r, "id", "namespace id")
	if !ok {
		return
	}
	p := s.published(w, r)
	if p == nil {
		return
	}
	ns, found := p.Result.Namespace(id)
	if !found {
		jsonError(w, "namespace not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, http.StatusOK, ns)
}

// handleNamespaceSubtree lists the namespace and all of its descendants.
func (s *Server) handleNamespaceSubtree(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(w, r, "id", "namespace id")
	if !ok {
		return
	}
	p := s.published(w, r)
	if p == nil {
		return
	}
	if _, found := p.Result.Namespace(id); !found {
		jsonError(w, "namespace not found", http.StatusNotFound)
		return
	}
	annotateScope(r, attrScopeRoot, &id)
	writePage(w, r, p.Result.NamespacesIn(p.Result.Subtree(id)))
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	namespace, ok := parseOptionalQueryID(w, r, "namespace")
	if !ok {
		return
	}
	p := s.published(w, r)
	if p == nil {
		return
	}
	annotateScope(r, attrScopeNamespace, namespace)
	projects := p.Result.Projects
	if namespace != nil {
		projects = p.Result.ProjectsIn(p.Result.Subtree(*namespace))
	}
	if onlyUnresolved(r) {
		var unresolved []models.QualifiedProject
		for _, project := range projects {
			if !project.Resolved() {
				unresolved = append(unresolved, project)
			}
		}
		projects = unresolved
	}
	writePage(w, r, projects)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(w, r, "id", "project id")
	if !ok {
		return
	}
	p := s.published(w, r)
	if p == nil {
		return
	}
	project, found := p.Result.Project(id)
	if !found {
		jsonError(w, "project not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, http.StatusOK, project)
}

func (s *Server) handleListRepositories(w http.ResponseWriter, r *http.Request) {
	namespace, ok := parseOptionalQueryID(w, r, "namespace")
	if !ok {
		return
	}
	p := s.published(w, r)
	if p == nil {
		return
	}
	annotateScope(r, attrScopeNamespace, namespace)
	scope := p.Result.Scope(namespace)
	unresolvedOnly := onlyUnresolved(r)
	repos := make([]models.QualifiedRepository, 0, len(p.Result.Repositories))
	for _, repo := range p.Result.Repositories {
		if !locate.InScope(scope, repo) || (unresolvedOnly && repo.Resolved()) {
			continue
		}
		repos = append(repos, repo)
	}
	writePage(w, r, repos)
}

func (s *Server) handleCloneLocations(w http.ResponseWriter, r *http.Request) {
	host := strings.TrimSpace(r.URL.Query().Get("host"))
	if host == "" {
		host = s.opts.HostName
	}
	if host == "" {
		jsonError(w, "host is required", http.StatusBadRequest)
		return
	}
	namespace, ok := parseOptionalQueryID(w, r, "namespace")
	if !ok {
		return
	}
	p := s.published(w, r)
	if p == nil {
		return
	}
	annotateScope(r, attrScopeNamespace, namespace)
	locations, skipped := locate.Clones(host, p.Result.Repositories, p.Result.Scope(namespace))
	annotateRequest(r, attrUnresolved.Int(len(skipped)))
	s.metrics.observeLocations("clone", len(locations), len(skipped))
	w.Header().Set("X-Unresolved-Count", strconv.Itoa(len(skipped)))
	writePage(w, r, locations)
}

func (s *Server) handleBareLocations(w http.ResponseWriter, r *http.Request) {
	home := strings.TrimSpace(r.URL.Query().Get("home"))
	if home == "" {
		home = s.opts.BareReposHome
	}
	if home == "" {
		jsonError(w, "home is required", http.StatusBadRequest)
		return
	}
	namespace, ok := parseOptionalQueryID(w, r, "namespace")
	if !ok {
		return
	}
	p := s.published(w, r)
	if p == nil {
		return
	}
	annotateScope(r, attrScopeNamespace, namespace)
	locations := locate.Bare(home, p.Result.Repositories, p.Result.Scope(namespace))
	s.metrics.observeLocations("bare", len(locations), 0)
	writePage(w, r, locations)
}

func onlyUnresolved(r *http.Request) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get("unresolved"))
	return err == nil && v
}

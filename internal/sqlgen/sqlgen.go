// Package sqlgen renders Postgres views and functions that compute qualified
// namespace, project and repository paths inside the database itself.
package sqlgen

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/lithammer/dedent"
)

type Options struct {
	// CanonicalSchema holds GitLab's namespaces, projects and
	// project_repositories tables.
	CanonicalSchema string
	// EnhanceSchema receives the generated views and functions.
	EnhanceSchema string
}

// references records qualified identifiers in the order the template first
// uses them.
type references struct {
	seen  map[string]bool
	order []string
}

func (r *references) add(ref string) string {
	if !r.seen[ref] {
		r.seen[ref] = true
		r.order = append(r.order, ref)
	}
	return ref
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func qualify(schema, name string) string {
	if schema == "" {
		return quoteIdent(name)
	}
	return quoteIdent(schema) + "." + quoteIdent(name)
}

var ddlTemplate = dedent.Dedent(`
	{{- if .EnhanceSchema }}
	create schema if not exists {{ schema }};
	{{ end }}
	create or replace view {{ enhance "gitlab_qualified_namespaces" }} as
	  select namespace.*,
	         qualified.level,
	         qualified.abs_path as qualified_path,
	         qualified.qualified_name
	    from {{ canonical "namespaces" }} namespace
	    cross join lateral (
	      with recursive recursive_ns (id, level, abs_path, qualified_name) as (
	          select  root.id, 0, root.path::text, root.name::text
	          from    {{ canonical "namespaces" }} root
	          where   root.parent_id is null
	             or   not exists (select 1 from {{ canonical "namespaces" }} p where p.id = root.parent_id)
	          union all
	          select  childns.id, t0.level + 1, (t0.abs_path || '/' || childns.path)::text, (t0.qualified_name || '::' || childns.name)::text
	          from    {{ canonical "namespaces" }} childns
	          inner join recursive_ns t0 on t0.id = childns.parent_id)
	      select  level, abs_path, qualified_name
	      from    recursive_ns
	      where   id = namespace.id
	    ) as qualified(level, abs_path, qualified_name);
	comment on view {{ enhance "gitlab_qualified_namespaces" }} is 'All GitLab namespaces with level and hierarchical qualifications';

	create or replace view {{ enhance "gitlab_qualified_projects" }} as
	  select namespace.level as namespace_level,
	         namespace.qualified_name as qualified_namespace_name,
	         namespace.qualified_path as qualified_namespace_path,
	         namespace.level + 1 as project_level,
	         project.*,
	         namespace.qualified_path || '/' || project.path as qualified_project_path,
	         namespace.qualified_name || '::' || project.name as qualified_project_name
	    from {{ canonical "projects" }} project
	    left join {{ enhance "gitlab_qualified_namespaces" }} namespace on project.namespace_id = namespace.id;
	comment on view {{ enhance "gitlab_qualified_projects" }} is 'All registered GitLab projects with namespace-qualified names and logical paths';

	create or replace view {{ enhance "gitlab_qualified_project_repos" }} as
	  select qp.*,
	         pr.id as project_repo_id,
	         pr.project_id as project_repo_project_id,
	         pr.shard_id as project_repo_gitaly_shard_id,
	         pr.disk_path as project_repo_gitaly_disk_path,
	         qp.qualified_project_path || '.git' as qualified_project_git_dir_path,
	         pr.disk_path || '.git' as project_repo_gitaly_disk_git_dir_rel_path
	    from {{ enhance "gitlab_qualified_projects" }} qp
	    left join {{ canonical "project_repositories" }} pr on pr.project_id = qp.id;
	comment on view {{ enhance "gitlab_qualified_project_repos" }} is 'All GitLab project repositories with namespace-qualified names, logical paths, and physical Gitaly repository paths';
	{{ range .Functions }}
	create or replace function {{ enhance .Name }}({{ .Param }} text{{ if .Scoped }}, parent_namespace_id bigint{{ end }})
	  returns table(qpr {{ enhance "gitlab_qualified_project_repos" }}, {{ .Returns }}) as $func$
	begin
	  return query
	    select repos as qpr,
	           {{ .Select }}
	      from {{ enhance "gitlab_qualified_project_repos" }} as repos
	     where repos.{{ .Require }} is not null
	{{- if .Scoped }}
	     and repos.namespace_id in (
	         with recursive descendants as (
	             select parent_namespace_id as id
	             union all
	             select ns.id
	               from {{ canonical "namespaces" }} as ns
	               join descendants on descendants.id = ns.parent_id)
	         select id from descendants)
	{{- end }};
	end
	$func$ language plpgsql;
	{{ end }}
	-- qualified references observed in this template:
	{{- range refs }}
	-- * {{ . }}
	{{- end }}
`)

type function struct {
	Name    string
	Param   string
	Returns string
	Select  string
	// Require names the column a row needs to be formatted.
	Require string
	Scoped  bool
}

func functions() []function {
	clone := function{
		Name:     "gitlab_qualified_project_repos_clone",
		Param:    "gitlab_host_name",
		Returns:  "clone_ssh text, clone_https text",
		Select:   "format('git@%s:%s', gitlab_host_name, repos.qualified_project_git_dir_path) as clone_ssh,\n\t           format('https://%s/%s', gitlab_host_name, repos.qualified_project_git_dir_path) as clone_https",
		Require:  "qualified_project_git_dir_path",
	}
	bare := function{
		Name:    "gitlab_qualified_project_repos_bare",
		Param:   "gitlab_bare_repos_home_on_disk",
		Returns: "git_dir_abs_path text",
		Select:  "format('%s/%s', gitlab_bare_repos_home_on_disk, repos.project_repo_gitaly_disk_git_dir_rel_path) as git_dir_abs_path",
		Require: "project_repo_id",
	}
	scopedClone, scopedBare := clone, bare
	scopedClone.Scoped, scopedBare.Scoped = true, true
	return []function{clone, scopedClone, bare, scopedBare}
}

// Render writes the enhancement DDL for opts to w.
func Render(w io.Writer, opts Options) error {
	refs := &references{seen: map[string]bool{}}
	tmpl, err := template.New("ddl").Funcs(template.FuncMap{
		"schema":    func() string { return quoteIdent(opts.EnhanceSchema) },
		"enhance":   func(name string) string { return refs.add(qualify(opts.EnhanceSchema, name)) },
		"canonical": func(name string) string { return refs.add(qualify(opts.CanonicalSchema, name)) },
		"refs":      func() []string { return refs.order },
	}).Parse(ddlTemplate)
	if err != nil {
		return fmt.Errorf("parse ddl template: %w", err)
	}
	data := struct {
		Options
		Functions []function
	}{Options: opts, Functions: functions()}
	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("render ddl: %w", err)
	}
	return nil
}

func RenderString(opts Options) (string, error) {
	var buf bytes.Buffer
	if err := Render(&buf, opts); err != nil {
		return "", err
	}
	return buf.String(), nil
}

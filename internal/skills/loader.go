// Package skills loads reusable "skill" documents — short Markdown files
// with YAML frontmatter describing a name and trigger description — from a
// per-workspace directory and a global one shared across workspaces. The
// agent loop either inlines all of them into the system prompt or, once
// there are too many, falls back to the skill_search tool.
package skills

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Skill is one loaded skill document.
type Skill struct {
	Name        string
	Description string
	Content     string // body after the frontmatter block
	Path        string
}

type skillFrontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Loader discovers and caches skills from up to three directories:
// workspace-local, global (shared across all workspaces on the host), and
// an optional extra directory (e.g. a managed-mode per-tenant skills dir).
type Loader struct {
	workspaceDir string
	globalDir    string
	extraDir     string

	mu     sync.RWMutex
	skills []Skill
}

// NewLoader builds a Loader and performs an initial scan of all configured
// directories. A directory that doesn't exist is skipped, not an error.
func NewLoader(workspaceDir, globalDir, extraDir string) *Loader {
	l := &Loader{workspaceDir: workspaceDir, globalDir: globalDir, extraDir: extraDir}
	l.Reload()
	return l
}

// Dirs returns the non-empty directories this loader scans, for use by a
// Watcher setting up filesystem notifications.
func (l *Loader) Dirs() []string {
	var dirs []string
	for _, d := range []string{l.workspaceDir, l.globalDir, l.extraDir} {
		if d != "" {
			dirs = append(dirs, filepath.Join(d, "skills"))
		}
	}
	return dirs
}

// Reload rescans all configured directories, replacing the cached skill set.
func (l *Loader) Reload() {
	var found []Skill
	for _, dir := range l.Dirs() {
		found = append(found, scanDir(dir)...)
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Name < found[j].Name })

	l.mu.Lock()
	l.skills = found
	l.mu.Unlock()
}

func scanDir(dir string) []Skill {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []Skill
	for _, e := range entries {
		if e.IsDir() {
			skillFile := filepath.Join(dir, e.Name(), "SKILL.md")
			if s, ok := loadSkillFile(skillFile); ok {
				out = append(out, s)
			}
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".md") {
			if s, ok := loadSkillFile(filepath.Join(dir, e.Name())); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

func loadSkillFile(path string) (Skill, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Skill{}, false
	}
	fm, body := splitFrontmatter(string(data))

	var meta skillFrontmatter
	if fm != "" {
		_ = yaml.Unmarshal([]byte(fm), &meta)
	}
	if meta.Name == "" {
		meta.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return Skill{
		Name:        meta.Name,
		Description: meta.Description,
		Content:     strings.TrimSpace(body),
		Path:        path,
	}, true
}

// splitFrontmatter separates a leading "---\n...\n---" YAML block from the
// rest of the document. Returns ("", content) when there's no frontmatter.
func splitFrontmatter(content string) (frontmatter, body string) {
	const delim = "---"
	trimmed := strings.TrimLeft(content, "\n")
	if !strings.HasPrefix(trimmed, delim) {
		return "", content
	}
	rest := trimmed[len(delim):]
	idx := strings.Index(rest, "\n"+delim)
	if idx == -1 {
		return "", content
	}
	frontmatter = strings.TrimSpace(rest[:idx])
	body = rest[idx+len("\n"+delim):]
	return frontmatter, body
}

// ListSkills returns every loaded skill, regardless of allow-listing.
func (l *Loader) ListSkills() []Skill {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Skill, len(l.skills))
	copy(out, l.skills)
	return out
}

// FilterSkills returns the loaded skills whose name appears in allowList, or
// every loaded skill when allowList is empty (no restriction configured).
func (l *Loader) FilterSkills(allowList []string) []Skill {
	all := l.ListSkills()
	if len(allowList) == 0 {
		return all
	}
	allowed := make(map[string]bool, len(allowList))
	for _, name := range allowList {
		allowed[name] = true
	}
	var out []Skill
	for _, s := range all {
		if allowed[s.Name] {
			out = append(out, s)
		}
	}
	return out
}

// Get returns the skill named name, if loaded.
func (l *Loader) Get(name string) (Skill, bool) {
	for _, s := range l.ListSkills() {
		if s.Name == name {
			return s, true
		}
	}
	return Skill{}, false
}

// BuildSummary renders the allow-listed skills as an XML block suitable for
// inlining directly into a system prompt.
func (l *Loader) BuildSummary(allowList []string) string {
	filtered := l.FilterSkills(allowList)
	if len(filtered) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("<available_skills>\n")
	for _, s := range filtered {
		b.WriteString("  <skill>\n")
		b.WriteString("    <name>" + s.Name + "</name>\n")
		b.WriteString("    <description>" + s.Description + "</description>\n")
		b.WriteString("  </skill>\n")
	}
	b.WriteString("</available_skills>")
	return b.String()
}

// Search returns up to limit skills whose name or description contains
// query (case-insensitive), for use by the skill_search tool once the
// skill set is too large to inline.
func (l *Loader) Search(query string, limit int) []Skill {
	q := strings.ToLower(strings.TrimSpace(query))
	all := l.ListSkills()
	if q == "" {
		if limit > 0 && len(all) > limit {
			return all[:limit]
		}
		return all
	}
	var out []Skill
	for _, s := range all {
		if strings.Contains(strings.ToLower(s.Name), q) || strings.Contains(strings.ToLower(s.Description), q) {
			out = append(out, s)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out
}

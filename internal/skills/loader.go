// Package skills discovers SKILL.md instruction packs under
// <workspace>/skills/<name>/SKILL.md and exposes them to the system prompt.
// Small sets are inlined whole; larger sets appear as a summary the model
// expands via read_file.
package skills

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

const (
	// inlineMaxSkills and inlineMaxTokens bound full-inlining: above either
	// threshold only the XML summary goes into the prompt.
	inlineMaxSkills = 20
	inlineMaxTokens = 3500
)

// Skill is one loaded instruction pack.
type Skill struct {
	Name        string
	Description string
	Path        string // path to SKILL.md
	Body        string // content after the frontmatter
}

type frontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Loader loads skills and optionally hot-reloads on filesystem changes.
type Loader struct {
	mu     sync.RWMutex
	dir    string
	skills []Skill

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
}

// NewLoader scans dir immediately. A missing dir yields an empty skill set.
func NewLoader(dir string) *Loader {
	l := &Loader{dir: dir, stopCh: make(chan struct{})}
	l.Reload()
	return l
}

// Dir returns the skills root directory.
func (l *Loader) Dir() string { return l.dir }

// Reload rescans the skills directory.
func (l *Loader) Reload() {
	skills := scan(l.dir)
	l.mu.Lock()
	l.skills = skills
	l.mu.Unlock()
	slog.Debug("skills loaded", "count", len(skills))
}

func scan(dir string) []Skill {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var skills []Skill
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name(), "SKILL.md")
		skill, err := parseFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				slog.Warn("skill skipped", "dir", e.Name(), "error", err)
			}
			continue
		}
		if skill.Name == "" {
			skill.Name = e.Name()
		}
		skills = append(skills, skill)
	}
	sort.Slice(skills, func(i, j int) bool { return skills[i].Name < skills[j].Name })
	return skills
}

// parseFile reads a SKILL.md and splits its YAML frontmatter from the body.
func parseFile(path string) (Skill, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Skill{}, err
	}
	content := string(data)

	var fm frontmatter
	body := content
	if strings.HasPrefix(content, "---\n") {
		rest := content[4:]
		end := strings.Index(rest, "\n---")
		if end < 0 {
			return Skill{}, fmt.Errorf("unterminated frontmatter in %s", path)
		}
		if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err != nil {
			return Skill{}, fmt.Errorf("frontmatter in %s: %w", path, err)
		}
		body = rest[end+4:]
		if i := strings.Index(body, "\n"); i >= 0 {
			body = body[i+1:]
		} else {
			body = ""
		}
	}

	return Skill{
		Name:        fm.Name,
		Description: fm.Description,
		Path:        path,
		Body:        strings.TrimSpace(body),
	}, nil
}

// List returns the loaded skills.
func (l *Loader) List() []Skill {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Skill, len(l.skills))
	copy(out, l.skills)
	return out
}

// PromptSection renders the skills for the system prompt: full bodies when
// the set is small, otherwise an <available_skills> XML summary.
func (l *Loader) PromptSection() string {
	skills := l.List()
	if len(skills) == 0 {
		return ""
	}

	if len(skills) <= inlineMaxSkills && totalTokens(skills) <= inlineMaxTokens {
		var b strings.Builder
		b.WriteString("## Skills\n")
		for _, s := range skills {
			fmt.Fprintf(&b, "\n### %s\n%s\n", s.Name, s.Body)
		}
		return strings.TrimRight(b.String(), "\n")
	}

	var b strings.Builder
	b.WriteString("<available_skills>\n")
	for _, s := range skills {
		fmt.Fprintf(&b, "  <skill name=%q path=%q>%s</skill>\n", s.Name, s.Path, s.Description)
	}
	b.WriteString("</available_skills>\nUse read_file on a skill's path when its instructions are needed.")
	return b.String()
}

func totalTokens(skills []Skill) int {
	chars := 0
	for _, s := range skills {
		chars += len(s.Body) + len(s.Name)
	}
	return chars / 4
}

// Watch hot-reloads skills when files under the skills dir change. Events
// are handled until Close.
func (l *Loader) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("skills watcher: %w", err)
	}
	if err := w.Add(l.dir); err != nil {
		w.Close()
		return fmt.Errorf("skills watcher: %w", err)
	}
	// Watch each skill subdirectory too; SKILL.md edits happen there.
	if entries, err := os.ReadDir(l.dir); err == nil {
		for _, e := range entries {
			if e.IsDir() {
				w.Add(filepath.Join(l.dir, e.Name()))
			}
		}
	}
	l.watcher = w

	go func() {
		for {
			select {
			case <-l.stopCh:
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op.Has(fsnotify.Create) {
					if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
						w.Add(ev.Name)
					}
				}
				l.Reload()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Warn("skills watcher error", "error", err)
			}
		}
	}()
	return nil
}

// Close stops the watcher.
func (l *Loader) Close() {
	close(l.stopCh)
	if l.watcher != nil {
		l.watcher.Close()
	}
}

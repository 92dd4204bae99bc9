package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nextlevelbuilder/tinyclaw/internal/sandbox"
	"github.com/nextlevelbuilder/tinyclaw/internal/skills"
)

// SkillsTool manages the skills directory tree: list, show, invoke, create,
// edit, remove, and install (copy from elsewhere in the workspace).
type SkillsTool struct {
	Loader *skills.Loader
	// Guard validates install sources; install is disabled when nil.
	Guard *sandbox.Guard
}

func (t *SkillsTool) Name() string { return "skill" }
func (t *SkillsTool) Description() string {
	return "Manage skills: list them, show or invoke one by name, create, edit, remove, or install one from a workspace path."
}
func (t *SkillsTool) Parameters() map[string]interface{} {
	return objSchema(map[string]interface{}{
		"action":      prop("string", "One of: list, show, invoke, create, edit, remove, install"),
		"name":        prop("string", "Skill name (all actions except list)"),
		"description": prop("string", "One-line description (create; optional for edit)"),
		"content":     prop("string", "Skill instructions body (create, edit)"),
		"path":        prop("string", "Source file or directory to install from (install)"),
	}, "action")
}

func (t *SkillsTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	action, ok := StringArg(args, "action")
	if !ok {
		return Err("missing required argument: action")
	}
	if action == "list" {
		return t.list()
	}

	name := OptionalString(args, "name")
	if action == "install" && name == "" {
		name = filepath.Base(strings.TrimRight(OptionalString(args, "path"), "/"))
		name = strings.TrimSuffix(name, ".md")
	}
	if !validSkillName(name) {
		return Err("invalid skill name: " + name)
	}

	switch action {
	case "show":
		return t.withSkill(name, func(s skills.Skill) *Result { return Ok(s.Body) })
	case "invoke":
		return t.withSkill(name, func(s skills.Skill) *Result {
			return Ok("Follow these instructions for skill " + s.Name + ":\n\n" + s.Body)
		})
	case "create":
		return t.create(name, args)
	case "edit":
		return t.edit(name, args)
	case "remove":
		return t.remove(name)
	case "install":
		return t.install(name, OptionalString(args, "path"))
	default:
		return Err("unknown action " + action + "; use list, show, invoke, create, edit, remove, or install")
	}
}

func (t *SkillsTool) list() *Result {
	loaded := t.Loader.List()
	if len(loaded) == 0 {
		return Ok("No skills installed.")
	}
	var b strings.Builder
	for _, s := range loaded {
		fmt.Fprintf(&b, "%s: %s\n", s.Name, s.Description)
	}
	return Ok(strings.TrimRight(b.String(), "\n"))
}

func (t *SkillsTool) withSkill(name string, fn func(skills.Skill) *Result) *Result {
	for _, s := range t.Loader.List() {
		if s.Name == name {
			return fn(s)
		}
	}
	return Err("no skill named " + name)
}

func (t *SkillsTool) create(name string, args map[string]interface{}) *Result {
	content, ok := StringArg(args, "content")
	if !ok || strings.TrimSpace(content) == "" {
		return Err("missing required argument: content")
	}
	dir := filepath.Join(t.Loader.Dir(), name)
	if _, err := os.Stat(filepath.Join(dir, "SKILL.md")); err == nil {
		return Err("skill " + name + " already exists; use edit")
	}
	if err := writeSkillFile(dir, name, OptionalString(args, "description"), content); err != nil {
		return Err("create failed: " + err.Error())
	}
	t.Loader.Reload()
	return Ok("Created skill " + name)
}

func (t *SkillsTool) edit(name string, args map[string]interface{}) *Result {
	content, ok := StringArg(args, "content")
	if !ok || strings.TrimSpace(content) == "" {
		return Err("missing required argument: content")
	}
	return t.withSkill(name, func(s skills.Skill) *Result {
		description := OptionalString(args, "description")
		if description == "" {
			description = s.Description
		}
		if err := writeSkillFile(filepath.Dir(s.Path), name, description, content); err != nil {
			return Err("edit failed: " + err.Error())
		}
		t.Loader.Reload()
		return Ok("Updated skill " + name)
	})
}

func (t *SkillsTool) remove(name string) *Result {
	return t.withSkill(name, func(s skills.Skill) *Result {
		if err := os.RemoveAll(filepath.Dir(s.Path)); err != nil {
			return Err("remove failed: " + err.Error())
		}
		t.Loader.Reload()
		return Ok("Removed skill " + name)
	})
}

// install copies a SKILL.md (or a directory containing one) from elsewhere in
// the workspace into the skills tree.
func (t *SkillsTool) install(name, source string) *Result {
	if t.Guard == nil {
		return Err("install is not available")
	}
	if source == "" {
		return Err("missing required argument: path")
	}
	resolved, err := t.Guard.CheckFilePath(source)
	if err != nil {
		return Err("Access denied: " + source)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return Err("cannot read " + source + ": " + err.Error())
	}

	destDir := filepath.Join(t.Loader.Dir(), name)
	if info.IsDir() {
		if _, err := os.Stat(filepath.Join(resolved, "SKILL.md")); err != nil {
			return Err(source + " has no SKILL.md")
		}
		entries, err := os.ReadDir(resolved)
		if err != nil {
			return Err("install failed: " + err.Error())
		}
		if err := os.MkdirAll(destDir, 0755); err != nil {
			return Err("install failed: " + err.Error())
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if err := copyFile(filepath.Join(resolved, e.Name()), filepath.Join(destDir, e.Name())); err != nil {
				return Err("install failed: " + err.Error())
			}
		}
	} else {
		if err := os.MkdirAll(destDir, 0755); err != nil {
			return Err("install failed: " + err.Error())
		}
		if err := copyFile(resolved, filepath.Join(destDir, "SKILL.md")); err != nil {
			return Err("install failed: " + err.Error())
		}
	}
	t.Loader.Reload()
	return Ok("Installed skill " + name)
}

func writeSkillFile(dir, name, description, content string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	body := fmt.Sprintf("---\nname: %s\ndescription: %s\n---\n%s\n", name, description, strings.TrimRight(content, "\n"))
	return os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(body), 0644)
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}

func validSkillName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	return name == filepath.Base(name)
}

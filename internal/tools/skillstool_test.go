package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/tinyclaw/internal/sandbox"
	"github.com/nextlevelbuilder/tinyclaw/internal/skills"
)

func newSkillsTool(t *testing.T) (*SkillsTool, string) {
	t.Helper()
	workspace := t.TempDir()
	skillsDir := filepath.Join(workspace, "skills")
	if err := os.MkdirAll(skillsDir, 0755); err != nil {
		t.Fatal(err)
	}
	st := &SkillsTool{
		Loader: skills.NewLoader(skillsDir),
		Guard:  sandbox.NewGuard(workspace, true, nil),
	}
	return st, workspace
}

func writeSkill(t *testing.T, dir, name, description, body string) {
	t.Helper()
	skillDir := filepath.Join(dir, name)
	if err := os.MkdirAll(skillDir, 0755); err != nil {
		t.Fatal(err)
	}
	content := "---\nname: " + name + "\ndescription: " + description + "\n---\n" + body + "\n"
	if err := os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestSkillsListAndShow(t *testing.T) {
	st, ws := newSkillsTool(t)
	writeSkill(t, filepath.Join(ws, "skills"), "greeting", "How to greet", "Always say hello twice.")
	st.Loader.Reload()
	ctx := context.Background()

	res := st.Execute(ctx, map[string]interface{}{"action": "list"})
	if res.IsError || !strings.Contains(res.ForLLM, "greeting: How to greet") {
		t.Fatalf("list: %+v", res)
	}

	res = st.Execute(ctx, map[string]interface{}{"action": "show", "name": "greeting"})
	if res.IsError || res.ForLLM != "Always say hello twice." {
		t.Errorf("show: %+v", res)
	}
}

func TestSkillsInvokeReturnsInstructions(t *testing.T) {
	st, ws := newSkillsTool(t)
	writeSkill(t, filepath.Join(ws, "skills"), "deploy", "Deploy steps", "Run the release checklist.")
	st.Loader.Reload()

	res := st.Execute(context.Background(), map[string]interface{}{"action": "invoke", "name": "deploy"})
	if res.IsError {
		t.Fatalf("invoke: %s", res.ForLLM)
	}
	if !strings.Contains(res.ForLLM, "deploy") || !strings.Contains(res.ForLLM, "Run the release checklist.") {
		t.Errorf("invoke result = %q", res.ForLLM)
	}
}

func TestSkillsCreateEditRemove(t *testing.T) {
	st, _ := newSkillsTool(t)
	ctx := context.Background()

	res := st.Execute(ctx, map[string]interface{}{
		"action": "create", "name": "notes", "description": "Note taking", "content": "Write everything down.",
	})
	if res.IsError {
		t.Fatalf("create: %s", res.ForLLM)
	}
	res = st.Execute(ctx, map[string]interface{}{"action": "show", "name": "notes"})
	if res.IsError || res.ForLLM != "Write everything down." {
		t.Fatalf("show after create: %+v", res)
	}

	// Creating over an existing skill is rejected.
	res = st.Execute(ctx, map[string]interface{}{"action": "create", "name": "notes", "content": "x"})
	if !res.IsError || !strings.Contains(res.ForLLM, "already exists") {
		t.Errorf("duplicate create: %+v", res)
	}

	res = st.Execute(ctx, map[string]interface{}{"action": "edit", "name": "notes", "content": "Write less down."})
	if res.IsError {
		t.Fatalf("edit: %s", res.ForLLM)
	}
	res = st.Execute(ctx, map[string]interface{}{"action": "show", "name": "notes"})
	if res.ForLLM != "Write less down." {
		t.Errorf("show after edit: %q", res.ForLLM)
	}
	// Edit without a description keeps the existing one.
	res = st.Execute(ctx, map[string]interface{}{"action": "list"})
	if !strings.Contains(res.ForLLM, "notes: Note taking") {
		t.Errorf("description lost on edit: %q", res.ForLLM)
	}

	res = st.Execute(ctx, map[string]interface{}{"action": "remove", "name": "notes"})
	if res.IsError {
		t.Fatalf("remove: %s", res.ForLLM)
	}
	res = st.Execute(ctx, map[string]interface{}{"action": "show", "name": "notes"})
	if !res.IsError {
		t.Error("show after remove should fail")
	}
}

func TestSkillsInstallFromWorkspacePath(t *testing.T) {
	st, ws := newSkillsTool(t)
	srcDir := filepath.Join(ws, "downloads", "weather")
	if err := os.MkdirAll(srcDir, 0755); err != nil {
		t.Fatal(err)
	}
	content := "---\nname: weather\ndescription: Weather lookups\n---\nUse the forecast API.\n"
	if err := os.WriteFile(filepath.Join(srcDir, "SKILL.md"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	res := st.Execute(context.Background(), map[string]interface{}{"action": "install", "path": srcDir})
	if res.IsError {
		t.Fatalf("install: %s", res.ForLLM)
	}
	res = st.Execute(context.Background(), map[string]interface{}{"action": "show", "name": "weather"})
	if res.IsError || res.ForLLM != "Use the forecast API." {
		t.Errorf("show after install: %+v", res)
	}
}

func TestSkillsInstallRejectsEscapingPath(t *testing.T) {
	st, _ := newSkillsTool(t)
	res := st.Execute(context.Background(), map[string]interface{}{
		"action": "install", "name": "evil", "path": "/etc/passwd",
	})
	if !res.IsError {
		t.Error("install from outside the workspace should be denied")
	}
}

func TestSkillsRejectsBadNames(t *testing.T) {
	st, _ := newSkillsTool(t)
	for _, name := range []string{"", "..", "a/b", `a\b`} {
		res := st.Execute(context.Background(), map[string]interface{}{"action": "show", "name": name})
		if !res.IsError || !strings.Contains(res.ForLLM, "invalid skill name") {
			t.Errorf("name %q: %+v", name, res)
		}
	}
}

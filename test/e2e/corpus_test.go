package e2e

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuildCorpus_OneCasePerSection(t *testing.T) {
	c := BuildCorpus()
	if len(c.Sections) == 0 {
		t.Fatal("corpus has no sections")
	}
	if len(c.Cases) != len(c.Sections) {
		t.Errorf("cases = %d, sections = %d", len(c.Cases), len(c.Sections))
	}
}

func TestBuildCorpus_AnswersAppearInTheirSection(t *testing.T) {
	c := BuildCorpus()
	bodies := make(map[string]string)
	for _, s := range c.Sections {
		bodies[s.File+"#"+s.Heading] = s.Body
	}
	for _, tc := range c.Cases {
		body, ok := bodies[tc.File+"#"+tc.Heading]
		if !ok {
			t.Errorf("case %q points at a missing section", tc.Question)
			continue
		}
		if !strings.Contains(body, tc.AnswerContains) {
			t.Errorf("section %s#%s does not contain %q", tc.File, tc.Heading, tc.AnswerContains)
		}
	}
}

func TestCorpus_WriteMarkdown(t *testing.T) {
	c := BuildCorpus()
	dir := filepath.Join(t.TempDir(), "docs")
	if err := c.WriteMarkdown(dir); err != nil {
		t.Fatal(err)
	}
	for _, f := range c.Files() {
		data, err := os.ReadFile(filepath.Join(dir, f))
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(string(data), "# ") {
			t.Errorf("%s should start with a title heading", f)
		}
	}
	for _, s := range c.Sections {
		data, _ := os.ReadFile(filepath.Join(dir, s.File))
		if !strings.Contains(string(data), "## "+s.Heading+"\n") {
			t.Errorf("%s is missing heading %q", s.File, s.Heading)
		}
	}
}

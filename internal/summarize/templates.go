package summarize

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/pelletier/go-toml/v2"
)

//go:embed prompts/*.md
var promptFS embed.FS

type templateFrontmatter struct {
	Name     string `toml:"name"`
	MaxWords int    `toml:"max_words"`
}

type Template struct {
	Name     string
	MaxWords int
	tmpl     *template.Template
}

type ExtractData struct {
	CompactionSummary string
	Transcript        string
}

type MergeData struct {
	Existing string
	Fragment string
}

type Templates struct {
	Extract *Template
	Merge   *Template
}

// LoadTemplates parses the embedded extraction and merge prompts.
func LoadTemplates() (*Templates, error) {
	extract, err := loadTemplate("prompts/extract.md")
	if err != nil {
		return nil, err
	}

	merge, err := loadTemplate("prompts/merge.md")
	if err != nil {
		return nil, err
	}

	return &Templates{Extract: extract, Merge: merge}, nil
}

func loadTemplate(path string) (*Template, error) {
	data, err := promptFS.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load prompt %s: %w", path, err)
	}

	frontmatter, body := parseFrontmatter(string(data))

	var fm templateFrontmatter
	if frontmatter != "" {
		if err := toml.Unmarshal([]byte(frontmatter), &fm); err != nil {
			return nil, fmt.Errorf("parse prompt frontmatter %s: %w", path, err)
		}
	}

	if fm.Name == "" {
		fm.Name = strings.TrimSuffix(strings.TrimPrefix(path, "prompts/"), ".md")
	}

	maxWords := fm.MaxWords
	tmpl, err := template.New(fm.Name).
		Option("missingkey=error").
		Funcs(template.FuncMap{"maxWords": func() int { return maxWords }}).
		Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse prompt %s: %w", path, err)
	}

	return &Template{Name: fm.Name, MaxWords: fm.MaxWords, tmpl: tmpl}, nil
}

func (t *Template) Render(data any) (string, error) {
	var sb strings.Builder
	if err := t.tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", t.Name, err)
	}
	return strings.TrimSpace(sb.String()), nil
}

func parseFrontmatter(content string) (frontmatter, body string) {
	content = strings.TrimSpace(content)

	if !strings.HasPrefix(content, "+++") {
		return "", content
	}

	rest := strings.TrimPrefix(content, "+++")
	endIndex := strings.Index(rest, "\n+++")
	if endIndex == -1 {
		return "", content
	}

	frontmatter = strings.TrimSpace(rest[:endIndex])
	body = strings.TrimPrefix(rest[endIndex:], "\n+++")

	return frontmatter, strings.TrimSpace(body)
}

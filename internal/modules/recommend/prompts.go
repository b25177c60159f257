package recommend

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const promptsEnv = "RECOMMEND_PROMPTS_YAML"

//go:embed prompts.yaml
var promptsFS embed.FS

type promptPair struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

type promptFile struct {
	Version int                   `yaml:"version"`
	Prompts map[string]promptPair `yaml:"prompts"`
}

const (
	promptRecommendation = "recommendation"
	promptPlanning       = "planning"
)

var (
	promptsOnce  sync.Once
	promptsCache promptFile
	promptsErr   error
)

func loadPrompts() (promptFile, error) {
	promptsOnce.Do(func() {
		promptsCache, promptsErr = readPrompts()
	})
	return promptsCache, promptsErr
}

// readPrompts reads the file named by RECOMMEND_PROMPTS_YAML when set, and the
// embedded copy otherwise.
func readPrompts() (promptFile, error) {
	var (
		data []byte
		err  error
	)
	if path := strings.TrimSpace(os.Getenv(promptsEnv)); path != "" {
		data, err = os.ReadFile(path)
	} else {
		data, err = promptsFS.ReadFile("prompts.yaml")
	}
	if err != nil {
		return promptFile{}, err
	}
	var f promptFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return promptFile{}, err
	}
	for _, name := range []string{promptRecommendation, promptPlanning} {
		p, ok := f.Prompts[name]
		if !ok || strings.TrimSpace(p.System) == "" || strings.TrimSpace(p.User) == "" {
			return promptFile{}, fmt.Errorf("prompts: %q missing system or user text", name)
		}
	}
	return f, nil
}

func renderPrompt(name string, req Request) (system, user string, err error) {
	f, err := loadPrompts()
	if err != nil {
		return "", "", err
	}
	p, ok := f.Prompts[name]
	if !ok {
		return "", "", errors.New("prompts: unknown prompt " + name)
	}
	r := strings.NewReplacer(
		"{course_id}", req.CourseID,
		"{goal}", req.Goal,
	)
	return strings.TrimSpace(p.System), strings.TrimSpace(r.Replace(p.User)), nil
}

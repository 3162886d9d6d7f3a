package openai

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// PromptConfig holds the prompts and model parameters of the receipt extractor
type PromptConfig struct {
	ReceiptExtraction struct {
		Temperature  float32 `yaml:"temperature"`
		MaxTokens    int     `yaml:"max_tokens"`
		Detail       string  `yaml:"detail"`
		System       string  `yaml:"system"`
		UserTemplate string  `yaml:"user_template"`
	} `yaml:"receipt_extraction"`
}

// LoadPrompts loads the prompt configuration from a YAML file.
// An empty path returns the built-in prompts.
func LoadPrompts(promptsPath string) (*PromptConfig, error) {
	data := defaultPrompts
	if promptsPath != "" {
		var err error
		if data, err = os.ReadFile(promptsPath); err != nil {
			return nil, fmt.Errorf("failed to read prompts file: %w", err)
		}
	}

	var prompts PromptConfig
	if err := yaml.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompts: %w", err)
	}
	if prompts.ReceiptExtraction.UserTemplate == "" {
		return nil, fmt.Errorf("prompts file has no receipt_extraction.user_template")
	}
	return &prompts, nil
}

// renderTemplate renders a template with provided data
func renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("prompt").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

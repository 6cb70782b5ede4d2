package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/maheshrc27/postforge/internal/models"
)

type Role string

const (
	RoleResearcher Role = "researcher"
	RoleWriter     Role = "writer"
	RoleCritic     Role = "critic"
	RoleRewriter   Role = "rewriter"
)

// Input carries everything a phase may read. Each role uses its own subset.
type Input struct {
	Brief     models.Brief
	Research  models.Research
	Draft     string
	Critiques []models.Critique
}

// Output holds the result of one role; only the field matching the role is
// set.
type Output struct {
	Research  models.Research
	Draft     string
	Critique  models.Critique
	FinalPost string
}

// Agent is one generative step: a fixed system prompt plus a single call to
// the text-generation backend.
type Agent interface {
	Role() Role
	Run(ctx context.Context, in Input) (Output, error)
}

// LoadPrompt reads a prompt file relative to the prompts directory.
func LoadPrompt(dir, name string) (string, error) {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("load prompt %s: %w", path, err)
	}
	return string(data), nil
}

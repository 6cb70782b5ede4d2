package repository

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/maheshrc27/postforge/internal/models"
)

const planPrefix = "plan"

// PlanRepository stores weekly content plans, one file per plan. The most
// recently written plan is the authoritative one.
type PlanRepository interface {
	Create(ctx context.Context, plan *models.ContentPlan) error
	Save(ctx context.Context, plan *models.ContentPlan) error
	Update(ctx context.Context, plan *models.ContentPlan) error
	Get(ctx context.Context, path string) (*models.ContentPlan, error)
	Latest(ctx context.Context) (*models.ContentPlan, error)
	LatestFile(ctx context.Context) (string, error)
	Exists(path string) bool
}

type planRepository struct {
	store JSONStore
	dir   string
}

func NewPlanRepository(store JSONStore, dir string) PlanRepository {
	return &planRepository{store: store, dir: dir}
}

// Create persists plan under a fresh timestamped filename and sets plan.File.
func (r *planRepository) Create(ctx context.Context, plan *models.ContentPlan) error {
	plan.File = filepath.Join(r.dir, r.store.NewFilename(planPrefix, r.dir))
	if err := r.store.Save(ctx, plan.File, plan); err != nil {
		return fmt.Errorf("create plan: %w", err)
	}
	return nil
}

// Save overwrites plan.File. The write bumps the modification time, so the
// saved plan becomes the latest one.
func (r *planRepository) Save(ctx context.Context, plan *models.ContentPlan) error {
	if plan.File == "" {
		return r.Create(ctx, plan)
	}
	return r.store.Save(ctx, plan.File, plan)
}

// Update overwrites plan.File in place without touching its modification
// time. Topic status changes go through here so they never change which plan
// is the latest.
func (r *planRepository) Update(ctx context.Context, plan *models.ContentPlan) error {
	return r.store.Rewrite(ctx, plan.File, plan)
}

func (r *planRepository) Get(ctx context.Context, path string) (*models.ContentPlan, error) {
	var plan models.ContentPlan
	if err := r.store.Read(ctx, path, &plan); err != nil {
		return nil, err
	}
	plan.File = path
	return &plan, nil
}

// Latest returns the most recent plan, or nil when none has been created.
func (r *planRepository) Latest(ctx context.Context) (*models.ContentPlan, error) {
	file, err := r.LatestFile(ctx)
	if err != nil || file == "" {
		return nil, err
	}
	return r.Get(ctx, file)
}

func (r *planRepository) LatestFile(ctx context.Context) (string, error) {
	files, err := r.store.List(ctx, r.dir, planPrefix)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", nil
	}
	return files[len(files)-1], nil
}

func (r *planRepository) Exists(path string) bool {
	return r.store.Exists(path)
}

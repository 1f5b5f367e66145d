package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/atinyakov/CipherStudio/internal/models"
)

const (
	projectKeyPrefix = "project-"
	recentKey        = "recentProjects"

	// MaxRecent caps the recent projects list.
	MaxRecent = 5
)

// Recent is an entry of the recent projects list.
type Recent struct {
	ProjectID   string    `json:"projectId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ProjectCache stores project snapshots and the recent projects list on top
// of a Store. Last writer wins.
type ProjectCache struct {
	store Store
}

// NewProjectCache wraps store.
func NewProjectCache(store Store) *ProjectCache {
	return &ProjectCache{store: store}
}

func projectKey(projectID string) string {
	return projectKeyPrefix + projectID
}

// Project returns the cached snapshot, or nil when there is none.
func (c *ProjectCache) Project(ctx context.Context, projectID string) (*models.Project, error) {
	data, err := c.store.Get(ctx, projectKey(projectID))
	if err != nil || data == nil {
		return nil, err
	}
	var p models.Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode cached project %s: %w", projectID, err)
	}
	return &p, nil
}

// PutProject overwrites the snapshot of p.
func (c *ProjectCache) PutProject(ctx context.Context, p *models.Project) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.store.Put(ctx, projectKey(p.ProjectID), data)
}

// DeleteProject drops the snapshot and the recent entry of projectID.
func (c *ProjectCache) DeleteProject(ctx context.Context, projectID string) error {
	if err := c.store.Delete(ctx, projectKey(projectID)); err != nil {
		return err
	}
	recent, err := c.Recent(ctx)
	if err != nil {
		return err
	}
	kept := recent[:0]
	for _, r := range recent {
		if r.ProjectID != projectID {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(recent) {
		return nil
	}
	return c.putRecent(ctx, kept)
}

// Recent returns the recent projects, most recent first.
func (c *ProjectCache) Recent(ctx context.Context) ([]Recent, error) {
	data, err := c.store.Get(ctx, recentKey)
	if err != nil {
		return nil, err
	}
	list := []Recent{}
	if data == nil {
		return list, nil
	}
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode recent projects: %w", err)
	}
	return list, nil
}

// TouchRecent moves p to the front of the recent list, dropping any older
// entry with the same id and anything past MaxRecent.
func (c *ProjectCache) TouchRecent(ctx context.Context, p *models.Project) error {
	recent, err := c.Recent(ctx)
	if err != nil {
		return err
	}

	list := make([]Recent, 0, MaxRecent)
	list = append(list, Recent{
		ProjectID:   p.ProjectID,
		Name:        p.Name,
		Description: p.Description,
		UpdatedAt:   p.UpdatedAt,
	})
	for _, r := range recent {
		if len(list) == MaxRecent {
			break
		}
		if r.ProjectID != p.ProjectID {
			list = append(list, r)
		}
	}
	return c.putRecent(ctx, list)
}

func (c *ProjectCache) putRecent(ctx context.Context, list []Recent) error {
	data, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return c.store.Put(ctx, recentKey, data)
}

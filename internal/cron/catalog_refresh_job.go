package cron

import (
	"context"
	"fmt"
)

const catalogRefreshJobName = "catalog-refresh"

type catalogRefresher interface {
	Refresh(ctx context.Context) error
}

type reachability interface {
	Online() bool
}

// CatalogRefreshJob re-pulls the full catalog to repair any push events the
// terminal missed.
type CatalogRefreshJob struct {
	catalog catalogRefresher
	remote  reachability
}

func NewCatalogRefreshJob(catalog catalogRefresher, remote reachability) (*CatalogRefreshJob, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog service required")
	}
	if remote == nil {
		return nil, fmt.Errorf("reachability source required")
	}
	return &CatalogRefreshJob{catalog: catalog, remote: remote}, nil
}

func (j *CatalogRefreshJob) Name() string { return catalogRefreshJobName }

func (j *CatalogRefreshJob) Run(ctx context.Context) error {
	if !j.remote.Online() {
		return nil
	}
	return j.catalog.Refresh(ctx)
}

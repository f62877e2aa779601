package flow

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNodeNotFound        = errors.New("flow: node not found")
	ErrEdgeNotFound        = errors.New("flow: edge not found")
	ErrVersionNotFound     = errors.New("flow: version not found")
	ErrDuplicateID         = errors.New("flow: duplicate id")
	ErrUnknownReference    = errors.New("flow: unknown node reference")
	ErrPersistFailure      = errors.New("flow: persist failed")
	ErrReconciliationGap   = errors.New("flow: id mapping does not cover every submitted temporary id")
	ErrApplicationRequired = errors.New("flow: application id is required")
)

// SortOrder selects the order of a version listing.
type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

// Version is an immutable snapshot of an application's graph, created by
// every successful batch save. Numbers start at 1 and increase by one.
type Version struct {
	ID            string      `json:"id"`
	ApplicationID string      `json:"applicationId"`
	Version       int         `json:"version"`
	Snapshot      GraphRecord `json:"snapshot"`
	CreatedAt     time.Time   `json:"createdAt"`
}

// Store defines the contract for persisting workflow graphs.
type Store interface {
	// Schema
	CreateSchema(ctx context.Context) error
	DropSchema(ctx context.Context) error

	// Graph
	LoadGraph(ctx context.Context, appID string) (*GraphRecord, error)
	BatchSave(ctx context.Context, req *BatchSaveRequest) (*BatchSaveResponse, error)
	SaveViewport(ctx context.Context, appID string, vp Viewport) error
	DeleteApplication(ctx context.Context, appID string) error

	// Versions
	ListVersions(ctx context.Context, appID string, page, pageSize int, order SortOrder) ([]Version, error)
	GetVersion(ctx context.Context, appID string, version int) (*Version, error)
	LatestVersion(ctx context.Context, appID string) (int, error)
}

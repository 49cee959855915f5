package controller

import (
	"context"
	"net/http"

	"github.com/gfrmin/scalibur/internal/modules/scale/repository"
	"github.com/gfrmin/scalibur/internal/modules/scale/types"
)

// IngestRunner runs one ingest pass; satisfied by etl.Pipeline.
type IngestRunner interface {
	Run(ctx context.Context) (types.Stats, error)
}

type ScaleController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type scaleControllerImpl struct {
	repository repository.ScaleRepository
	ingest     IngestRunner
}

func NewScaleController(repo repository.ScaleRepository, ingest IngestRunner) ScaleController {
	return &scaleControllerImpl{repository: repo, ingest: ingest}
}

func (c *scaleControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/ingest/run", c.handleRunIngest)
	mux.HandleFunc("GET /api/measurements", c.handleMeasurements)
	mux.HandleFunc("GET /api/measurements/latest", c.handleLatestMeasurement)
	mux.HandleFunc("GET /api/profiles", c.handleProfiles)
}

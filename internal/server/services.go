package server

import (
	"github.com/driveslim/driveslim/internal/classify"
	"github.com/driveslim/driveslim/internal/config"
	"github.com/driveslim/driveslim/internal/reclaim"
	"github.com/driveslim/driveslim/internal/results"
	"github.com/driveslim/driveslim/internal/scan"
)

// Services are the domain collaborators the HTTP surface exposes.
type Services struct {
	Config     *config.Config
	Classifier *classify.Classifier
	Scanner    *scan.Scanner
	Store      *results.Store
	Mutator    *reclaim.Mutator
}

// NewServices wires the default component graph on top of a config and an
// open result store.
func NewServices(cfg *config.Config, store *results.Store) *Services {
	classifier := classify.New()
	return &Services{
		Config:     cfg,
		Classifier: classifier,
		Scanner:    scan.NewScanner(classifier),
		Store:      store,
		Mutator:    reclaim.New(classifier),
	}
}

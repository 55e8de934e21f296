package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ruteri/challenge-oracle-client/interfaces"
)

// Archiver serializes reports to JSON and stores them in a backend.
type Archiver struct {
	backend interfaces.StorageBackend
	log     *slog.Logger
}

func NewArchiver(backend interfaces.StorageBackend, log *slog.Logger) *Archiver {
	return &Archiver{
		backend: backend,
		log:     log,
	}
}

// Archive stores report under contentType and returns its content id.
func (a *Archiver) Archive(ctx context.Context, contentType interfaces.ContentType, report any) (interfaces.ContentID, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return interfaces.ContentID{}, fmt.Errorf("could not encode %s report: %w", contentType, err)
	}

	id, err := a.backend.Store(ctx, data, contentType)
	if err != nil {
		return id, fmt.Errorf("could not archive %s report: %w", contentType, err)
	}

	a.log.Info("Archived report", "type", contentType.String(), "id", id.String(), "backend", a.backend.Name())
	return id, nil
}

// Load fetches a report by id and decodes it into out.
func (a *Archiver) Load(ctx context.Context, contentType interfaces.ContentType, id interfaces.ContentID, out any) error {
	data, err := a.backend.Fetch(ctx, id, contentType)
	if err != nil {
		return err
	}
	if !interfaces.ComputeID(data).Equal(id) {
		return fmt.Errorf("archived %s report %s does not match its content id", contentType, id)
	}
	return json.Unmarshal(data, out)
}

package input

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/wwada/optiroute/entity"
)

// ObjectFetcher reads back a stored upload by its reference. Satisfied by
// infra.MinioClient.
type ObjectFetcher interface {
	FetchUpload(ctx context.Context, objectKey string) ([]byte, error)
}

// Resolver turns a job's input reference into parsed stop rows. The first
// CSV column is the address text; blank rows are dropped.
type Resolver struct {
	storage ObjectFetcher
}

func NewResolver(storage ObjectFetcher) *Resolver {
	return &Resolver{storage: storage}
}

func (r *Resolver) Resolve(ctx context.Context, reference string) ([]entity.Stop, error) {
	if reference == "" {
		return nil, fmt.Errorf("job has no input reference")
	}

	data, err := r.storage.FetchUpload(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("input reference %q is unreadable: %w", reference, err)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse input file %q: %w", reference, err)
	}

	stops := make([]entity.Stop, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		address := strings.TrimSpace(row[0])
		if address == "" {
			continue
		}
		stops = append(stops, entity.Stop{Address: address})
	}

	return stops, nil
}

package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/creatorclaim/publisher/interfaces"
)

// RecordsKey is the well-known key the ledger lives under.
const RecordsKey = "mintRecords"

// Store is the append-only ledger of completed publish operations.
type Store struct {
	kv  interfaces.KVStore
	log *slog.Logger
}

// NewStore creates a ledger over the given keyed store.
func NewStore(kv interfaces.KVStore, log *slog.Logger) *Store {
	return &Store{kv: kv, log: log}
}

// CheckAvailable probes the backing store. Called once at startup so an
// unreachable backend is reported before a publish run starts, not after
// the mint.
func (s *Store) CheckAvailable(ctx context.Context) error {
	if !s.kv.Available(ctx) {
		return fmt.Errorf("%w: %s", interfaces.ErrStoreUnavailable, s.kv.LocationURI())
	}
	return nil
}

// Append reads the current sequence, appends record and writes the full
// sequence back. Failures wrap ErrPersistence.
func (s *Store) Append(ctx context.Context, record interfaces.PublishRecord) error {
	existing, err := s.List(ctx)
	if err != nil {
		return err
	}

	updated := append(existing, record)
	data, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("%w: encode records: %v", interfaces.ErrPersistence, err)
	}

	if err := s.kv.Write(ctx, RecordsKey, data); err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrPersistence, err)
	}

	s.log.Info("Appended publish record",
		slog.String("certificate_address", record.CertificateAddress),
		slog.String("title", record.Title),
		slog.Int("total_records", len(updated)))

	return nil
}

// List returns all records in append order, oldest first. A missing key is
// an empty ledger, not an error.
func (s *Store) List(ctx context.Context) ([]interfaces.PublishRecord, error) {
	data, err := s.kv.Read(ctx, RecordsKey)
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrPersistence, err)
	}

	var out []interfaces.PublishRecord
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: corrupt record ledger: %v", interfaces.ErrPersistence, err)
	}
	return out, nil
}

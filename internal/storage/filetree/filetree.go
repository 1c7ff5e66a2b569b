// Package filetree implements a storage.Adapter as a plain directory
// tree: one directory per AID, holding a description.json, a doe.csv,
// an append-only observations.csv, a cluster.csv, and a prediction.json.
//
// This mirrors the original "tabular file tree" backend named in the
// component design: a single flat file per concern, written with
// encoding/csv and encoding/json rather than any serialization
// library, matching that backend's own lack of one. Every file except
// observations.csv is written to a temporary file in the same directory
// and renamed over the target, so a reader never observes a partial
// file; observations.csv is appended to in place.
package filetree

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/agora-project/agorad/internal/aid"
	"github.com/agora-project/agorad/internal/apperr"
	"github.com/agora-project/agorad/internal/model"
)

// Store is a file-tree backed storage.Adapter.
type Store struct {
	root string
	mu   sync.Mutex // guards directory-listing and per-AID serialization at the fs level
}

// New creates a Store rooted at dir, creating dir if necessary.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, "create storage root", err)
	}
	return &Store{root: dir}, nil
}

func (s *Store) dir(id aid.AID) string {
	return filepath.Join(s.root, id.Application+"_"+id.Version+"_"+id.Block)
}

func writeAtomic(path string, write func(*os.File) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// StoreDescription writes description.json for id.
func (s *Store) StoreDescription(ctx context.Context, id aid.AID, d model.Description) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dir := s.dir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperr.Wrap(apperr.KindStorage, "create application directory", err)
	}
	path := filepath.Join(dir, "description.json")
	return writeAtomic(path, func(f *os.File) error {
		return json.NewEncoder(f).Encode(d)
	})
}

// LoadDescription reads description.json for id.
func (s *Store) LoadDescription(ctx context.Context, id aid.AID) (model.Description, bool, error) {
	path := filepath.Join(s.dir(id), "description.json")
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return model.Description{}, false, nil
	}
	if err != nil {
		return model.Description{}, false, apperr.Wrap(apperr.KindStorage, "open description", err)
	}
	defer f.Close()
	var d model.Description
	if err := json.NewDecoder(f).Decode(&d); err != nil {
		return model.Description{}, false, apperr.Wrap(apperr.KindStorage, "decode description", err)
	}
	return d, true, nil
}

// StoreDoE writes the fingerprint->remaining map as doe.csv.
func (s *Store) StoreDoE(ctx context.Context, id aid.AID, remaining map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dir := s.dir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperr.Wrap(apperr.KindStorage, "create application directory", err)
	}
	path := filepath.Join(dir, "doe.csv")
	return writeAtomic(path, func(f *os.File) error {
		w := csv.NewWriter(f)
		for fp, n := range remaining {
			if err := w.Write([]string{fp, strconv.Itoa(n)}); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	})
}

// LoadDoE reads doe.csv back into a fingerprint->remaining map.
func (s *Store) LoadDoE(ctx context.Context, id aid.AID) (map[string]int, bool, error) {
	path := filepath.Join(s.dir(id), "doe.csv")
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperr.Wrap(apperr.KindStorage, "open doe", err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, false, apperr.Wrap(apperr.KindStorage, "decode doe", err)
	}
	out := make(map[string]int, len(records))
	for _, rec := range records {
		if len(rec) != 2 {
			continue
		}
		n, err := strconv.Atoi(rec[1])
		if err != nil {
			continue
		}
		out[rec[0]] = n
	}
	return out, true, nil
}

// AppendObservation appends one row to observations.csv.
func (s *Store) AppendObservation(ctx context.Context, id aid.AID, o model.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dir := s.dir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperr.Wrap(apperr.KindStorage, "create application directory", err)
	}
	blob, err := json.Marshal(o)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, "encode observation", err)
	}
	path := filepath.Join(dir, "observations.csv")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, "open observations", err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write([]string{fmt.Sprintf("%d", o.Sec), fmt.Sprintf("%d", o.Nsec), string(blob)}); err != nil {
		return apperr.Wrap(apperr.KindStorage, "append observation", err)
	}
	w.Flush()
	return w.Error()
}

// LoadObservations reads every observation recorded for id.
func (s *Store) LoadObservations(ctx context.Context, id aid.AID) ([]model.Observation, error) {
	path := filepath.Join(s.dir(id), "observations.csv")
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, "open observations", err)
	}
	defer f.Close()
	r := csv.NewReader(bufio.NewReader(f))
	r.FieldsPerRecord = 3
	var out []model.Observation
	for {
		rec, err := r.Read()
		if err != nil {
			break
		}
		var o model.Observation
		if jerr := json.Unmarshal([]byte(rec[2]), &o); jerr == nil {
			out = append(out, o)
		}
	}
	return out, nil
}

// StoreModel writes an opaque model blob for one metric.
func (s *Store) StoreModel(ctx context.Context, id aid.AID, metric string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dir := filepath.Join(s.dir(id), "models")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperr.Wrap(apperr.KindStorage, "create models directory", err)
	}
	path := filepath.Join(dir, metric)
	return writeAtomic(path, func(f *os.File) error {
		_, err := f.Write(blob)
		return err
	})
}

// LoadModel reads an opaque model blob for one metric.
func (s *Store) LoadModel(ctx context.Context, id aid.AID, metric string) ([]byte, bool, error) {
	path := filepath.Join(s.dir(id), "models", metric)
	blob, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperr.Wrap(apperr.KindStorage, "read model", err)
	}
	return blob, true, nil
}

// IsModelValid reports whether a non-empty model blob file exists for
// (id, metric).
func (s *Store) IsModelValid(ctx context.Context, id aid.AID, metric string) (bool, error) {
	info, err := os.Stat(filepath.Join(s.dir(id), "models", metric))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Wrap(apperr.KindStorage, "stat model", err)
	}
	return info.Size() > 0, nil
}

// Erase removes every file tree entry for id.
func (s *Store) Erase(ctx context.Context, id aid.AID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.RemoveAll(s.dir(id)); err != nil {
		return apperr.Wrap(apperr.KindStorage, "erase application directory", err)
	}
	return nil
}

// StoreCluster writes the cluster to cluster.csv as a single JSON
// document.
func (s *Store) StoreCluster(ctx context.Context, id aid.AID, c model.Cluster) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dir := s.dir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperr.Wrap(apperr.KindStorage, "create application directory", err)
	}
	path := filepath.Join(dir, "cluster.csv")
	return writeAtomic(path, func(f *os.File) error {
		blob, err := json.Marshal(c)
		if err != nil {
			return err
		}
		_, err = f.Write(blob)
		return err
	})
}

// LoadCluster reads cluster.csv.
func (s *Store) LoadCluster(ctx context.Context, id aid.AID) (model.Cluster, bool, error) {
	path := filepath.Join(s.dir(id), "cluster.csv")
	blob, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return model.Cluster{}, false, nil
	}
	if err != nil {
		return model.Cluster{}, false, apperr.Wrap(apperr.KindStorage, "read cluster", err)
	}
	var c model.Cluster
	if err := json.Unmarshal(blob, &c); err != nil {
		return model.Cluster{}, false, apperr.Wrap(apperr.KindStorage, "decode cluster", err)
	}
	return c, true, nil
}

// StorePrediction writes prediction.json.
func (s *Store) StorePrediction(ctx context.Context, id aid.AID, p model.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dir := s.dir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperr.Wrap(apperr.KindStorage, "create application directory", err)
	}
	path := filepath.Join(dir, "prediction.json")
	return writeAtomic(path, func(f *os.File) error {
		return json.NewEncoder(f).Encode(p)
	})
}

// LoadPrediction reads prediction.json.
func (s *Store) LoadPrediction(ctx context.Context, id aid.AID) (model.Prediction, bool, error) {
	path := filepath.Join(s.dir(id), "prediction.json")
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return model.Prediction{}, false, nil
	}
	if err != nil {
		return model.Prediction{}, false, apperr.Wrap(apperr.KindStorage, "open prediction", err)
	}
	defer f.Close()
	var p model.Prediction
	if err := json.NewDecoder(f).Decode(&p); err != nil {
		return model.Prediction{}, false, apperr.Wrap(apperr.KindStorage, "decode prediction", err)
	}
	return p, true, nil
}

// Applications lists every AID with a directory under root.
func (s *Store) Applications(ctx context.Context) ([]aid.AID, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, "list applications", err)
	}
	var out []aid.AID
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		parts := splitThree(e.Name())
		if parts == nil {
			continue
		}
		out = append(out, aid.AID{Application: parts[0], Version: parts[1], Block: parts[2]})
	}
	return out, nil
}

func splitThree(name string) []string {
	var parts []string
	start := 0
	count := 0
	for i, c := range name {
		if c == '_' {
			parts = append(parts, name[start:i])
			start = i + 1
			count++
			if count == 2 {
				parts = append(parts, name[start:])
				return parts
			}
		}
	}
	return nil
}

// SupportsConcurrency reports true: distinct AID directories never
// collide.
func (s *Store) SupportsConcurrency() bool { return true }

// Close is a no-op; the backend holds no long-lived handles.
func (s *Store) Close() error { return nil }

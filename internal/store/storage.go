package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"go.etcd.io/bbolt"
	"pkg.jsn.cam/topreduce/pkg/topreduce"
)

var (
	// Bucket names
	runsBucket = []byte("runs")
	metaBucket = []byte("meta")

	latestKey = []byte("latest")
)

// LatestRunID resolves to the most recently saved run.
const LatestRunID = "latest"

// Run is one completed pipeline run as kept in the history database.
type Run struct {
	ID          string             `json:"id"`
	Version     string             `json:"version"`
	InputDir    string             `json:"input_dir"`
	Workers     int                `json:"workers"`
	BatchSize   int                `json:"batch_size"`
	OutputPath  string             `json:"output_path,omitempty"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt time.Time          `json:"completed_at"`
	Stats       topreduce.RunStats `json:"stats"`
	Report      *topreduce.Report  `json:"report"`
}

// Duration is how long the run took.
func (r *Run) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// Storage keeps run history in a bbolt database
type Storage struct {
	db   *bbolt.DB
	path string
	log  logrus.FieldLogger
}

// NewStorage opens (or creates) the history database at dbPath
func NewStorage(dbPath string, log logrus.FieldLogger) (*Storage, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(runsBucket); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(metaBucket); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	log.WithField("path", dbPath).Debug("[STORE] History database opened")

	return &Storage{db: db, path: dbPath, log: log}, nil
}

// Path returns the database file path
func (s *Storage) Path() string {
	return s.path
}

// Close closes the database
func (s *Storage) Close() error {
	return s.db.Close()
}

// SaveRun stores run under its ID and marks it as the latest run
func (s *Storage) SaveRun(run *Run) error {
	if run.ID == "" || run.ID == LatestRunID {
		return fmt.Errorf("%w: %q", ErrInvalidRunID, run.ID)
	}
	if run.Version == "" {
		run.Version = FormatVersion
	}

	encoded, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", run.ID, err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(runsBucket).Put([]byte(run.ID), encoded); err != nil {
			return err
		}
		return tx.Bucket(metaBucket).Put(latestKey, []byte(run.ID))
	})
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}

	s.log.WithField("run", run.ID).Debug("[STORE] Run saved")
	return nil
}

// GetRun loads one run. The ID "latest" resolves to the last saved run.
func (s *Storage) GetRun(id string) (*Run, error) {
	var run *Run

	err := s.db.View(func(tx *bbolt.Tx) error {
		key := []byte(id)
		if id == LatestRunID {
			key = tx.Bucket(metaBucket).Get(latestKey)
			if key == nil {
				return fmt.Errorf("%w: no runs recorded", ErrRunNotFound)
			}
		}

		v := tx.Bucket(runsBucket).Get(key)
		if v == nil {
			return fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}

		var err error
		run, err = decodeRun(v)
		return err
	})
	if err != nil {
		return nil, err
	}

	return run, nil
}

// ListRuns returns every readable run, newest first. Runs written by an
// incompatible format version are logged and left out.
func (s *Storage) ListRuns() ([]*Run, error) {
	var runs []*Run

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(runsBucket).ForEach(func(k, v []byte) error {
			run, err := decodeRun(v)
			if err != nil {
				s.log.WithError(err).WithField("run", string(k)).Warn("[STORE] Skipping unreadable run")
				return nil
			}
			runs = append(runs, run)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.After(runs[j].StartedAt)
		}
		return runs[i].ID < runs[j].ID
	})

	return runs, nil
}

// DeleteRun removes a run. Deleting the latest run clears the latest marker.
func (s *Storage) DeleteRun(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		runs := tx.Bucket(runsBucket)
		if runs.Get([]byte(id)) == nil {
			return fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		if err := runs.Delete([]byte(id)); err != nil {
			return err
		}

		meta := tx.Bucket(metaBucket)
		if string(meta.Get(latestKey)) == id {
			return meta.Delete(latestKey)
		}
		return nil
	})
}

func decodeRun(data []byte) (*Run, error) {
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("decode run: %w", err)
	}

	ok, err := IsCompatibleVersion(run.Version, FormatVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIncompatibleVersion, err)
	}
	if !ok {
		return nil, compatibilityError(run.ID, run.Version)
	}

	return &run, nil
}

// Package storage persists AL daemon run history and a device last-seen
// ledger across restarts, backed by BoltDB.
package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/krisarmstrong/hmeshd/pkg/model"
)

const (
	runBucket    = "runs"
	deviceBucket = "devices"
)

// Storage wraps a BoltDB instance for persisting hmeshd run history and
// the device last-seen ledger.
type Storage struct {
	db *bbolt.DB
}

// RunRecord captures a single hmeshd process run summary, written once at
// shutdown.
type RunRecord struct {
	ID          uint64        `json:"id" yaml:"id"`
	StartedAt   time.Time     `json:"started_at" yaml:"started_at"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
	LocalALMAC  string        `json:"local_al_mac" yaml:"local_al_mac"`
	Interfaces  []string      `json:"interfaces" yaml:"interfaces"`
	DeviceCount int           `json:"device_count" yaml:"device_count"`
	CMDURx      int64         `json:"cmdu_rx" yaml:"cmdu_rx"`
	CMDUTx      int64         `json:"cmdu_tx" yaml:"cmdu_tx"`
	Errors      int64         `json:"errors" yaml:"errors"`
}

// DeviceRecord is the last known sighting of a remote AL entity, kept
// across restarts so a freshly-started daemon can report "last seen"
// for a neighbor it hasn't re-discovered yet.
type DeviceRecord struct {
	ALMAC      string    `json:"al_mac" yaml:"al_mac"`
	LastSeen   time.Time `json:"last_seen" yaml:"last_seen"`
	IsMultiAP  bool      `json:"is_multi_ap" yaml:"is_multi_ap"`
	IfaceCount int       `json:"iface_count" yaml:"iface_count"`
}

// Open opens (or creates) the storage database at the requested path.
// A path of "" or "disabled" turns storage off; callers should treat the
// returned error as "don't persist" rather than a fatal condition.
func Open(path string) (*Storage, error) {
	if strings.EqualFold(path, "disabled") || path == "" {
		return nil, errors.New("storage disabled")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(runBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists([]byte(deviceBucket))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Storage{db: db}, nil
}

// Close closes the underlying database.
func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// AddRun stores a run record.
func (s *Storage) AddRun(record RunRecord) error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(runBucket))
		id, _ := b.NextSequence()
		record.ID = id

		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return b.Put(itob(id), data)
	})
}

// ListRuns returns the most recent run records up to the requested limit.
func (s *Storage) ListRuns(limit int) ([]RunRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("storage not initialised")
	}
	if limit <= 0 {
		limit = 20
	}

	records := make([]RunRecord, 0, limit)
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(runBucket)).Cursor()
		for k, v := c.Last(); k != nil && len(records) < limit; k, v = c.Prev() {
			var rec RunRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	return records, err
}

// TouchDevice upserts the last-seen record for a remote AL entity, keyed
// by its AL MAC.
func (s *Storage) TouchDevice(rec DeviceRecord) error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return tx.Bucket([]byte(deviceBucket)).Put([]byte(rec.ALMAC), data)
	})
}

// Devices returns every device record in the ledger, in no particular
// order.
func (s *Storage) Devices() ([]DeviceRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("storage not initialised")
	}

	var records []DeviceRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(deviceBucket)).ForEach(func(k, v []byte) error {
			var rec DeviceRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			records = append(records, rec)
			return nil
		})
	})
	return records, err
}

// SyncGraph writes a DeviceRecord for every remote device currently known
// to g, overwriting whatever last-seen entry already existed for it.
func (s *Storage) SyncGraph(g *model.Graph) error {
	if s == nil || s.db == nil {
		return nil
	}
	local := g.Local()
	for _, dev := range g.All() {
		if dev.ALMAC == local.ALMAC {
			continue
		}
		if err := s.TouchDevice(DeviceRecord{
			ALMAC:      dev.ALMAC.String(),
			LastSeen:   dev.LastSeen,
			IsMultiAP:  dev.IsMultiAPAgent || dev.IsMultiAPController,
			IfaceCount: len(dev.Interfaces),
		}); err != nil {
			return err
		}
	}
	return nil
}

func itob(v uint64) []byte {
	var b [8]byte
	for i := uint(0); i < 8; i++ {
		b[7-i] = byte(v >> (i * 8))
	}
	return b[:]
}

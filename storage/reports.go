package storage

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/twinj/uuid"

	"github.com/janelia-flyem/omerotools/omero"
)

var reportPrefix = []byte("report/")

func reportKey(id string) []byte {
	return append(append([]byte(nil), reportPrefix...), id...)
}

// ReportStore keeps the reports of script runs in a badger database.  It is
// safe for concurrent use.
type ReportStore struct {
	path     string
	compress omero.Compression
	db       *badger.DB

	// stopSyncCh is used to signal the sync goroutine to stop.
	stopSyncCh chan struct{}
	closeOnce  sync.Once
}

// OpenReportStore opens or creates the report store of the configuration.
func OpenReportStore(cfg ReportsConfig) (*ReportStore, error) {
	compress, err := omero.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}
	if cfg.Compression == "" {
		compress = omero.Snappy
	}
	opts := badger.DefaultOptions(cfg.Path).WithLogger(nil).WithNumVersionsToKeep(1)
	if cfg.Path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("can't open report store @ %q: %v", cfg.Path, err)
	}
	s := &ReportStore{
		path:       cfg.Path,
		compress:   compress,
		db:         db,
		stopSyncCh: make(chan struct{}),
	}
	if cfg.Path != "" {
		go s.syncPeriodically(30 * time.Second)
	}
	omero.Infof("Opened %s\n", s)
	return s, nil
}

func (s *ReportStore) String() string {
	if s.path == "" {
		return "in-memory report store"
	}
	return fmt.Sprintf("report store @ %s", s.path)
}

// Periodically sync to prevent too many writes from being buffered
// if the server crashes.
func (s *ReportStore) syncPeriodically(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopSyncCh:
			return
		case <-ticker.C:
			if err := s.db.Sync(); err != nil {
				omero.Warningf("sync of %s: %v\n", s, err)
			}
		}
	}
}

// Put stores a report, assigning it a new id if it has none, and returns the id.
func (s *ReportStore) Put(r *omero.Report) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewV4().String()
	}
	data, err := omero.SerializeData(MarshalReport(nil, r), s.compress, omero.CRC32)
	if err != nil {
		return "", err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(reportKey(r.ID), data)
	})
	if err != nil {
		return "", err
	}
	omero.Debugf("Stored report %s of %s (%s)\n", r.ID, r.Script, omero.ByteSize(len(data)))
	return r.ID, nil
}

func decodeStored(value []byte) (*omero.Report, error) {
	data, err := omero.DeserializeData(value)
	if err != nil {
		return nil, err
	}
	r, _, err := UnmarshalReport(data)
	return r, err
}

// Get returns a stored report.
func (s *ReportStore) Get(id string) (*omero.Report, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(reportKey(id))
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("report %s: %w", id, omero.ErrNotFound)
		}
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return decodeStored(value)
}

// List returns all stored reports, newest first.  If script is non-empty only
// reports of that script are returned.
func (s *ReportStore) List(script string) ([]*omero.Report, error) {
	var reports []*omero.Report
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = reportPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(reportPrefix); it.ValidForPrefix(reportPrefix); it.Next() {
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			r, err := decodeStored(value)
			if err != nil {
				return fmt.Errorf("report %s: %v", bytes.TrimPrefix(it.Item().Key(), reportPrefix), err)
			}
			if script == "" || r.Script == script {
				reports = append(reports, r)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].Started.After(reports[j].Started)
	})
	return reports, nil
}

// Delete removes a report.
func (s *ReportStore) Delete(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(reportKey(id)); err == badger.ErrKeyNotFound {
			return fmt.Errorf("report %s: %w", id, omero.ErrNotFound)
		} else if err != nil {
			return err
		}
		return txn.Delete(reportKey(id))
	})
}

// Prune deletes reports that started before the cutoff and returns how many
// were deleted.
func (s *ReportStore) Prune(cutoff time.Time) (int, error) {
	reports, err := s.List("")
	if err != nil {
		return 0, err
	}
	var n int
	for _, r := range reports {
		if r.Started.Before(cutoff) {
			if err := s.Delete(r.ID); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

// Close stops background syncing and closes the database.
func (s *ReportStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopSyncCh)
		err = s.db.Close()
		omero.Infof("Closed %s\n", s)
	})
	return err
}

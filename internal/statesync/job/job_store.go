package job

import (
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/slurmdash/slurmdash/internal/common/util"
	"github.com/slurmdash/slurmdash/internal/statesync/domain"
	"github.com/slurmdash/slurmdash/internal/statesync/metrics"
)

type trackedRecord struct {
	record    *domain.JobRecord
	authority domain.Authority
	writtenAt time.Time
}

// Store holds the latest known record per (job id, host) key.
// A record is only overwritten by an update of equal or higher authority.
// A full host snapshot is authoritative for membership, but it may have been
// issued before a push update arrived; snapshot commits therefore carry the
// time the request was issued, and records written at higher authority since
// then survive the commit.
type Store struct {
	records  map[domain.JobKey]*trackedRecord
	clock    util.Clock
	lock     sync.Mutex
	onChange func()
}

func NewStore(clock util.Clock) *Store {
	return &Store{
		records: map[domain.JobKey]*trackedRecord{},
		clock:   clock,
	}
}

// RegisterOnChange sets the callback invoked after every accepted mutation.
// The callback is expected to batch republication itself.
func (s *Store) RegisterOnChange(callback func()) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.onChange = callback
}

// Upsert writes record unless an existing entry was written at a strictly
// higher authority. Returns true if the store changed.
func (s *Store) Upsert(record *domain.JobRecord, authority domain.Authority) bool {
	s.lock.Lock()

	existing, present := s.records[record.Key()]
	if present && authority < existing.authority {
		s.lock.Unlock()
		log.Debugf("dropping %s update for job %s on %s, last written by %s",
			authority, record.JobId, record.Hostname, existing.authority)
		return false
	}
	s.records[record.Key()] = &trackedRecord{
		record:    record.DeepCopy(),
		authority: authority,
		writtenAt: s.clock.Now(),
	}
	metrics.JobsTracked.Set(float64(len(s.records)))
	callback := s.onChange
	s.lock.Unlock()

	if callback != nil {
		callback()
	}
	return true
}

// ReplaceHostSnapshot commits a full snapshot for one host, issued at
// issuedAt: records absent from the snapshot are deleted and all provided
// records written at the given authority. The exception is records written
// at a higher authority since the snapshot request was issued; those are
// newer information than the snapshot and are left untouched. This is the
// only mutation that removes records.
func (s *Store) ReplaceHostSnapshot(host string, records []*domain.JobRecord, authority domain.Authority, issuedAt time.Time) {
	s.lock.Lock()

	provided := make(map[domain.JobKey]bool, len(records))
	for _, record := range records {
		provided[record.Key()] = true
	}
	removed := 0
	for key, existing := range s.records {
		if key.Hostname != host || provided[key] {
			continue
		}
		if s.newerThanSnapshot(existing, authority, issuedAt) {
			continue
		}
		delete(s.records, key)
		removed++
	}
	for _, record := range records {
		if existing, present := s.records[record.Key()]; present && s.newerThanSnapshot(existing, authority, issuedAt) {
			continue
		}
		s.records[record.Key()] = &trackedRecord{
			record:    record.DeepCopy(),
			authority: authority,
			writtenAt: s.clock.Now(),
		}
	}
	metrics.JobsTracked.Set(float64(len(s.records)))
	callback := s.onChange
	s.lock.Unlock()

	if removed > 0 {
		log.Infof("host %s snapshot removed %d job(s) no longer reported", host, removed)
	}
	if callback != nil {
		callback()
	}
}

func (s *Store) newerThanSnapshot(existing *trackedRecord, authority domain.Authority, issuedAt time.Time) bool {
	return existing.authority > authority && !existing.writtenAt.Before(issuedAt)
}

func (s *Store) GetAll() []*domain.JobRecord {
	s.lock.Lock()
	defer s.lock.Unlock()

	result := make([]*domain.JobRecord, 0, len(s.records))
	for _, tracked := range s.records {
		result = append(result, tracked.record.DeepCopy())
	}
	sortRecords(result)
	return result
}

func (s *Store) GetByHost(host string) []*domain.JobRecord {
	s.lock.Lock()
	defer s.lock.Unlock()

	result := make([]*domain.JobRecord, 0, 10)
	for key, tracked := range s.records {
		if key.Hostname == host {
			result = append(result, tracked.record.DeepCopy())
		}
	}
	sortRecords(result)
	return result
}

func (s *Store) Get(key domain.JobKey) *domain.JobRecord {
	s.lock.Lock()
	defer s.lock.Unlock()

	tracked, present := s.records[key]
	if !present {
		return nil
	}
	return tracked.record.DeepCopy()
}

func (s *Store) Size() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.records)
}

func sortRecords(records []*domain.JobRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Hostname != records[j].Hostname {
			return records[i].Hostname < records[j].Hostname
		}
		return records[i].JobId < records[j].JobId
	})
}

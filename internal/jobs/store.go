package jobs

import "sync"

// Store holds the latest job record per item for the life of the process.
// Readers never block on a running job; only record swaps take the lock.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

func NewStore() *Store {
	return &Store{jobs: make(map[string]Job)}
}

// Get returns the record for itemID, or a not_started record.
func (s *Store) Get(itemID string) Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if j, ok := s.jobs[itemID]; ok {
		return j.clone()
	}
	return Job{ItemID: itemID, Status: StatusNotStarted}
}

// Begin installs job unless the item already has a processing record. It
// returns the replaced record (if any) so a caller can roll back.
func (s *Store) Begin(job Job) (prev *Job, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.jobs[job.ItemID]; ok {
		if cur.Status == StatusProcessing {
			return nil, ErrAlreadyProcessing
		}
		prev = &cur
	}
	s.jobs[job.ItemID] = job
	return prev, nil
}

// Restore undoes Begin: it reinstates prev, or removes the record when prev
// is nil.
func (s *Store) Restore(itemID string, prev *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev == nil {
		delete(s.jobs, itemID)
		return
	}
	s.jobs[itemID] = *prev
}

// Update applies fn to the record of itemID and returns the result. It is a
// no-op returning the zero Job when the item has no record or the record
// belongs to another run.
func (s *Store) Update(itemID, jobID string, fn func(*Job)) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[itemID]
	if !ok || j.ID != jobID {
		return Job{}, false
	}
	fn(&j)
	s.jobs[itemID] = j
	return j.clone(), true
}

// Count returns the number of records with the given status.
func (s *Store) Count(status Status) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, j := range s.jobs {
		if j.Status == status {
			n++
		}
	}
	return n
}

// clone copies the pointer fields so callers cannot mutate stored records.
func (j Job) clone() Job {
	if j.StartTime != nil {
		t := *j.StartTime
		j.StartTime = &t
	}
	if j.EndTime != nil {
		t := *j.EndTime
		j.EndTime = &t
	}
	if j.ArtifactPaths != nil {
		p := *j.ArtifactPaths
		j.ArtifactPaths = &p
	}
	if j.CueCount != nil {
		n := *j.CueCount
		j.CueCount = &n
	}
	return j
}

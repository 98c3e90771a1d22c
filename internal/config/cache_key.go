package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// CandidateSnapshotKey returns the cache key holding the live scoring
// snapshot for a candidate. External reapers and monitors read this key
// without touching the in-process ledger.
func (r *CacheKeyStruct) CandidateSnapshotKey(candidateID string) string {
	return fmt.Sprintf("interview:%s:snapshot", candidateID)
}

// CandidateLastActivityKey returns the cache key for a candidate's
// last-activity Unix timestamp.
func (r *CacheKeyStruct) CandidateLastActivityKey(candidateID string) string {
	return fmt.Sprintf("interview:%s:last_activity", candidateID)
}

// CandidateMonitorChannel returns the PubSub channel name carrying live
// metric updates for one candidate's interview.
func (r *CacheKeyStruct) CandidateMonitorChannel(candidateID string) string {
	return fmt.Sprintf("interview:%s:monitor", candidateID)
}

var CacheKey = NewCacheKeyStruct()

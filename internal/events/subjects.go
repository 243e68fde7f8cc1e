package events

import "time"

const (
	SubjectAdhocComputed = "rcount.fuzzy.adhoc.computed"
	SubjectKNNCalculated = "rcount.knn.calculated"
	SubjectKNNOptimalK   = "rcount.knn.optimal_k"

	StreamName     = "RCOUNT_EVENTS"
	StreamSubjects = "rcount.>"
	StreamMaxAge   = 7 * 24 * time.Hour
)

func SubjectSystemCreated(systemID string) string  { return "rcount.fuzzy." + systemID + ".created" }
func SubjectSystemDeleted(systemID string) string  { return "rcount.fuzzy." + systemID + ".deleted" }
func SubjectSystemComputed(systemID string) string { return "rcount.fuzzy." + systemID + ".computed" }

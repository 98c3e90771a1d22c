package config

type WorkerKeyStruct struct {
	ArchiveEventsQueue    string
	ArchiveSummariesQueue string
}

var WorkerKey = &WorkerKeyStruct{
	ArchiveEventsQueue:    "archive_events_queue",
	ArchiveSummariesQueue: "archive_summaries_queue",
}

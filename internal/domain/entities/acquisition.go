package entities

// AcquisitionOutcome classifies one attempt at fetching a replacement library
type AcquisitionOutcome string

// Acquisition outcomes
const (
	AcquisitionSuccess      AcquisitionOutcome = "success"
	AcquisitionNotFound     AcquisitionOutcome = "notFound"
	AcquisitionNetworkError AcquisitionOutcome = "networkError"
)

// AcquisitionAttempt is one try at obtaining a replacement. Never persisted.
type AcquisitionAttempt struct {
	SourceURL string
	Outcome   AcquisitionOutcome
	Detail    string
}

// AcquiredLibrary points at a downloaded, verified replacement on disk
type AcquiredLibrary struct {
	Path      string
	SourceURL string
	Size      int64
}

package enum

type SyncOutcome string

const (
	SyncOutcomeSuccess SyncOutcome = "success"
	SyncOutcomePartial SyncOutcome = "partial"
	SyncOutcomeFailed  SyncOutcome = "failed"
	SyncOutcomeSkipped SyncOutcome = "skipped"
)

func (o SyncOutcome) String() string {
	return string(o)
}

type EntityType string

const (
	ARCHIVED_EMAIL EntityType = "ARCHIVED_EMAIL"
	SYNC_RUN       EntityType = "SYNC_RUN"
	EMAIL_ACCOUNT  EntityType = "EMAIL_ACCOUNT"
)

func (e EntityType) String() string {
	return string(e)
}

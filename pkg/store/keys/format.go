package keys

const (
	// notation dictionary for key formats:
	// r   = report (conversation)
	// a   = action
	// All keys are lowercase; segments are separated by ":"
	// <...> = variable segment (e.g. <report_id>, <action_id>)

	// primary storage key formats
	ReportPrefix = "r:"        // r:
	ActionPrefix = "r:%s:a:"   // r:<report_id>:a:
	ActionKey    = "r:%s:a:%s" // r:<report_id>:a:<action_id>
	ReportMeta   = "r:%s:meta" // r:<report_id>:meta

	// system keys
	SyncMarkerKey = "__reportchain_wal_sync_marker__"
)

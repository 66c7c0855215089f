package constant

// Logger modules
const (
	LogModuleLedger    = "LEDGER"
	LogModuleReconcile = "RECONCILE"
	LogModuleSession   = "SESSION"
	LogModuleSearch    = "SEARCH"
	LogModuleEvents    = "EVENTS"
	LogModuleHTTP      = "HTTP"
)

// Document lifecycle events
const (
	EventDocumentIndexed = "DOCUMENT_INDEXED"
	EventDocumentFailed  = "DOCUMENT_FAILED"
	EventDocumentDeleted = "DOCUMENT_DELETED"
	EventLedgerCleared   = "LEDGER_CLEARED"
)

// Remote delete outcomes reported to callers
const (
	RemoteStatusDeleted = "deleted"
	RemoteStatusAbsent  = "absent"
	RemoteStatusUnknown = "unknown"
)

const (
	DocumentSourceRemote = "remote"
	DocumentSourceLedger = "ledger"
)

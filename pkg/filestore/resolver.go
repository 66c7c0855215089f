package filestore

import (
	"strings"

	"gemini-rag-be/internal/entity"
)

type ResolutionKind string

const (
	// ResolvedQualified: the identifier already is a full remote document path.
	ResolvedQualified ResolutionKind = "QUALIFIED"
	// ResolvedFromLedger: a ledger record carries the remote id.
	ResolvedFromLedger ResolutionKind = "LEDGER"
	// ResolvedNeedsDiscovery: a ledger record exists but has no remote id yet.
	// RemoteName holds the guessed path to fall back on if discovery fails.
	ResolvedNeedsDiscovery ResolutionKind = "DISCOVERY"
	// ResolvedGuess: nothing is known, the path is built from the collection name.
	ResolvedGuess ResolutionKind = "GUESS"
)

type Resolution struct {
	Kind       ResolutionKind
	RemoteName string
}

// IsQualifiedDocumentName reports whether id looks like
// fileSearchStores/<store>/documents/<doc>.
func IsQualifiedDocumentName(id string) bool {
	parts := strings.Split(id, "/")
	return len(parts) == 4 &&
		parts[0] == "fileSearchStores" && parts[1] != "" &&
		parts[2] == "documents" && parts[3] != ""
}

// ResolveRemoteName maps a caller-given identifier to a remote document path.
// record is the ledger record matched by localId, or nil. It never fails.
func ResolveRemoteName(id string, record *entity.DocumentRecord, collectionName string) Resolution {
	if IsQualifiedDocumentName(id) {
		return Resolution{Kind: ResolvedQualified, RemoteName: id}
	}

	if record != nil && record.HasRemoteId() {
		return Resolution{Kind: ResolvedFromLedger, RemoteName: record.RemoteId}
	}

	guess := guessDocumentName(id, collectionName)
	if record != nil {
		return Resolution{Kind: ResolvedNeedsDiscovery, RemoteName: guess}
	}
	return Resolution{Kind: ResolvedGuess, RemoteName: guess}
}

func guessDocumentName(id, collectionName string) string {
	if collectionName == "" {
		return ""
	}
	return collectionName + "/documents/" + id
}

package flow

import "time"

// Default key layout and lifetimes for call state.
const (
	DefaultSessionPrefix = "mmeai:call:"
	DefaultNamespace     = "mmeai"

	DefaultSessionTTL = 2 * time.Hour
	ResumePointerTTL  = 10 * time.Minute
	AliasTTL          = 15 * time.Minute
	// ClosedMarkerTTL matches AliasTTL so a redelivered final turn on any
	// leg of the conversation still finds the marker.
	ClosedMarkerTTL = AliasTTL
)

// Keyspace builds the store keys for the call-state keyspaces.
type Keyspace struct {
	SessionPrefix string
	Namespace     string
}

// DefaultKeyspace returns the production key layout.
func DefaultKeyspace() Keyspace {
	return Keyspace{SessionPrefix: DefaultSessionPrefix, Namespace: DefaultNamespace}
}

func (k Keyspace) Session(callID string) string {
	return k.SessionPrefix + callID
}

func (k Keyspace) Alias(callID string) string {
	return k.Namespace + ":alias:" + callID
}

func (k Keyspace) Resume(called, caller string) string {
	return k.Namespace + ":resume:" + called + ":" + caller
}

func (k Keyspace) LiveCalls(contractorKey string) string {
	return k.Namespace + ":contractor:" + contractorKey + ":calls"
}

func (k Keyspace) Closed(callID string) string {
	return k.Namespace + ":closed:" + callID
}

// ContractorCache is the directory cache key for a called number.
func (k Keyspace) ContractorCache(called string) string {
	return k.Namespace + ":contractor_cache:" + called
}

package sync

import "github.com/kusius/letterbox/internal/provider"

// ActionKind tags an Action.
type ActionKind int

const (
	// ActionAdded carries freshly fetched messages to upsert locally.
	ActionAdded ActionKind = iota
	// ActionDeleted carries ids of messages the remote reports gone.
	ActionDeleted
)

// Action is one element of the mutation batch a refresh produces, in its
// network representation. The cache layer converts it to local store
// mutations before applying.
type Action struct {
	Kind  ActionKind
	Mails []provider.Message // ActionAdded
	IDs   []string           // ActionDeleted
}

// Added builds an add action.
func Added(mails []provider.Message) Action {
	return Action{Kind: ActionAdded, Mails: mails}
}

// Deleted builds a delete action.
func Deleted(ids []string) Action {
	return Action{Kind: ActionDeleted, IDs: ids}
}

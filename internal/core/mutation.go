package core

import "errors"

// MutationKind discriminates the closed set of write operations the app can
// perform against the remote store.
type MutationKind string

const (
	MutationAdd    MutationKind = "add"
	MutationUpdate MutationKind = "update"
	MutationDelete MutationKind = "delete"
)

// Mutation is a tagged union over the three write operations. RemoteID is
// set for update and delete; Fields is set for add and update.
type Mutation struct {
	Kind     MutationKind
	RemoteID string
	Fields   ExpenseFields
}

var (
	ErrUnknownMutationKind = errors.New("unknown mutation kind")
	ErrMissingRemoteID     = errors.New("mutation requires a remote id")
)

// AddMutation builds an insert of a new expense.
func AddMutation(fields ExpenseFields) Mutation {
	return Mutation{Kind: MutationAdd, Fields: fields}
}

// UpdateMutation builds a full-field update of an existing expense.
func UpdateMutation(remoteID string, fields ExpenseFields) Mutation {
	return Mutation{Kind: MutationUpdate, RemoteID: remoteID, Fields: fields}
}

// DeleteMutation builds a deletion of an existing expense.
func DeleteMutation(remoteID string) Mutation {
	return Mutation{Kind: MutationDelete, RemoteID: remoteID}
}

func (k MutationKind) Valid() bool {
	switch k {
	case MutationAdd, MutationUpdate, MutationDelete:
		return true
	}
	return false
}

func (m Mutation) Validate() error {
	switch m.Kind {
	case MutationAdd:
		return m.Fields.Validate()
	case MutationUpdate:
		if m.RemoteID == "" {
			return ErrMissingRemoteID
		}
		return m.Fields.Validate()
	case MutationDelete:
		if m.RemoteID == "" {
			return ErrMissingRemoteID
		}
		return nil
	default:
		return ErrUnknownMutationKind
	}
}

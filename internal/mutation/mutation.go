package mutation

import (
	"fmt"

	"github.com/simworld/server/internal/data"
)

// Kind tags the variant carried by a Mutation.
type Kind int

const (
	KindSpawn Kind = iota
	KindEdit
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindSpawn:
		return "spawn"
	case KindEdit:
		return "edit"
	case KindDelete:
		return "delete"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Mutation is one pending change to the entity tree.
//
//	Spawn:  Descriptor, Name (requested; "" = descriptor name), AllowRenaming
//	Edit:   Name (exact live target), Descriptor
//	Delete: Name
type Mutation struct {
	Seq           uint64 // assigned by Enqueue
	Kind          Kind
	Name          string
	Descriptor    *data.ModelDescriptor
	AllowRenaming bool
	Origin        uint64 // session that sent it; 0 = local
}

func Spawn(desc *data.ModelDescriptor, requestedName string, allowRenaming bool) Mutation {
	return Mutation{Kind: KindSpawn, Name: requestedName, Descriptor: desc, AllowRenaming: allowRenaming}
}

func Edit(target string, desc *data.ModelDescriptor) Mutation {
	return Mutation{Kind: KindEdit, Name: target, Descriptor: desc}
}

func Delete(target string) Mutation {
	return Mutation{Kind: KindDelete, Name: target}
}

// Outcome reports what a drain did with one mutation. Err is nil for applied
// mutations; otherwise the mutation was dropped.
type Outcome struct {
	Mutation Mutation
	Name     string // live name after a spawn, target otherwise
	Applied  bool
	Noop     bool // delete of an absent model
	Err      error
}

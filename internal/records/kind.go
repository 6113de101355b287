// Package records holds the sync record model shared by client and server:
// the three record kinds, their payload schemas, the generic Record type and
// its mapping to and from the wire.
package records

import (
	"fmt"

	"github.com/dmitrijs2005/shopsync/internal/common"
)

// Kind names one of the independently synced record collections.
type Kind string

const (
	KindTransaction Kind = "transaction"
	KindProduct     Kind = "product"
	KindService     Kind = "service"
)

// Kinds lists every supported kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindTransaction, KindProduct, KindService}
}

// ParseKind validates s against the known kinds.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindTransaction, KindProduct, KindService:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", common.ErrUnknownKind, s)
	}
}

// Table is the storage table for the kind, identical on client and server.
func (k Kind) Table() string {
	return string(k) + "s"
}

func (k Kind) String() string { return string(k) }

// internal/domain/cart/owner.go
package cart

import (
	"fmt"
	"strconv"

	"github.com/your-org/lpg-storefront/internal/pkg/apperror"
	"gorm.io/gorm"
)

// OwnerKind discriminates the two ways a cart can be owned.
type OwnerKind string

const (
	OwnerKindUser    OwnerKind = "user"
	OwnerKindSession OwnerKind = "session"
)

// Owner identifies whose cart an entry belongs to: either a signed-in user
// or an anonymous browser session, never both. Construct it with UserOwner
// or SessionOwner.
type Owner struct {
	kind OwnerKind
	id   string
}

// UserOwner returns the owner for a signed-in user.
func UserOwner(userID uint) Owner {
	return Owner{kind: OwnerKindUser, id: strconv.FormatUint(uint64(userID), 10)}
}

// SessionOwner returns the owner for a guest session.
func SessionOwner(sessionID string) Owner {
	return Owner{kind: OwnerKindSession, id: sessionID}
}

// Kind reports which variant o holds.
func (o Owner) Kind() OwnerKind { return o.kind }

// UserID returns the user id when o is a user owner.
func (o Owner) UserID() (uint, bool) {
	if o.kind != OwnerKindUser {
		return 0, false
	}
	id, err := strconv.ParseUint(o.id, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

// SessionID returns the session id when o is a session owner.
func (o Owner) SessionID() (string, bool) {
	if o.kind != OwnerKindSession {
		return "", false
	}
	return o.id, true
}

// Validate rejects the zero Owner and blank identifiers.
func (o Owner) Validate() error {
	switch o.kind {
	case OwnerKindUser:
		if id, ok := o.UserID(); !ok || id == 0 {
			return apperror.Invalid("owner", "user id is required")
		}
	case OwnerKindSession:
		if o.id == "" {
			return apperror.Invalid("owner", "session id is required")
		}
	default:
		return apperror.Invalid("owner", "cart owner is required")
	}
	return nil
}

func (o Owner) String() string {
	return fmt.Sprintf("%s:%s", o.kind, o.id)
}

func (o Owner) scope(db *gorm.DB) *gorm.DB {
	return db.Where("owner_kind = ? AND owner_id = ?", o.kind, o.id)
}

func ownerFromColumns(kind OwnerKind, id string) Owner {
	return Owner{kind: kind, id: id}
}

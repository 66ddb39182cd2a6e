// Package tag manages the label vocabulary evidence items are classified
// with. Tags are plain entities with a unique name; they carry no access
// semantics of their own.
package tag

import (
	"time"

	"custodia/pkg/domain"
)

// Tag is one label.
type Tag struct {
	ID        domain.TagID
	Name      string
	Color     string // hex triplet, e.g. "#d33682"
	Creator   domain.PrincipalID
	CreatedAt time.Time
}

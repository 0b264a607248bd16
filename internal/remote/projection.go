package remote

import (
	"fmt"

	"github.com/CSwithChetan123/GhareluDiary/internal/core"
)

// Date formats used in the operator-facing projection fields.
const (
	DateLayout     = "02 Jan 2006"
	DateTimeLayout = "02 Jan 2006 15:04:05"
)

// Projection is the denormalized, human-readable view written alongside
// every pushed document. It exists for operator inspection of the remote
// collection and is never read back for logic.
type Projection struct {
	FormattedDate      string
	FormattedCreatedAt string
	FormattedUpdatedAt string
	Status             string
	Description        string
}

// Project derives the display projection for an entry.
func Project(e core.Entry) Projection {
	name := e.Category.DisplayName()

	var status string
	switch {
	case e.Amount < 0:
		status = "NO"
	case e.Amount == 0 && e.Quantity == 0:
		status = "YES (No payment)"
	case e.Amount > 0:
		status = "YES (Paid)"
	default:
		status = "YES"
	}

	var description string
	switch {
	case e.Amount < 0:
		description = fmt.Sprintf("%s did not come", name)
	case e.Quantity > 0:
		description = fmt.Sprintf("%s: %g Units, ₹%g", name, e.Quantity, e.Amount)
	case e.Amount > 0:
		description = fmt.Sprintf("%s came, paid ₹%g", name, e.Amount)
	default:
		description = fmt.Sprintf("%s came (No payment)", name)
	}

	return Projection{
		FormattedDate:      e.Date.Format(DateLayout),
		FormattedCreatedAt: e.CreatedAt.Format(DateTimeLayout),
		FormattedUpdatedAt: e.UpdatedAt.Format(DateTimeLayout),
		Status:             status,
		Description:        description,
	}
}

// README: Monthly AI detection quota per user.
package aiusage

import (
	"time"

	"github.com/nourseensaeed7/BinWise-Recycle/internal/apperr"
)

// ErrInsufficientTokens is returned when a user has no tokens remaining for the current month.
var ErrInsufficientTokens = apperr.New(apperr.CodeQuota, "insufficient tokens")

// DefaultTokens is the number of tokens granted per month when no quota is configured.
const DefaultTokens = 100

const monthLayout = "2006-01"

func monthOf(t time.Time) string {
	return t.UTC().Format(monthLayout)
}

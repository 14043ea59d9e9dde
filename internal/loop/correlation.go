package loop

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewCorrelationID mints a date-prefixed correlation id, following the
// teacher's session-id idiom (internal/session/session.go's
// fmt.Sprintf("%s-%s", now.Format(...), uuid.New().String()[:8])).
func NewCorrelationID() string {
	return fmt.Sprintf("%s-%s", time.Now().Format("2006-01-02"), uuid.New().String()[:8])
}

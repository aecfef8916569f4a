package app

import (
	"fmt"
	"time"
)

// FormatInvoiceNumber renders a daily invoice counter as
// PREFIX-YYYYMMDD-NNNN (counter zero-padded to four digits).
func FormatInvoiceNumber(prefix string, day time.Time, counter int) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, day.Format("20060102"), counter)
}

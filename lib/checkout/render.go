package checkout

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// timeLayout is used for all timestamps shown to the user
const timeLayout = time.RFC3339

var separator = strings.Repeat("-", 80)

// RenderLog writes records as human readable blocks, one per record.
// Absent values are shown as "-". An empty log writes nothing.
func RenderLog(w io.Writer, records []LockRecord) error {
	if len(records) == 0 {
		log.Infof("No log entries")
		return nil
	}
	for _, r := range records {
		checkedIn, message := "-", "-"
		if r.CheckedInAt != nil {
			checkedIn = r.CheckedInAt.UTC().Format(timeLayout)
		}
		if r.Message != nil {
			message = *r.Message
		}
		_, err := fmt.Fprintf(w, "%s\nUser:        %s\nEntity:      %s\nChecked Out: %s\nChecked In:  %s\nMessage:     %s\n",
			separator, r.User, r.Entity, r.CheckedOutAt.UTC().Format(timeLayout), checkedIn, message)
		if err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, separator)
	return err
}

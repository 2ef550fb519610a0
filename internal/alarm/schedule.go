package alarm

import (
	"fmt"
	"strings"
	"time"

	"github.com/reugn/go-quartz/quartz"
)

// CronExpression renders the alarm as a quartz cron expression. Alarms
// without days have none.
func CronExpression(a Alarm) (string, bool) {
	if len(a.Days) == 0 {
		return "", false
	}
	var hh, mm int
	if _, err := fmt.Sscanf(a.Time, "%d:%d", &hh, &mm); err != nil {
		return "", false
	}
	days := make([]string, 0, len(a.Days))
	for _, d := range a.Days {
		days = append(days, dayCodes[d])
	}
	return fmt.Sprintf("0 %d %d ? * %s", mm, hh, strings.Join(days, ",")), true
}

// NextOccurrence returns when the alarm is next due after the given time.
// It is informational only, nothing is ever fired.
func NextOccurrence(a Alarm, after time.Time, loc *time.Location) (time.Time, bool) {
	if !a.Active || a.Validate() != nil {
		return time.Time{}, false
	}
	expr, ok := CronExpression(a)
	if !ok {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	trigger, err := quartz.NewCronTriggerWithLoc(expr, loc)
	if err != nil {
		return time.Time{}, false
	}
	next, err := trigger.NextFireTime(after.UnixNano())
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(0, next).In(loc), true
}

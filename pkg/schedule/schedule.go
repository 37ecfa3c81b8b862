package schedule

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"
)

// ErrInvalidRule is returned for recurrence strings and values that cannot
// describe a schedule. It is a configuration error and is never retried.
var ErrInvalidRule = errors.New("schedule: invalid recurrence rule")

// CronPrefix marks a cron expression in the compact string form.
const CronPrefix = "cron:"

// Kind identifies the active mode of a Rule.
type Kind int

const (
	KindInterval Kind = iota + 1 // every N seconds
	KindDaily                    // once a day at a time of day
	KindMonthly                  // once a month on a day at a time of day
	KindYearly                   // once a year on a month/day at a time of day
	KindCron                     // cron expression
)

func (k Kind) String() string {
	switch k {
	case KindInterval:
		return "interval"
	case KindDaily:
		return "daily"
	case KindMonthly:
		return "monthly"
	case KindYearly:
		return "yearly"
	case KindCron:
		return "cron"
	default:
		return "unknown"
	}
}

// TimeOfDay is a wall-clock time within a day.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// At builds a TimeOfDay.
func At(hour, minute, second int) TimeOfDay {
	return TimeOfDay{Hour: hour, Minute: minute, Second: second}
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

func (t TimeOfDay) valid() bool {
	return t.Hour >= 0 && t.Hour < 24 &&
		t.Minute >= 0 && t.Minute < 60 &&
		t.Second >= 0 && t.Second < 60
}

func (t TimeOfDay) on(year int, month time.Month, day int, loc *time.Location) time.Time {
	return time.Date(year, month, day, t.Hour, t.Minute, t.Second, 0, loc)
}

// Rule decides when a job runs next. Exactly one mode is active; the zero
// Rule is invalid.
type Rule struct {
	kind    Kind
	seconds int
	at      TimeOfDay
	day     int
	month   time.Month
	expr    string
	cron    cron.Schedule
}

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// MaxIntervalSeconds is the longest interval whose duration fits in a
// time.Duration.
const MaxIntervalSeconds int64 = math.MaxInt64 / int64(time.Second)

// Every creates a rule that runs every seconds seconds.
func Every(seconds int) (Rule, error) {
	if seconds <= 0 {
		return Rule{}, errors.Wrapf(ErrInvalidRule, "interval must be positive, got %d", seconds)
	}
	if int64(seconds) > MaxIntervalSeconds {
		return Rule{}, errors.Wrapf(ErrInvalidRule, "interval %d exceeds %d seconds", seconds, MaxIntervalSeconds)
	}
	return Rule{kind: KindInterval, seconds: seconds}, nil
}

// Daily creates a rule that runs once a day at the given time.
func Daily(at TimeOfDay) (Rule, error) {
	if !at.valid() {
		return Rule{}, errors.Wrapf(ErrInvalidRule, "time of day %s out of range", at)
	}
	return Rule{kind: KindDaily, at: at}, nil
}

// Monthly creates a rule that runs on day (1..31) of every month.
func Monthly(day int, at TimeOfDay) (Rule, error) {
	if day < 1 || day > 31 {
		return Rule{}, errors.Wrapf(ErrInvalidRule, "day %d out of range 1..31", day)
	}
	if !at.valid() {
		return Rule{}, errors.Wrapf(ErrInvalidRule, "time of day %s out of range", at)
	}
	return Rule{kind: KindMonthly, day: day, at: at}, nil
}

// Yearly creates a rule that runs on month/day of every year.
func Yearly(month time.Month, day int, at TimeOfDay) (Rule, error) {
	if month < time.January || month > time.December {
		return Rule{}, errors.Wrapf(ErrInvalidRule, "month %d out of range 1..12", int(month))
	}
	if day < 1 || day > 31 {
		return Rule{}, errors.Wrapf(ErrInvalidRule, "day %d out of range 1..31", day)
	}
	if day > daysIn(2000, month) {
		return Rule{}, errors.Wrapf(ErrInvalidRule, "day %d does not exist in %s", day, month)
	}
	if !at.valid() {
		return Rule{}, errors.Wrapf(ErrInvalidRule, "time of day %s out of range", at)
	}
	return Rule{kind: KindYearly, month: month, day: day, at: at}, nil
}

// Cron creates a rule from a five-field cron expression or descriptor
// such as "@hourly".
func Cron(expr string) (Rule, error) {
	expr = strings.TrimSpace(expr)
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return Rule{}, errors.Wrapf(ErrInvalidRule, "cron %q: %v", expr, err)
	}
	// cron gives up after five years and returns the zero time, which is
	// what calendar-impossible dates such as "0 0 30 2 *" produce.
	if sched.Next(time.Now()).IsZero() {
		return Rule{}, errors.Wrapf(ErrInvalidRule, "cron %q never fires", expr)
	}
	return Rule{kind: KindCron, expr: expr, cron: sched}, nil
}

var (
	reInterval = regexp.MustCompile(`^\d+$`)
	reDaily    = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?$`)
	reMonthly  = regexp.MustCompile(`^(\d{1,2})\s+(\d{1,2}):(\d{2})(?::(\d{2}))?$`)
	reYearly   = regexp.MustCompile(`^(\d{1,2})-(\d{1,2})\s+(\d{1,2}):(\d{2})(?::(\d{2}))?$`)
)

// Parse reads the compact string form of a rule:
//
//	"3600"             every 3600 seconds
//	"04:30:00"         daily at 04:30
//	"15 04:30:00"      monthly on the 15th at 04:30
//	"12-24 18:00:00"   yearly on December 24th at 18:00
//	"cron:*/5 * * * *" cron expression
func Parse(raw string) (Rule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Rule{}, errors.WithHint(
			errors.Wrap(ErrInvalidRule, "empty recurrence"),
			`use seconds ("3600"), "HH:mm:ss", "dd HH:mm:ss", "MM-dd HH:mm:ss" or "cron:<expr>"`,
		)
	}

	if strings.HasPrefix(strings.ToLower(s), CronPrefix) {
		return Cron(s[len(CronPrefix):])
	}

	if reInterval.MatchString(s) {
		n, err := strconv.Atoi(s)
		if err != nil {
			return Rule{}, errors.Wrapf(ErrInvalidRule, "interval %q: %v", s, err)
		}
		return Every(n)
	}

	if m := reDaily.FindStringSubmatch(s); m != nil {
		return Daily(clock(m[1], m[2], m[3]))
	}

	if m := reMonthly.FindStringSubmatch(s); m != nil {
		return Monthly(atoi(m[1]), clock(m[2], m[3], m[4]))
	}

	if m := reYearly.FindStringSubmatch(s); m != nil {
		return Yearly(time.Month(atoi(m[1])), atoi(m[2]), clock(m[3], m[4], m[5]))
	}

	return Rule{}, errors.WithHint(
		errors.Wrapf(ErrInvalidRule, "unrecognised recurrence %q", raw),
		`use seconds ("3600"), "HH:mm:ss", "dd HH:mm:ss", "MM-dd HH:mm:ss" or "cron:<expr>"`,
	)
}

// MustParse is like Parse but panics on error. Intended for rules known at
// compile time.
func MustParse(raw string) Rule {
	r, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return r
}

// the regexps guarantee digits, so conversion cannot fail
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func clock(h, m, s string) TimeOfDay {
	t := TimeOfDay{Hour: atoi(h), Minute: atoi(m)}
	if s != "" {
		t.Second = atoi(s)
	}
	return t
}

// Kind reports the active mode.
func (r Rule) Kind() Kind { return r.kind }

// IsZero reports whether r is the zero (invalid) rule.
func (r Rule) IsZero() bool { return r.kind == 0 }

// Interval returns the interval of a KindInterval rule.
func (r Rule) Interval() time.Duration {
	if r.kind != KindInterval {
		return 0
	}
	return time.Duration(r.seconds) * time.Second
}

// String returns the compact form accepted by Parse.
func (r Rule) String() string {
	switch r.kind {
	case KindInterval:
		return strconv.Itoa(r.seconds)
	case KindDaily:
		return r.at.String()
	case KindMonthly:
		return fmt.Sprintf("%02d %s", r.day, r.at)
	case KindYearly:
		return fmt.Sprintf("%02d-%02d %s", int(r.month), r.day, r.at)
	case KindCron:
		return CronPrefix + r.expr
	default:
		return ""
	}
}

// Equal reports whether two rules describe the same schedule.
func (r Rule) Equal(other Rule) bool {
	return r.kind == other.kind && r.String() == other.String()
}

// Next returns the next activation after now. Interval rules add the
// interval to now; every other mode returns a moment strictly after now.
// Calendar modes are evaluated in now's location.
func (r Rule) Next(now time.Time) time.Time {
	loc := now.Location()
	y, m, d := now.Date()

	switch r.kind {
	case KindInterval:
		return now.Add(time.Duration(r.seconds) * time.Second)

	case KindDaily:
		next := r.at.on(y, m, d, loc)
		if !next.After(now) {
			next = r.at.on(y, m, d+1, loc)
		}
		return next

	case KindMonthly:
		ny, nm := y, m+1
		if nm > time.December {
			ny, nm = y+1, time.January
		}
		return r.at.on(ny, nm, clampDay(ny, nm, r.day), loc)

	case KindYearly:
		return r.at.on(y+1, r.month, clampDay(y+1, r.month, r.day), loc)

	case KindCron:
		return r.cron.Next(now)

	default:
		return time.Time{}
	}
}

// daysIn returns the number of days in month of year.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// clampDay caps day at the last day of the month so that day 31 lands on
// the 30th (or 28th/29th) instead of rolling into the following month.
func clampDay(year int, month time.Month, day int) int {
	if last := daysIn(year, month); day > last {
		return last
	}
	return day
}

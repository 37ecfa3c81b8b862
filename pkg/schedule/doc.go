// Package schedule provides the recurrence rules that decide when a
// registered job runs next.
//
// This package includes:
//   - Rule, a tagged union over interval, daily, monthly, yearly and cron modes
//   - Every(), Daily(), Monthly(), Yearly() and Cron() constructors
//   - Parse() and Rule.String() for the compact string form stored with each job
//
// Most users should import the root package github.com/jdziat/simple-recurring-jobs
// which re-exports these functions.
package schedule

package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"

	"github.com/randalmurphal/eventbus/pkg/eventbus"
	"github.com/randalmurphal/eventbus/pkg/eventbus/parking"
)

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed)
	headColor = color.New(color.Bold)
)

// printResult prints one publish outcome.
func printResult(w io.Writer, seq int, mode string, res eventbus.Result[bool]) {
	fmt.Fprintf(w, "#%-3d %-13s ", seq, mode)
	switch {
	case !res.Ok():
		errColor.Fprintf(w, "failed: %s\n", res.Message())
	case res.Value:
		okColor.Fprintln(w, "handled")
	default:
		warnColor.Fprintln(w, "queued")
	}
}

// printStats prints a Stats snapshot.
func printStats(w io.Writer, s eventbus.Stats) {
	headColor.Fprintln(w, "\nBus stats")
	fmt.Fprintf(w, "  published %d  handled %d  unhandled %d  failed %d  suppressed %d\n",
		s.Published, s.Handled, s.Unhandled, s.Failed, s.Suppressed)
	fmt.Fprintf(w, "  enqueued %d  redelivered %d  expired %d  evicted %d  exhausted %d\n",
		s.Enqueued, s.Redelivered, s.Expired, s.Evicted, s.Exhausted)
	fmt.Fprintf(w, "  in flight %d  draining %d\n", s.InFlight, s.Draining)

	if len(s.Queued) == 0 {
		okColor.Fprintln(w, "  retry queue empty")
		return
	}
	tags := make([]string, 0, len(s.Queued))
	for tag := range s.Queued {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	for _, tag := range tags {
		warnColor.Fprintf(w, "  queued %-20s %d\n", tag, s.Queued[tag])
	}
}

// printRecords prints parked records, newest first.
func printRecords(w io.Writer, total int, records []parking.Record) {
	headColor.Fprintf(w, "%d parked event(s)", total)
	if len(records) < total {
		fmt.Fprintf(w, ", showing %d", len(records))
	}
	fmt.Fprintln(w)

	for _, rec := range records {
		fmt.Fprintf(w, "%s  ", rec.ParkedAt.Format("2006-01-02 15:04:05"))
		reasonColor(rec.Reason).Fprintf(w, "%-15s", rec.Reason)
		fmt.Fprintf(w, "  %-20s %s  attempts=%d", rec.TypeTag, rec.CorrelationID, rec.Attempts)
		if rec.LastError != "" {
			fmt.Fprintf(w, "  error=%q", rec.LastError)
		}
		fmt.Fprintln(w)
	}
}

func reasonColor(r parking.Reason) *color.Color {
	switch r {
	case parking.ReasonRetryExhausted:
		return errColor
	case parking.ReasonCleared:
		return headColor
	default:
		return warnColor
	}
}

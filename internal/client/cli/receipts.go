package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/snaptrack/snaptrack/internal/client/models"
	"github.com/snaptrack/snaptrack/internal/client/stats"
)

var getMultiline = GetMultiline

// Add prompts for a receipt and puts it in the upload queue. When the
// backend is reachable the queue is drained right away.
func (a *App) Add(ctx context.Context) error {
	var d models.ReceiptDraft
	var err error

	if d.ImageRef, err = getSimpleText(a.reader, "Receipt image (path, file:// or s3:// reference)", a.out); err != nil {
		return err
	}
	if d.ImageRef == "" {
		return fmt.Errorf("an image reference is required")
	}
	if d.Entity, err = getSimpleText(a.reader, "Entity [personal]", a.out); err != nil {
		return err
	}
	if d.Entity == "" {
		d.Entity = "personal"
	}
	if d.Vendor, err = getSimpleText(a.reader, "Vendor (optional)", a.out); err != nil {
		return err
	}

	amount, err := getSimpleText(a.reader, "Amount (optional)", a.out)
	if err != nil {
		return err
	}
	if amount != "" {
		v, err := decimal.NewFromString(strings.TrimPrefix(amount, "$"))
		if err != nil {
			return fmt.Errorf("amount %q is not a number", amount)
		}
		d.Amount = &v
	}

	if d.Date, err = getSimpleText(a.reader, "Date YYYY-MM-DD (optional)", a.out); err != nil {
		return err
	}
	if d.Date != "" {
		if _, ok := stats.ParseInputDate(d.Date); !ok {
			return fmt.Errorf("date %q is not YYYY-MM-DD", d.Date)
		}
	}

	tags, err := getSimpleText(a.reader, "Tags, comma separated (optional)", a.out)
	if err != nil {
		return err
	}
	d.Tags = SplitTags(tags)

	if d.Notes, err = getMultiline(a.reader, "Notes (optional)", a.out); err != nil {
		return err
	}

	id, err := a.queue.Enqueue(ctx, d)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Queued as %s.\n", id)

	if a.isOnline() && a.isLoggedIn() {
		return a.Sync(ctx)
	}
	fmt.Fprintln(a.out, "It will be uploaded when you are online and signed in.")
	return nil
}

// List prints the upload queue in the order it will be drained.
func (a *App) List(ctx context.Context) error {
	items, err := a.queue.ListPending(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(a.out, "No queued uploads.")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tTRIES\tENTITY\tVENDOR\tAMOUNT\tDATE\tQUEUED")
	for _, it := range items {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			it.ID, it.Status, it.RetryCount, it.Entity, it.Vendor, amountText(it.Amount), it.Date,
			it.EnqueuedAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}

// Failed prints uploads that exhausted their retries.
func (a *App) Failed(ctx context.Context) error {
	items, err := a.queue.FailedUploads(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(a.out, "No failed uploads.")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tIMAGE\tVENDOR\tFAILED\tERROR")
	for _, f := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			f.ID, f.ImageRef, f.Vendor, f.FailedAt.Local().Format(time.DateTime), f.LastError)
	}
	return w.Flush()
}

func (a *App) Requeue(ctx context.Context, id string) error {
	if err := a.queue.Requeue(ctx, id); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Requeued.")
	return nil
}

func (a *App) Discard(ctx context.Context, id string) error {
	if err := a.queue.DiscardFailed(ctx, id); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Discarded.")
	return nil
}

// Sync drains the upload queue now.
func (a *App) Sync(ctx context.Context) error {
	if !a.isOnline() {
		n, _ := a.queue.PendingCount(ctx)
		fmt.Fprintf(a.out, "Offline. %d upload(s) will be sent when the connection returns.\n", n)
		return nil
	}

	res, err := a.drain(ctx)
	if err != nil {
		return err
	}
	if res.Skipped {
		fmt.Fprintln(a.out, "A sync is already running.")
		return nil
	}
	fmt.Fprintf(a.out, "Uploaded %d, failed %d", res.Success, res.Failed)
	if res.Evicted > 0 {
		fmt.Fprintf(a.out, ", %d moved to 'failed'", res.Evicted)
	}
	fmt.Fprintln(a.out, ".")
	return nil
}

// Stats prints a spending summary. args are an optional start and end date.
func (a *App) Stats(ctx context.Context, args []string) error {
	var bounds [2]time.Time
	for i := 0; i < len(args) && i < 2; i++ {
		d, ok := stats.ParseInputDate(args[i])
		if !ok {
			return fmt.Errorf("date %q is not YYYY-MM-DD", args[i])
		}
		bounds[i] = d
	}

	s, err := a.stats.Summary(ctx, bounds[0], bounds[1])
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%d receipt(s), total %s\n", s.Count, s.Total.StringFixed(2))
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, e := range s.Entities() {
		fmt.Fprintf(w, "  entity\t%s\t%s\n", e, s.ByEntity[e].StringFixed(2))
	}
	for _, t := range s.Tags() {
		fmt.Fprintf(w, "  tag\t%s\t%s\n", t, s.ByTag[t].StringFixed(2))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if s.Undated > 0 {
		fmt.Fprintf(a.out, "%d receipt(s) without a readable date were skipped.\n", s.Undated)
	}
	return nil
}

func amountText(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return d.StringFixed(2)
}

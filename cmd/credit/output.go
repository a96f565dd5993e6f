package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/org/creditledger/internal/records"
	"github.com/org/creditledger/pkg/models"
)

var (
	outputFormat string // "table", "json"
	assumeYes    bool
)

var (
	pendingColor  = color.New(color.FgYellow)
	verifiedColor = color.New(color.FgGreen)
	rejectedColor = color.New(color.FgRed)
	faintColor    = color.New(color.Faint)
)

func colorStatus(s models.Status) string {
	switch s {
	case models.StatusVerified:
		return verifiedColor.Sprint(s)
	case models.StatusRejected:
		return rejectedColor.Sprint(s)
	default:
		return pendingColor.Sprint(s)
	}
}

// shortAddr abbreviates an address as 0x1234...abcd.
func shortAddr(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

func formatTime(unix int64) string {
	return time.Unix(unix, 0).Local().Format("2006-01-02 15:04")
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v) //nolint:errcheck
}

// printRecords renders recs as a table. Records the viewer may still act on
// are marked in the ACTIONS column.
func printRecords(w io.Writer, recs []models.Record, viewer string) {
	if outputFormat == "json" {
		if recs == nil {
			recs = []models.Record{}
		}
		printJSON(w, recs)
		return
	}
	if len(recs) == 0 {
		fmt.Fprintln(w, "No records yet.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tOWNER\tCREATED\tSTATUS\tACTIONS")
	for _, r := range recs {
		owner := shortAddr(r.Owner)
		if r.OwnedBy(viewer) {
			owner += " (you)"
		}
		actions := ""
		if r.Actionable(viewer) {
			actions = "verify, reject"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Category.Title(), owner, formatTime(r.CreatedAt), colorStatus(r.Status), actions)
	}
	tw.Flush()
}

func printStats(w io.Writer, st records.Stats) {
	if outputFormat == "json" {
		printJSON(w, st)
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Total\t%d\n", st.Total)
	fmt.Fprintf(tw, "Pending\t%s\n", pendingColor.Sprint(st.Pending))
	fmt.Fprintf(tw, "Verified\t%s\n", verifiedColor.Sprint(st.Verified))
	fmt.Fprintf(tw, "Rejected\t%s\n", rejectedColor.Sprint(st.Rejected))
	tw.Flush()
}

// printRecord shows one record. The decoded payload is only shown to its
// owner.
func printRecord(w io.Writer, r models.Record, viewer string) {
	var src *records.PayloadSource
	if r.OwnedBy(viewer) {
		if decoded, err := records.DecodePayload(r.Payload); err == nil {
			src = &decoded
		}
	}
	if outputFormat == "json" {
		printJSON(w, struct {
			models.Record
			Decoded *records.PayloadSource `json:"decoded,omitempty"`
		}{r, src})
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\t%s\n", r.ID)
	fmt.Fprintf(tw, "Category\t%s\n", r.Category.Title())
	fmt.Fprintf(tw, "Owner\t%s\n", r.Owner)
	fmt.Fprintf(tw, "Created\t%s\n", formatTime(r.CreatedAt))
	fmt.Fprintf(tw, "Status\t%s\n", colorStatus(r.Status))
	if src != nil {
		fmt.Fprintf(tw, "Description\t%s\n", src.Description)
		fmt.Fprintf(tw, "Sensitive info\t%s\n", src.SensitiveInfo)
	} else {
		fmt.Fprintf(tw, "Payload\t%s\n", faintColor.Sprint(r.Payload))
	}
	tw.Flush()
}

// describe turns an operation error into the message shown to the user.
func describe(err error) string {
	switch {
	case errors.Is(err, records.ErrWriteRejected):
		return "Transaction rejected by user"
	case errors.Is(err, records.ErrNoSigner):
		return "No wallet connected. Run `credit wallet new` first."
	case errors.Is(err, records.ErrContractUnavailable):
		return "Contract is not available. Check the ledger address or try again later."
	case errors.Is(err, records.ErrNotFound):
		return "Record not found"
	case errors.Is(err, records.ErrTimeout):
		return "The ledger did not answer in time: " + err.Error()
	case errors.Is(err, records.ErrNetworkFault):
		return "Could not reach the ledger: " + err.Error()
	default:
		return err.Error()
	}
}

func printError(msg string) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
}

func printSuccess(w io.Writer, msg string) {
	fmt.Fprintln(w, msg)
}

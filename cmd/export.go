package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/uc3mcal/uc3mcal/timetable"
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Exports a timetable to an .ics file",
	Long: `Fetches the published timetable identified by year, plan, center, grade,
group and period, and writes the generated iCalendar document to a file or to
standard output.`,
	Run: func(cmd *cobra.Command, args []string) {
		id := timetable.TimetableID{}
		id.Year, _ = cmd.Flags().GetInt("year")
		id.Plan, _ = cmd.Flags().GetInt("plan")
		id.Center, _ = cmd.Flags().GetInt("center")
		id.Grade, _ = cmd.Flags().GetInt("grade")
		id.Group, _ = cmd.Flags().GetInt("group")
		id.Period, _ = cmd.Flags().GetInt("period")

		meta := timetable.DefaultPeriodMeta(id)
		if raw, _ := cmd.Flags().GetString("start"); raw != "" {
			meta.Start = mustParseDate("start", raw)
		}
		if raw, _ := cmd.Flags().GetString("end"); raw != "" {
			meta.End = mustParseDate("end", raw)
		}
		holidays, _ := cmd.Flags().GetStringSlice("holiday")
		for _, raw := range holidays {
			meta.Holidays = append(meta.Holidays, mustParseDate("holiday", raw))
		}
		if meta.End.Before(meta.Start) {
			log.Fatalf("Invalid period: --end %s is before --start %s\n",
				meta.End.Format(time.DateOnly), meta.Start.Format(time.DateOnly))
		}

		raw, err := timetable.NewHTTPFetcher().Fetch(context.Background(), id)
		if err != nil {
			log.Fatalf("Could not retrieve timetable: %v\n", err)
		}

		doc, err := timetable.Export(raw, meta)
		if err != nil {
			log.Fatalf("Could not export timetable: %v\n", err)
		}

		output, _ := cmd.Flags().GetString("output")
		if output == "" || output == "-" {
			fmt.Print(doc)
			return
		}
		if !strings.HasSuffix(output, ".ics") {
			output += ".ics"
		}
		if err := os.WriteFile(output, []byte(doc), 0644); err != nil {
			log.Fatalf("Could not write to file: %v\n", err)
		}
	},
}

func mustParseDate(name, raw string) time.Time {
	d, err := time.ParseInLocation(time.DateOnly, raw, timetable.Madrid)
	if err != nil {
		log.Fatalf("Could not parse --%s date %q: %v\n", name, raw, err)
	}
	return d
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().IntP("year", "y", 0, "Academic year of the timetable (required)")
	exportCmd.Flags().Int("plan", 0, "Study plan identifier (required)")
	exportCmd.Flags().Int("center", 0, "Center identifier (required)")
	exportCmd.Flags().Int("grade", 0, "Grade/course number (required)")
	exportCmd.Flags().Int("group", 0, "Group identifier (required)")
	exportCmd.Flags().Int("period", 1, "Academic period (1 = fall, 2 = spring)")
	exportCmd.Flags().String("start", "", "Period start date (2006-01-02), overrides the default bounds")
	exportCmd.Flags().String("end", "", "Period end date (2006-01-02), overrides the default bounds")
	exportCmd.Flags().StringSlice("holiday", nil, "Holiday date (2006-01-02), repeatable")
	exportCmd.Flags().StringP("output", "o", "", "Output file path; stdout when omitted")

	exportCmd.MarkFlagRequired("year")
	exportCmd.MarkFlagRequired("plan")
	exportCmd.MarkFlagRequired("center")
	exportCmd.MarkFlagRequired("grade")
	exportCmd.MarkFlagRequired("group")
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"lgen/internal/codegen"
	"lgen/internal/version"
)

// stamp is everything `lgen version` can report about the binary.
type stamp struct {
	Release   string
	Commit    string
	Subject   string
	Built     string
	Toolchain string
	Routines  int
}

// stampField selects the optional lines of the report.
type stampField uint8

const (
	showCommit stampField = 1 << iota
	showSubject
	showBuilt
	showToolchain
)

var stampFields = map[string]stampField{
	"commit":  showCommit,
	"message": showSubject,
	"date":    showBuilt,
	"go":      showToolchain,
	"all":     showCommit | showSubject | showBuilt | showToolchain,
}

// stampReport is the --json form.
type stampReport struct {
	Tool      string `json:"tool"`
	Release   string `json:"version"`
	Routines  int    `json:"runtime_routines"`
	Commit    string `json:"git_commit,omitempty"`
	Subject   string `json:"git_message,omitempty"`
	Built     string `json:"build_date,omitempty"`
	Toolchain string `json:"go,omitempty"`
}

var (
	versionAsJSON bool
	versionShow   []string
)

func init() {
	versionCmd.Flags().BoolVar(&versionAsJSON, "json", false, "print the report as JSON")
	versionCmd.Flags().StringSliceVar(&versionShow, "show", nil, "extra fields to report: commit, message, date, go or all")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Report the lgen release and how the binary was built",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fields, err := parseStampFields(versionShow)
		if err != nil {
			return err
		}
		s := readStamp()
		if versionAsJSON {
			return writeStampJSON(cmd.OutOrStdout(), s, fields)
		}
		writeStamp(cmd.OutOrStdout(), s, fields)
		return nil
	},
}

func parseStampFields(names []string) (stampField, error) {
	var out stampField
	for _, n := range names {
		f, ok := stampFields[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			known := make([]string, 0, len(stampFields))
			for k := range stampFields {
				known = append(known, k)
			}
			slices.Sort(known)
			return 0, &usageError{msg: fmt.Sprintf("unknown --show field %q (known: %s)", n, strings.Join(known, ", "))}
		}
		out |= f
	}
	return out, nil
}

func readStamp() stamp {
	return stamp{
		Release:   version.Plain(),
		Commit:    strings.TrimSpace(version.GitCommit),
		Subject:   strings.TrimSpace(version.GitMessage),
		Built:     strings.TrimSpace(version.BuildDate),
		Toolchain: runtime.Version() + " " + runtime.GOOS + "/" + runtime.GOARCH,
		Routines:  len(codegen.RoutineNames()),
	}
}

func writeStamp(out io.Writer, s stamp, fields stampField) {
	fmt.Fprintf(out, "lgen %s (%d runtime routines)\n", version.Colored(), s.Routines)
	rows := []struct {
		field       stampField
		label, text string
	}{
		{showCommit, "commit", s.Commit},
		{showSubject, "message", s.Subject},
		{showBuilt, "built", s.Built},
		{showToolchain, "go", s.Toolchain},
	}
	for _, r := range rows {
		if fields&r.field != 0 {
			fmt.Fprintf(out, "  %-8s %s\n", r.label+":", orUnknown(r.text))
		}
	}
}

func writeStampJSON(out io.Writer, s stamp, fields stampField) error {
	report := stampReport{Tool: "lgen", Release: s.Release, Routines: s.Routines}
	if fields&showCommit != 0 {
		report.Commit = orUnknown(s.Commit)
	}
	if fields&showSubject != 0 {
		report.Subject = orUnknown(s.Subject)
	}
	if fields&showBuilt != 0 {
		report.Built = orUnknown(s.Built)
	}
	if fields&showToolchain != 0 {
		report.Toolchain = orUnknown(s.Toolchain)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

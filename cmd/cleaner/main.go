// Command cleaner runs the webinar export pipeline once, from a local CSV
// to a clean dataset, without the server. It is the tool the team reaches
// for when a single export needs cleaning on a laptop.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/plutus/webengage-pipeline/internal/config"
	"github.com/plutus/webengage-pipeline/internal/pipeline"
	"github.com/plutus/webengage-pipeline/internal/webengage"
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: cleaner [options] input.csv [output.csv]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Cleans a Zoom webinar export into the SOP dataset shape.")
	fmt.Fprintln(os.Stderr, "Reads stdin when input is '-'. Output defaults to <input>-clean.csv.")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Options:")
	fmt.Fprintln(os.Stderr, "  --profile name    cleaning profile (default webinar-attended)")
	fmt.Fprintln(os.Stderr, "  --config path     config file (default config/config.yaml if present)")
	fmt.Fprintln(os.Stderr, "  --report path     also write the diagnostic report as JSON")
	fmt.Fprintln(os.Stderr, "  --payloads path   also write WebEngage user/event payloads as JSON")
}

func main() {
	configPath := "config/config.yaml"
	profileName := "webinar-attended"
	reportPath := ""
	payloadsPath := ""
	var paths []string

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--profile", "-profile":
			if i++; i < len(args) {
				profileName = args[i]
			}
		case "--config", "-config":
			if i++; i < len(args) {
				configPath = args[i]
			}
		case "--report", "-report":
			if i++; i < len(args) {
				reportPath = args[i]
			}
		case "--payloads", "-payloads":
			if i++; i < len(args) {
				payloadsPath = args[i]
			}
		case "--help", "-h":
			usage()
			return
		default:
			paths = append(paths, args[i])
		}
	}

	if len(paths) == 0 {
		usage()
		os.Exit(2)
	}
	input := paths[0]

	// The config file is optional on a laptop; built-in profiles cover the
	// standard reports.
	var cfg *config.Config
	if _, err := os.Stat(configPath); err == nil {
		cfg, err = config.LoadFromEnv(configPath)
		if err != nil {
			fatal("load config %s: %v", configPath, err)
		}
	} else {
		cfg = &config.Config{Profiles: config.DefaultProfiles()}
	}

	prof, ok := cfg.Profile(profileName)
	if !ok {
		fatal("unknown profile %q (available: %s)", profileName, strings.Join(cfg.ProfileNames(), ", "))
	}

	var in io.Reader
	if input == "-" {
		in = os.Stdin
	} else {
		f, err := os.Open(input)
		if err != nil {
			fatal("open input: %v", err)
		}
		defer f.Close()
		in = f
	}

	res, err := pipeline.RunCSV(in, prof)
	if err != nil {
		fatal("%v", err)
	}

	output := ""
	if len(paths) > 1 {
		output = paths[1]
	} else if input != "-" {
		stem := strings.TrimSuffix(input, filepath.Ext(input))
		output = stem + "-clean.csv"
	}

	dataset, err := res.Table.CSV()
	if err != nil {
		fatal("encode dataset: %v", err)
	}
	if output == "" || output == "-" {
		os.Stdout.Write(dataset)
	} else if err := os.WriteFile(output, dataset, 0644); err != nil {
		fatal("write output: %v", err)
	}

	if reportPath != "" {
		writeJSON(reportPath, res.Report)
	}
	if payloadsPath != "" {
		writeJSON(payloadsPath, webengage.Build(res))
	}

	printSummary(res, output)
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "FATAL: "+format+"\n", args...)
	os.Exit(1)
}

func writeJSON(path string, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal("encode %s: %v", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		fatal("write %s: %v", path, err)
	}
}

func printSummary(res *pipeline.Result, output string) {
	rep := res.Report

	fmt.Fprintln(os.Stderr, "=========================================================")
	fmt.Fprintln(os.Stderr, " Zoom Export Cleaning Report")
	fmt.Fprintln(os.Stderr, "=========================================================")
	fmt.Fprintf(os.Stderr, "Run:          %s\n", rep.RunID)
	fmt.Fprintf(os.Stderr, "Profile:      %s (%s)\n", rep.Profile, rep.Kind)
	fmt.Fprintf(os.Stderr, "Webinar:      %s [%s]\n", rep.Webinar.WebinarName, rep.Webinar.WebinarID)
	if rep.Webinar.Category != "" {
		fmt.Fprintf(os.Stderr, "Category:     %s\n", rep.Webinar.Category)
	}
	fmt.Fprintf(os.Stderr, "Conductor:    %s\n", rep.Webinar.Conductor)
	if day := rep.Webinar.BootcampDayLabel(); day != "" {
		fmt.Fprintf(os.Stderr, "Bootcamp day: %s\n", day)
	}
	fmt.Fprintln(os.Stderr, "---------------------------------------------------------")
	fmt.Fprintf(os.Stderr, "Rows:         %d in, %d out (%d dropped, %d merged keys)\n",
		rep.RawRows, rep.OutputRows, rep.DroppedRows, rep.MergedKeys)
	fmt.Fprintf(os.Stderr, "Datetimes:    %d/%d parsed (ratio %.4f, threshold %.2f)\n",
		rep.Datetime.Parsed, rep.Datetime.Attempted, rep.Datetime.Ratio, rep.Datetime.Threshold)

	for _, g := range rep.Gates {
		status := "PASS ✓"
		if g.Status == pipeline.GateWarned {
			status = "WARN !"
		}
		line := fmt.Sprintf("Gate %-6s %s", g.Gate+":", status)
		if g.Detail != "" {
			line += "  " + g.Detail
		}
		fmt.Fprintln(os.Stderr, line)
	}

	if len(rep.Counts) > 0 {
		fmt.Fprintln(os.Stderr, "Warnings:")
		codes := make([]string, 0, len(rep.Counts))
		for code := range rep.Counts {
			codes = append(codes, string(code))
		}
		sort.Strings(codes)
		for _, code := range codes {
			fmt.Fprintf(os.Stderr, "  %-28s %d\n", code, rep.Counts[pipeline.WarningCode(code)])
		}
	}

	fmt.Fprintln(os.Stderr, "=========================================================")
	if output != "" && output != "-" {
		fmt.Fprintf(os.Stderr, "Clean dataset written to %s\n", output)
	}
}

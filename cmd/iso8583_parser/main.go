// Command-line entry point for the ISO 8583 hex decoder.
//
// Input format
// ------------
// One message per line. A line is either the message hex (spaces allowed) or
// a JSON object:
//
//	{"hex": "0800822000...", "source": "switch-a", "profile": "acme"}
//
// Output is a JSON array with one entry per message, or with -report the
// flat text report of each message separated by blank lines.
//
// Settings come from the defaults, then -config (YAML), then the
// environment (ISO8583_*, POSTGRES_*), then flags.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"iso8583_parser/internal/config"
	"iso8583_parser/internal/enrichment"
	"iso8583_parser/internal/iso8583"
	"iso8583_parser/internal/registry"
	"iso8583_parser/internal/spec"
	"iso8583_parser/internal/storage"
)

// Line is one decoded input line.
type Line struct {
	Line        int                  `json:"line"`
	Source      string               `json:"source,omitempty"`
	Profile     string               `json:"profile"`
	Result      *iso8583.ParseResult `json:"result"`
	Annotations []enrichment.Note    `json:"annotations,omitempty"`
}

// Input is the JSON form of an input line.
type Input struct {
	Hex     string `json:"hex"`
	Source  string `json:"source,omitempty"`
	Profile string `json:"profile,omitempty"`
}

type Stats struct {
	Lines        int
	Blank        int
	Decoded      int
	Unsuccessful int
	Rejected     int
	Archived     int
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "iso8583_parser - commands:")
	fmt.Fprintln(w, "  decode  - decode hex messages (one per line) and output JSON or text reports")
	fmt.Fprintln(w, "  tables  - list the available field table profiles")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  iso8583_parser decode [-input msgs.txt] [-output out.json] [-pretty] [-report] [-annotate]")
	fmt.Fprintln(w, "                        [-profile NAME] [-charset ascii|ebcdic] [-tables DIR] [-db archive.db]")
	fmt.Fprintln(w, "                        [-config cfg.yaml] [-stats]")
	fmt.Fprintln(w, "  iso8583_parser tables [-tables DIR] [-fields NAME] [-config cfg.yaml]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - A line may be raw hex or {\"hex\": ..., \"source\": ..., \"profile\": ...}.")
	fmt.Fprintln(w, "  - -annotate looks up issuers when POSTGRES_HOST (or postgres.host) is set.")
	fmt.Fprintln(w, "")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	cmd := strings.ToLower(os.Args[1])
	switch cmd {
	case "decode":
		os.Exit(runDecode(os.Args[2:]))
	case "tables":
		os.Exit(runTables(os.Args[2:]))
	case "-h", "--help", "help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage(os.Stderr)
		os.Exit(2)
	}
}

// loadConfig reads the config file and applies the flags the user set.
func loadConfig(fs *flag.FlagSet, path string, overrides map[string]func(*config.Config)) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	fs.Visit(func(f *flag.Flag) {
		if apply, ok := overrides[f.Name]; ok {
			apply(&cfg)
		}
	})
	return cfg, cfg.Validate()
}

// loadProfiles returns the built-in profiles plus any YAML tables in dir.
func loadProfiles(dir string, log logrus.FieldLogger) (*registry.Registry, error) {
	reg := registry.New()
	if dir == "" {
		return reg, nil
	}
	names, err := reg.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	log.WithField("profiles", names).Debug("loaded field tables")
	return reg, nil
}

// decodeOptions controls decodeStream.
type decodeOptions struct {
	Profile string
	Charset iso8583.Charset
	// Issuers feeds issuer notes when Annotate is set. It may be nil.
	Issuers  *enrichment.IssuerCache
	Annotate bool
}

// decodeStream decodes every line of r. Lines naming an unknown profile are
// counted as rejected and skipped.
func decodeStream(ctx context.Context, r io.Reader, reg *registry.Registry, opts decodeOptions, log logrus.FieldLogger) ([]Line, *Stats, error) {
	scanner := bufio.NewScanner(r)
	// Messages with large private fields can run long; bump buffer.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 16*1024*1024)

	out := make([]Line, 0, 256)
	st := &Stats{}

	for scanner.Scan() {
		st.Lines++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			st.Blank++
			continue
		}

		in, err := parseInput(text)
		if err != nil {
			st.Rejected++
			log.WithError(err).WithField("line", st.Lines).Warn("skipping line")
			continue
		}
		if in.Profile == "" {
			in.Profile = opts.Profile
		}

		profile, err := reg.Lookup(in.Profile)
		if err != nil {
			st.Rejected++
			log.WithError(err).WithField("line", st.Lines).Warn("skipping line")
			continue
		}
		dec, err := reg.Decoder(profile.Name, opts.Charset)
		if err != nil {
			return nil, st, err
		}

		res := dec.Decode(in.Hex)
		st.Decoded++
		if !res.Success {
			st.Unsuccessful++
		}

		l := Line{Line: st.Lines, Source: in.Source, Profile: profile.Name, Result: res}
		if opts.Annotate {
			l.Annotations = enrichment.Annotate(ctx, res, opts.Issuers)
		}
		out = append(out, l)
	}

	if err := scanner.Err(); err != nil {
		return out, st, fmt.Errorf("read input: %w", err)
	}
	return out, st, nil
}

func parseInput(text string) (Input, error) {
	if !strings.HasPrefix(text, "{") {
		return Input{Hex: text}, nil
	}
	var in Input
	if err := json.Unmarshal([]byte(text), &in); err != nil {
		return in, fmt.Errorf("invalid JSON line: %w", err)
	}
	return in, nil
}

// writeReports writes the text report of each line, separated by a blank
// line.
func writeReports(w io.Writer, lines []Line) error {
	for i, l := range lines {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		header := fmt.Sprintf("# line %d", l.Line)
		if l.Source != "" {
			header += " (" + l.Source + ")"
		}
		if _, err := io.WriteString(w, header+"\n"); err != nil {
			return err
		}
		if err := iso8583.WriteReport(w, l.Result); err != nil {
			return err
		}
		if err := enrichment.WriteNotes(w, l.Annotations); err != nil {
			return err
		}
	}
	return nil
}

func runDecode(args []string) int {
	fs := flag.NewFlagSet("decode", flag.ExitOnError)
	cfgPath := fs.String("config", "", "YAML configuration file")
	inPath := fs.String("input", "", "Input file, one message per line (default: stdin)")
	outPath := fs.String("output", "", "Output file (default: stdout)")
	pretty := fs.Bool("pretty", false, "Pretty-print JSON output")
	report := fs.Bool("report", false, "Write text reports instead of JSON")
	annotate := fs.Bool("annotate", false, "Add PAN, response code and ICC annotations")
	showStats := fs.Bool("stats", false, "Print basic counters to stderr")
	profile := fs.String("profile", spec.ProfileISO1987, "Field table profile")
	charset := fs.String("charset", "ascii", "Text field charset: ascii or ebcdic")
	tables := fs.String("tables", "", "Directory of YAML field tables")
	dbPath := fs.String("db", "", "SQLite archive to store results in")
	_ = fs.Parse(args)

	cfg, err := loadConfig(fs, *cfgPath, map[string]func(*config.Config){
		"profile": func(c *config.Config) { c.Profile = *profile },
		"charset": func(c *config.Config) { c.Charset = *charset },
		"tables":  func(c *config.Config) { c.TablesDir = *tables },
		"db":      func(c *config.Config) { c.Storage.SQLitePath = *dbPath },
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}
	log := cfg.NewLogger(os.Stderr)
	ctx := context.Background()

	reg, err := loadProfiles(cfg.TablesDir, log)
	if err != nil {
		log.WithError(err).Error("load field tables")
		return 1
	}
	if _, err := reg.Lookup(cfg.Profile); err != nil {
		log.WithError(err).WithField("profile", cfg.Profile).Error("unknown profile")
		return 1
	}

	opts := decodeOptions{Profile: cfg.Profile, Charset: cfg.CharsetValue(), Annotate: *annotate}
	if *annotate && cfg.Storage.Postgres.Host != "" {
		pg, err := storage.OpenPostgres(ctx, cfg.Storage.Postgres)
		if err != nil {
			log.WithError(err).Error("open PostgreSQL")
			return 1
		}
		defer pg.Close()
		opts.Issuers = enrichment.NewIssuerCache(pg)
		opts.Issuers.Acquire()
		defer opts.Issuers.Release()
	}

	var r io.Reader = os.Stdin
	if *inPath != "" {
		f, err := os.Open(*inPath)
		if err != nil {
			log.WithError(err).Error("open input")
			return 1
		}
		defer f.Close()
		r = f
	}

	lines, st, err := decodeStream(ctx, r, reg, opts, log)
	if err != nil {
		log.WithError(err).Error("decode input")
		return 1
	}

	if cfg.Storage.SQLitePath != "" {
		n, err := archive(ctx, cfg.Storage.SQLitePath, lines)
		if err != nil {
			log.WithError(err).Error("archive results")
			return 1
		}
		st.Archived = n
	}

	var wout io.Writer = os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			log.WithError(err).Error("create output")
			return 1
		}
		defer f.Close()
		wout = f
	}

	if *report {
		err = writeReports(wout, lines)
	} else {
		err = writeJSON(wout, lines, *pretty)
	}
	if err != nil {
		log.WithError(err).Error("write output")
		return 1
	}

	if *showStats {
		fmt.Fprintf(os.Stderr,
			"stats: lines=%d blank=%d decoded=%d unsuccessful=%d rejected=%d archived=%d\n",
			st.Lines, st.Blank, st.Decoded, st.Unsuccessful, st.Rejected, st.Archived,
		)
	}
	return 0
}

func writeJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// archive stores every decoded line in the SQLite archive at path.
func archive(ctx context.Context, path string, lines []Line) (int, error) {
	db, err := storage.OpenSQLite(path)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	now := time.Now()
	records := make([]storage.Record, 0, len(lines))
	for _, l := range lines {
		source := l.Source
		if source == "" {
			source = "cli"
		}
		rec, err := storage.NewRecord(source, l.Profile, now, l.Result)
		if err != nil {
			return 0, fmt.Errorf("line %d: %w", l.Line, err)
		}
		records = append(records, rec)
	}
	if err := db.InsertBatch(ctx, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

func runTables(args []string) int {
	fs := flag.NewFlagSet("tables", flag.ExitOnError)
	cfgPath := fs.String("config", "", "YAML configuration file")
	tables := fs.String("tables", "", "Directory of YAML field tables")
	fields := fs.String("fields", "", "Print the field table of this profile")
	_ = fs.Parse(args)

	cfg, err := loadConfig(fs, *cfgPath, map[string]func(*config.Config){
		"tables": func(c *config.Config) { c.TablesDir = *tables },
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}
	log := cfg.NewLogger(os.Stderr)

	reg, err := loadProfiles(cfg.TablesDir, log)
	if err != nil {
		log.WithError(err).Error("load field tables")
		return 1
	}

	if *fields != "" {
		err = writeFieldTable(os.Stdout, reg, *fields)
	} else {
		err = writeProfiles(os.Stdout, reg)
	}
	if errors.Is(err, registry.ErrProfileNotFound) {
		log.WithError(err).WithField("profile", *fields).Error("unknown profile")
		return 1
	}
	if err != nil {
		log.WithError(err).Error("write tables")
		return 1
	}
	return 0
}

func writeProfiles(w io.Writer, reg *registry.Registry) error {
	var b strings.Builder
	for _, name := range reg.Names() {
		p, err := reg.Lookup(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, "%-24s %3d fields  %s\n", p.Name, len(p.Fields), p.Description)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeFieldTable(w io.Writer, reg *registry.Registry, name string) error {
	p, err := reg.Lookup(name)
	if err != nil {
		return err
	}
	var b strings.Builder
	for n := 1; n <= 128; n++ {
		fs, ok := p.Fields[n]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "DE%-4d %-7s %-21s %4d  %s\n", fs.Number, fs.Format, fs.Type, fs.MaxLength, fs.Name)
	}
	_, err = io.WriteString(w, b.String())
	return err
}

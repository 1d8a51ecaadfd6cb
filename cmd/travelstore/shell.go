package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/pretty"

	"github.com/kjk/travelstore/archive"
	"github.com/kjk/travelstore/config"
	"github.com/kjk/travelstore/export"
	"github.com/kjk/travelstore/log"
	"github.com/kjk/travelstore/record"
	"github.com/kjk/travelstore/store"
	"github.com/kjk/travelstore/u"
)

const Prompt = "travel> "

var errQuit = errors.New("quit")

type command struct {
	name    string
	args    string
	help    string
	minArgs int
	maxArgs int
	fn      func(sh *Shell, ctx context.Context, args []string) error
}

var commands []*command

func init() {
	commands = []*command{
		{"add", "<id> <destination> <hotel> <YYYY-MM-DD> <days> <price>", "append a package", 6, 6, (*Shell).cmdAdd},
		{"import", "<file.jsonl>", "append packages from json lines file (.gz .zst .br ok)", 1, 1, (*Shell).cmdImport},
		{"get", "<id>", "find package using index", 1, 1, (*Shell).cmdGet},
		{"scan", "<id>", "find package reading the whole file", 1, 1, (*Shell).cmdScan},
		{"keys", "", "list index entries (key and offset)", 0, 0, (*Shell).cmdKeys},
		{"len", "", "number of indexed packages", 0, 0, (*Shell).cmdLen},
		{"export", "<file.db>", "export packages to sqlite database", 1, 1, (*Shell).cmdExport},
		{"snapshot", "<dst>", "copy data file to dst, compressed if .zst .br .gz", 1, 1, (*Shell).cmdSnapshot},
		{"upload", "<local> [remote]", "upload a snapshot to remote storage", 1, 2, (*Shell).cmdUpload},
		{"download", "<remote> <local>", "download a snapshot from remote storage", 2, 2, (*Shell).cmdDownload},
		{"help", "", "show this help", 0, 0, (*Shell).cmdHelp},
		{"quit", "", "exit", 0, 0, (*Shell).cmdQuit},
	}
}

func findCommand(name string) *command {
	name = strings.ToLower(name)
	if name == "exit" {
		name = "quit"
	}
	for _, c := range commands {
		if c.name == name {
			return c
		}
	}
	return nil
}

// Shell executes commands against a store
type Shell struct {
	store  *store.Store
	cfg    *config.Config
	out    io.Writer
	remote *archive.Remote
}

func NewShell(s *store.Store, cfg *config.Config, out io.Writer) *Shell {
	u.PanicIf(s == nil, "NewShell: nil store")
	return &Shell{
		store: s,
		cfg:   cfg,
		out:   out,
	}
}

func (sh *Shell) printf(format string, args ...any) {
	fmt.Fprintf(sh.out, format, args...)
}

// splitArgs splits line on spaces, double quotes group words:
// add TUR1 "New York" "Grand Hotel" 2024-06-01 7 1000
func splitArgs(line string) ([]string, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = ' '
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1
	return r.Read()
}

// Run reads commands from r until quit or end of input
func (sh *Shell) Run(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for {
		sh.printf("%s", Prompt)
		if !scanner.Scan() {
			sh.printf("\n")
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		args, err := splitArgs(scanner.Text())
		if err != nil {
			sh.printf("Error: %s\n", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		quit, err := sh.Exec(ctx, args)
		if err != nil {
			sh.printf("Error: %s\n", err)
		}
		if quit {
			return nil
		}
	}
}

// Exec runs a single command. Returns true if shell should exit.
func (sh *Shell) Exec(ctx context.Context, args []string) (bool, error) {
	c := findCommand(args[0])
	if c == nil {
		return false, fmt.Errorf("unknown command '%s', type 'help'", args[0])
	}
	args = args[1:]
	if len(args) < c.minArgs || len(args) > c.maxArgs {
		return false, fmt.Errorf("usage: %s %s", c.name, c.args)
	}
	timeStart := time.Now()
	err := c.fn(sh, ctx, args)
	quit := err == errQuit
	if quit {
		err = nil
	}
	log.EventWithDuration("command", time.Since(timeStart), "name", c.name, "ok", err == nil)
	return quit, err
}

func (sh *Shell) printPackage(p *record.Package) error {
	d, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = sh.out.Write(pretty.Pretty(d))
	return err
}

func parsePackage(args []string) (*record.Package, error) {
	p := &record.Package{
		PackageID:   args[0],
		Destination: args[1],
		HotelName:   args[2],
	}
	if p.PackageID == "" {
		return nil, errors.New("empty package id")
	}
	var err error
	p.StartDate, err = record.ParseDate(args[3])
	if err != nil {
		return nil, fmt.Errorf("invalid date '%s', expected YYYY-MM-DD", args[3])
	}
	p.Duration, err = strconv.Atoi(args[4])
	if err != nil || p.Duration < 0 {
		return nil, fmt.Errorf("invalid duration '%s'", args[4])
	}
	p.Price, err = strconv.ParseFloat(args[5], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid price '%s'", args[5])
	}
	return p, nil
}

func (sh *Shell) cmdAdd(ctx context.Context, args []string) error {
	p, err := parsePackage(args)
	if err != nil {
		return err
	}
	e, err := sh.store.Append(p)
	if err != nil {
		return err
	}
	sh.printf("added '%s' at offset %d\n", e.Key, e.Offset)
	return nil
}

func (sh *Shell) cmdImport(ctx context.Context, args []string) error {
	path := args[0]
	if !u.FileExists(path) {
		return fmt.Errorf("file '%s' doesn't exist", path)
	}
	f, err := u.OpenFileMaybeCompressed(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	n := 0
	lineNo := 0
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var p record.Package
		if err = json.Unmarshal([]byte(line), &p); err != nil {
			return fmt.Errorf("%s:%d: %w (imported %d packages)", path, lineNo, err, n)
		}
		if p.PackageID == "" {
			return fmt.Errorf("%s:%d: empty package_id (imported %d packages)", path, lineNo, n)
		}
		if _, err = sh.store.Append(&p); err != nil {
			return fmt.Errorf("%s:%d: %w (imported %d packages)", path, lineNo, err, n)
		}
		n++
	}
	if err = scanner.Err(); err != nil {
		return err
	}
	sh.printf("imported %d packages from '%s'\n", n, path)
	return nil
}

func (sh *Shell) cmdGet(ctx context.Context, args []string) error {
	key := args[0]
	p, err := sh.store.SearchByIndex(key)
	if errors.Is(err, store.ErrNotFound) {
		sh.printf("package '%s' not found\n", key)
		return nil
	}
	if err != nil {
		return err
	}
	if e, ok := sh.store.Lookup(key); ok {
		sh.printf("offset: %d\n", e.Offset)
	}
	return sh.printPackage(p)
}

func (sh *Shell) cmdScan(ctx context.Context, args []string) error {
	key := args[0]
	p, err := sh.store.SearchSequential(key)
	if errors.Is(err, store.ErrNotFound) {
		sh.printf("package '%s' not found\n", key)
		return nil
	}
	if err != nil {
		return err
	}
	return sh.printPackage(p)
}

func (sh *Shell) cmdKeys(ctx context.Context, args []string) error {
	for _, e := range sh.store.Entries() {
		sh.printf("%s\t%d\n", e.Key, e.Offset)
	}
	return nil
}

func (sh *Shell) cmdLen(ctx context.Context, args []string) error {
	sh.printf("%d\n", sh.store.Len())
	return nil
}

func (sh *Shell) cmdExport(ctx context.Context, args []string) error {
	n, err := export.ToSQLite(ctx, sh.store, args[0])
	if err != nil {
		return err
	}
	sh.printf("exported %d packages to '%s'\n", n, args[0])
	return nil
}

func (sh *Shell) cmdSnapshot(ctx context.Context, args []string) error {
	dst := args[0]
	n, err := archive.Snapshot(dst, sh.store.Path())
	if err != nil {
		return err
	}
	sh.printf("snapshot '%s': %d bytes => %d bytes\n", dst, n, u.FileSize(dst))
	return nil
}

// remoteConfig traces requests to log.Out in verbose mode
func (sh *Shell) remoteConfig() *archive.Config {
	rc := sh.cfg.Archive.RemoteConfig()
	if log.Verbose {
		rc.RequestTrace = log.Out
	}
	return rc
}

func (sh *Shell) getRemote(ctx context.Context) (*archive.Remote, error) {
	if sh.remote != nil {
		return sh.remote, nil
	}
	if sh.cfg == nil || !sh.cfg.Archive.HasRemote() {
		return nil, errors.New("remote storage not configured, set archive section in config")
	}
	r, err := archive.NewRemote(ctx, sh.remoteConfig())
	if err != nil {
		return nil, err
	}
	sh.remote = r
	return r, nil
}

func (sh *Shell) cmdUpload(ctx context.Context, args []string) error {
	local := args[0]
	if !u.FileExists(local) {
		return fmt.Errorf("file '%s' doesn't exist", local)
	}
	r, err := sh.getRemote(ctx)
	if err != nil {
		return err
	}
	var remotePath string
	if len(args) > 1 {
		remotePath = args[1]
	} else {
		remotePath = archive.RemotePath(sh.cfg.Archive.Prefix, local, time.Now())
	}
	info, err := r.Upload(ctx, remotePath, local)
	if err != nil {
		return err
	}
	sh.printf("uploaded '%s' as '%s', %d bytes\n", local, remotePath, info.Size)
	return nil
}

func (sh *Shell) cmdDownload(ctx context.Context, args []string) error {
	r, err := sh.getRemote(ctx)
	if err != nil {
		return err
	}
	if err = r.Download(ctx, args[1], args[0]); err != nil {
		return err
	}
	sh.printf("downloaded '%s' to '%s'\n", args[0], args[1])
	return nil
}

func (sh *Shell) cmdHelp(ctx context.Context, args []string) error {
	sorted := append([]*command(nil), commands...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].name < sorted[j].name
	})
	sh.printf("Commands:\n")
	for _, c := range sorted {
		usage := strings.TrimSpace(c.name + " " + c.args)
		sh.printf("  %-66s %s\n", usage, c.help)
	}
	return nil
}

func (sh *Shell) cmdQuit(ctx context.Context, args []string) error {
	return errQuit
}

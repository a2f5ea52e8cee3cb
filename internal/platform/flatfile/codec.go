// Package flatfile reads and writes entity collections as comma-delimited
// text files: one fixed header line followed by one positional row per record.
package flatfile

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/spf13/afero"
)

// DefaultTimeout bounds a single Load or Save when no timeout is configured.
const DefaultTimeout = 5 * time.Second

// maxLineBytes is the longest row Load accepts. A longer row fails the whole
// Load with bufio.ErrTooLong.
const maxLineBytes = 1 << 20

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

// Kind classifies a row-level problem found while reading or writing a file.
type Kind string

const (
	// KindShortRow marks a row with fewer fields than the header; the row is skipped.
	KindShortRow Kind = "short_row"
	// KindBadNumber marks a numeric field that did not parse and was read as 0.
	KindBadNumber Kind = "bad_number"
	// KindLossy marks a written record that will not read back unchanged.
	KindLossy Kind = "lossy"
)

// Diagnostic describes one problem at a given line of a file.
type Diagnostic struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Kind   Kind   `json:"kind"`
	Detail string `json:"detail"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d: %s: %s", d.File, d.Line, d.Kind, d.Detail)
}

// Report summarises one Load or Save.
type Report struct {
	File        string       `json:"file"`
	Rows        int          `json:"rows"`
	Loaded      int          `json:"loaded"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// Skipped returns the number of data rows that did not produce a record.
func (r Report) Skipped() int { return r.Rows - r.Loaded }

// Count returns the number of diagnostics of the given kind.
func (r Report) Count(k Kind) int {
	return lo.CountBy(r.Diagnostics, func(d Diagnostic) bool { return d.Kind == k })
}

// ---------------------------------------------------------------------------
// Rows and schemas
// ---------------------------------------------------------------------------

// Row is one parsed data line handed to a Schema's Decode function.
type Row struct {
	fields []string
	file   string
	line   int
	diags  []Diagnostic
}

// Len returns the number of fields on the row.
func (r *Row) Len() int { return len(r.fields) }

// Str returns field i, or "" when the row is shorter.
func (r *Row) Str(i int) string {
	if i < 0 || i >= len(r.fields) {
		return ""
	}
	return r.fields[i]
}

// Int parses field i as a decimal integer. A blank field reads as 0; an
// unparseable one also reads as 0 and is reported.
func (r *Row) Int(i int) int {
	s := strings.TrimSpace(r.Str(i))
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		r.diags = append(r.diags, Diagnostic{
			File:   r.file,
			Line:   r.line,
			Kind:   KindBadNumber,
			Detail: fmt.Sprintf("column %d: %q is not a number", i, s),
		})
		return 0
	}
	return n
}

// Schema binds a record type to its file layout.
type Schema[T any] struct {
	File   string
	Header []string
	// Quoted lists the column indexes wrapped in quotes on write.
	Quoted []int
	Decode func(r *Row) T
	Encode func(rec T) []string
}

// Fields is the number of fields every row must carry.
func (s Schema[T]) Fields() int { return len(s.Header) }

// ---------------------------------------------------------------------------
// Codec
// ---------------------------------------------------------------------------

// Codec resolves schema file names under a data directory on an afero.Fs.
type Codec struct {
	fs      afero.Fs
	dir     string
	timeout time.Duration
	logger  zerolog.Logger
}

// Option configures a Codec.
type Option func(*Codec)

// WithTimeout bounds each Load and Save. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *Codec) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Codec) { c.logger = l.With().Str("component", "flatfile").Logger() }
}

// New returns a Codec that stores files under dir on fs.
func New(fs afero.Fs, dir string, opts ...Option) *Codec {
	c := &Codec{fs: fs, dir: dir, timeout: DefaultTimeout, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Path returns the full path of file under the codec's directory.
func (c *Codec) Path(file string) string { return filepath.Join(c.dir, file) }

// Fs returns the underlying filesystem.
func (c *Codec) Fs() afero.Fs { return c.fs }

// Dir returns the data directory.
func (c *Codec) Dir() string { return c.dir }

func (c *Codec) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// Load reads every record of s. The header line is discarded, blank lines are
// ignored and rows with too few fields are skipped and reported. A file that
// cannot be opened yields no records and a non-nil error.
func Load[T any](ctx context.Context, c *Codec, s Schema[T]) ([]T, Report, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	path := c.Path(s.File)
	rep := Report{File: s.File}

	f, err := c.fs.Open(path)
	if err != nil {
		return nil, rep, fmt.Errorf("flatfile: open %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var out []T
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return out, rep, fmt.Errorf("flatfile: read %s: %w", path, err)
		}
		if lineNo == 1 {
			continue
		}
		line := strings.TrimSuffix(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		rep.Rows++
		row := &Row{fields: SplitLine(line), file: s.File, line: lineNo}
		if row.Len() < s.Fields() {
			rep.Diagnostics = append(rep.Diagnostics, Diagnostic{
				File:   s.File,
				Line:   lineNo,
				Kind:   KindShortRow,
				Detail: fmt.Sprintf("%d fields, want %d", row.Len(), s.Fields()),
			})
			continue
		}
		out = append(out, s.Decode(row))
		rep.Diagnostics = append(rep.Diagnostics, row.diags...)
		rep.Loaded++
	}
	if err := sc.Err(); err != nil {
		return out, rep, fmt.Errorf("flatfile: read %s: %w", path, err)
	}

	c.logReport(rep, "loaded")
	return out, rep, nil
}

// Save writes the header and every record of s to a temporary file and then
// renames it over the target. Records that will not read back unchanged are
// still written and reported as lossy.
func Save[T any](ctx context.Context, c *Codec, s Schema[T], records []T) (rep Report, err error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	path := c.Path(s.File)
	tmp := path + ".tmp"
	rep = Report{File: s.File}

	if _, statErr := c.fs.Stat(c.dir); statErr != nil {
		if err := c.fs.MkdirAll(c.dir, 0o755); err != nil {
			return rep, fmt.Errorf("flatfile: create %s: %w", c.dir, err)
		}
	}

	f, err := c.fs.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return rep, fmt.Errorf("flatfile: create %s: %w", tmp, err)
	}
	defer func() {
		if err != nil {
			_ = c.fs.Remove(tmp)
		}
	}()

	w := bufio.NewWriter(f)
	write := func(line string) error {
		if _, err := w.WriteString(line); err != nil {
			return err
		}
		return w.WriteByte('\n')
	}

	if err = write(strings.Join(s.Header, string(delimiter))); err != nil {
		f.Close()
		return rep, fmt.Errorf("flatfile: write %s: %w", tmp, err)
	}
	for i, rec := range records {
		if err = ctx.Err(); err != nil {
			f.Close()
			return rep, fmt.Errorf("flatfile: write %s: %w", tmp, err)
		}
		fields := s.Encode(rec)
		lineNo := i + 2
		for col, v := range fields {
			if !lossless(v, lo.Contains(s.Quoted, col)) {
				rep.Diagnostics = append(rep.Diagnostics, Diagnostic{
					File:   s.File,
					Line:   lineNo,
					Kind:   KindLossy,
					Detail: fmt.Sprintf("column %d (%s) will not read back unchanged", col, columnName(s.Header, col)),
				})
			}
		}
		if err = write(JoinLine(fields, s.Quoted)); err != nil {
			f.Close()
			return rep, fmt.Errorf("flatfile: write %s: %w", tmp, err)
		}
		rep.Rows++
		rep.Loaded++
	}

	if err = w.Flush(); err != nil {
		f.Close()
		return rep, fmt.Errorf("flatfile: flush %s: %w", tmp, err)
	}
	if err = f.Close(); err != nil {
		return rep, fmt.Errorf("flatfile: close %s: %w", tmp, err)
	}
	if err = c.fs.Rename(tmp, path); err != nil {
		return rep, fmt.Errorf("flatfile: rename %s: %w", path, err)
	}

	c.logReport(rep, "saved")
	return rep, nil
}

// IsNotExist reports whether err came from opening a file that does not exist.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

func columnName(header []string, i int) string {
	if i < len(header) {
		return header[i]
	}
	return "?"
}

func (c *Codec) logReport(rep Report, verb string) {
	for _, d := range rep.Diagnostics {
		c.logger.Warn().
			Str("file", d.File).
			Int("line", d.Line).
			Str("kind", string(d.Kind)).
			Msg(d.Detail)
	}
	c.logger.Debug().
		Str("file", rep.File).
		Int("rows", rep.Rows).
		Int("records", rep.Loaded).
		Int("diagnostics", len(rep.Diagnostics)).
		Msg("flat file " + verb)
}

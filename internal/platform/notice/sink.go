package notice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"gopkg.in/gomail.v2"
)

// Format selects which sinks NewSink builds.
type Format string

const (
	FormatText Format = "text"
	FormatEML  Format = "eml"
	FormatBoth Format = "both"
)

var ErrUnknownFormat = errors.New("unknown notice format")

// ParseFormat validates a NOTICE_FORMAT value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatEML, FormatBoth:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// NewSink builds the sink for format, writing under dir on fs. from is the
// sender address used on .eml notices.
func NewSink(format Format, fs afero.Fs, dir, from string) (Sink, error) {
	switch format {
	case FormatText:
		return NewFileSink(fs, dir), nil
	case FormatEML:
		return NewMailSink(fs, dir, from), nil
	case FormatBoth:
		return MultiSink{NewFileSink(fs, dir), NewMailSink(fs, dir, from)}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// ---------------------------------------------------------------------------
// FileSink
// ---------------------------------------------------------------------------

// FileSink writes the plain-text notice body to <kind>_<record id>.txt.
// Prescription notices replace the file; referral notices are appended so
// repeated sends accumulate.
type FileSink struct {
	fs  afero.Fs
	dir string
}

func NewFileSink(fs afero.Fs, dir string) *FileSink {
	return &FileSink{fs: fs, dir: dir}
}

// Path returns the file a notice of kind for recordID is written to.
func (s *FileSink) Path(kind Kind, recordID string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.txt", kind, recordID))
}

func (s *FileSink) Deliver(ctx context.Context, n *Notice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("notice: create %s: %w", s.dir, err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if n.Kind == KindReferral {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	path := s.Path(n.Kind, n.RecordID)
	f, err := s.fs.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("notice: open %s: %w", path, err)
	}
	if _, err := f.WriteString(n.Body); err != nil {
		f.Close()
		return fmt.Errorf("notice: write %s: %w", path, err)
	}
	return f.Close()
}

// ---------------------------------------------------------------------------
// MailSink
// ---------------------------------------------------------------------------

// MailSink writes each notice as a MIME message to
// <dir>/outbox/<kind>_<record id>_<notice id>.eml. Nothing is sent over the
// network; the outbox is picked up by whatever mail relay the site runs.
type MailSink struct {
	fs   afero.Fs
	dir  string
	from string
}

func NewMailSink(fs afero.Fs, dir, from string) *MailSink {
	return &MailSink{fs: fs, dir: filepath.Join(dir, "outbox"), from: from}
}

func (s *MailSink) Path(n *Notice) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s_%s.eml", n.Kind, n.RecordID, n.ID))
}

func (s *MailSink) Deliver(ctx context.Context, n *Notice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("notice: create %s: %w", s.dir, err)
	}

	msg := gomail.NewMessage(gomail.SetEncoding(gomail.Unencoded))
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", s.from)
	msg.SetHeader("Subject", n.Subject)
	msg.SetHeader("X-Clinic-Kind", string(n.Kind))
	msg.SetHeader("X-Clinic-Record", n.RecordID)
	if n.Recipient != "" {
		msg.SetHeader("X-Clinic-Recipient", n.Recipient)
	}
	msg.SetDateHeader("Date", n.CreatedAt)
	msg.SetBody("text/plain", n.Body)

	path := s.Path(n)
	f, err := s.fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("notice: open %s: %w", path, err)
	}
	if _, err := msg.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("notice: write %s: %w", path, err)
	}
	return f.Close()
}

// ---------------------------------------------------------------------------
// MultiSink
// ---------------------------------------------------------------------------

// MultiSink delivers to every sink and combines their errors.
type MultiSink []Sink

func (m MultiSink) Deliver(ctx context.Context, n *Notice) error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.Deliver(ctx, n))
	}
	return err
}

// Package cmdproto implements the line-oriented stdio protocol used by
// command-line adaptor processes: a version header naming a
// caller-chosen delimiter, followed by "command=argument" records
// separated by that delimiter, with the "content" command switching the
// stream to raw bytes for the remainder of its lifetime.
package cmdproto

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/googlegsa/library/adaptor"
	"github.com/googlegsa/library/common"
)

const headerPrefix = "GSA Adaptor Data Version 1 ["

// forbiddenDelimChars matches any single character the delimiter must
// not contain, so a malformed header is rejected instead of silently
// misparsing the stream.
var forbiddenDelimChars = regexp.MustCompile(`[A-Za-z0-9:/\-_ =+\[\]]`)

// knownCommands is every command name the protocol defines; anything
// else is logged and skipped per spec.
var knownCommands = map[string]bool{
	"id": true, "id-list": true, "content": true,
	"meta-name": true, "meta-value": true, "last-modified": true,
	"result-link": true, "crawl-immediately": true, "crawl-once": true,
	"lock": true, "delete": true, "up-to-date": true, "not-found": true,
	"mime-type": true, "authz-status": true, "user": true,
	"password": true, "group": true, "repository-unavailable": true,
}

// Command is one decoded protocol record. For the terminal "content"
// command, Content holds every remaining byte of the stream and Name is
// "content"; for every other command, Argument holds the text after '='
// (empty for argument-less commands like "lock" or "delete").
type Command struct {
	Name     string
	Argument string
	Content  []byte
}

// IsContent reports whether this is the stream-terminating content
// command.
func (c Command) IsContent() bool { return c.Name == "content" }

// ParseAuthzStatus converts an "authz-status=" argument ("PERMIT",
// "DENY", or "INDETERMINATE") to the framework's AuthzStatus.
func ParseAuthzStatus(s string) (adaptor.AuthzStatus, error) {
	switch strings.ToUpper(s) {
	case "PERMIT":
		return adaptor.Permit, nil
	case "DENY":
		return adaptor.Deny, nil
	case "INDETERMINATE":
		return adaptor.Indeterminate, nil
	default:
		return 0, fmt.Errorf("cmdproto: unrecognized authz-status %q", s)
	}
}

// Reader decodes a command stream after its header has been consumed.
type Reader struct {
	src     *bufio.Reader
	delim   []byte
	drained bool
	logger  *common.ContextLogger
}

// NewReader reads and validates the protocol header from src, returning
// a Reader positioned at the first command record.
func NewReader(src io.Reader) (*Reader, error) {
	br := bufio.NewReader(src)

	raw, err := br.ReadBytes('[')
	if err != nil {
		return nil, fmt.Errorf("cmdproto: reading header: %w", err)
	}
	if !strings.HasSuffix(string(raw), headerPrefix) {
		return nil, fmt.Errorf("cmdproto: missing %q header", strings.TrimSuffix(headerPrefix, "["))
	}

	delim, err := br.ReadBytes(']')
	if err != nil {
		return nil, fmt.Errorf("cmdproto: reading delimiter: %w", err)
	}
	delim = delim[:len(delim)-1] // drop trailing ']'
	if len(delim) == 0 {
		return nil, errors.New("cmdproto: empty delimiter")
	}
	if forbiddenDelimChars.Match(delim) {
		return nil, fmt.Errorf("cmdproto: delimiter %q contains a reserved character", delim)
	}

	// The header line is itself terminated by one copy of the delimiter.
	probe := make([]byte, len(delim))
	if _, err := io.ReadFull(br, probe); err != nil {
		return nil, fmt.Errorf("cmdproto: reading header terminator: %w", err)
	}
	if !bytes.Equal(probe, delim) {
		return nil, fmt.Errorf("cmdproto: header not terminated by its own delimiter")
	}

	return &Reader{src: br, delim: delim, logger: common.ServiceLogger("cmdproto")}, nil
}

// Next decodes the next record. It returns ok=false once the stream is
// exhausted (either a genuine EOF before any content command, or after
// the terminal content command has been consumed). Unknown command
// names are logged and skipped transparently; callers never see them.
func (r *Reader) Next() (Command, bool, error) {
	for {
		if r.drained {
			return Command{}, false, nil
		}

		tok, err := r.nextToken()
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.drained = true
				return Command{}, false, nil
			}
			return Command{}, false, err
		}

		name, arg, _ := strings.Cut(string(tok), "=")
		if name == "content" {
			r.drained = true
			rest, err := io.ReadAll(r.src)
			if err != nil {
				return Command{}, false, fmt.Errorf("cmdproto: reading content: %w", err)
			}
			return Command{Name: "content", Content: rest}, true, nil
		}

		if !knownCommands[name] {
			r.logger.WithField("command", name).Warn("cmdproto: unknown command, skipping")
			continue
		}
		return Command{Name: name, Argument: arg}, true, nil
	}
}

// nextToken reads bytes up to (and consuming) the next delimiter, or
// returns the final unterminated token followed by io.EOF.
func (r *Reader) nextToken() ([]byte, error) {
	var buf bytes.Buffer
	for {
		b, err := r.src.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) && buf.Len() > 0 {
				return buf.Bytes(), nil
			}
			return nil, err
		}
		buf.WriteByte(b)
		if buf.Len() >= len(r.delim) && bytes.Equal(buf.Bytes()[buf.Len()-len(r.delim):], r.delim) {
			return buf.Bytes()[:buf.Len()-len(r.delim)], nil
		}
	}
}

package feed

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// gzipThreshold is the payload size below which the transport requests
// gzip encoding instead of sending a fixed-length body.
const gzipThreshold = 1 << 20 // 1 MiB

// sourceNamePattern matches the datasource/groupsource part's required
// shape: a leading letter or underscore, then letters, digits, - or _.
var sourceNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// ReplyKind classifies the appliance's plain-text reply to a feed POST.
type ReplyKind int

const (
	// ReplySuccess means the feed was accepted.
	ReplySuccess ReplyKind = iota
	// ReplyUnauthorized means the sender's IP is not a trusted feeder;
	// this is fatal for the batch and bypasses the retry policy.
	ReplyUnauthorized
	// ReplyFailure is any other non-success reply.
	ReplyFailure
)

// TransportError is returned for I/O failures, connection failures, or a
// non-success reply from the appliance.
type TransportError struct {
	Reply ReplyKind
	Body  string
	Err   error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("feed: transport error: %v", e.Err)
	}
	return fmt.Sprintf("feed: appliance replied %q", e.Body)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Fatal reports whether this error should bypass the retry policy and
// fail the batch immediately.
func (e *TransportError) Fatal() bool { return e.Reply == ReplyUnauthorized }

// Transport posts feed payloads to the appliance's feed endpoint.
type Transport struct {
	FeedURL    string
	PartName   string // "datasource" or "groupsource"
	HTTPClient *http.Client
}

// NewTransport builds a Transport targeting feedURL (e.g.
// https://gsa.example.com:19902/xmlfeed), using partName as the source
// part name ("datasource" for document feeds, "groupsource" for group
// feeds).
func NewTransport(feedURL, partName string, timeout time.Duration) *Transport {
	return &Transport{
		FeedURL:    feedURL,
		PartName:   partName,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Send posts payload as a multipart/form-data request with the given
// source name and feed type, classifying the reply.
func (t *Transport) Send(ctx context.Context, source string, feedType FeedType, payload []byte) error {
	if !sourceNamePattern.MatchString(source) {
		return fmt.Errorf("feed: invalid source name %q", source)
	}

	body, contentType, gzipped, err := buildMultipartBody(t.PartName, source, string(feedType), payload)
	if err != nil {
		return fmt.Errorf("feed: building request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.FeedURL, body)
	if err != nil {
		return fmt.Errorf("feed: building request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if gzipped {
		req.Header.Set("Content-Encoding", "gzip")
	}

	resp, err := t.HTTPClient.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Err: fmt.Errorf("reading reply: %w", err)}
	}

	return classifyReply(string(raw))
}

func classifyReply(reply string) error {
	switch {
	case strings.EqualFold(reply, "success"):
		return nil
	case reply == "Error - Unauthorized Request":
		return &TransportError{Reply: ReplyUnauthorized, Body: reply}
	default:
		return &TransportError{Reply: ReplyFailure, Body: reply}
	}
}

// buildMultipartBody assembles the datasource/groupsource, feedtype, and
// data parts. When payload is under gzipThreshold, the data part is
// gzip-compressed and the caller sets Content-Encoding accordingly;
// otherwise the body is sent uncompressed.
func buildMultipartBody(partName, source, feedType string, payload []byte) (io.Reader, string, bool, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField(partName, source); err != nil {
		return nil, "", false, err
	}
	if err := writer.WriteField("feedtype", feedType); err != nil {
		return nil, "", false, err
	}

	gzipped := len(payload) < gzipThreshold
	data := payload
	if gzipped {
		var compressed bytes.Buffer
		gz := gzip.NewWriter(&compressed)
		if _, err := gz.Write(payload); err != nil {
			return nil, "", false, err
		}
		if err := gz.Close(); err != nil {
			return nil, "", false, err
		}
		data = compressed.Bytes()
	}

	part, err := writer.CreateFormField("data")
	if err != nil {
		return nil, "", false, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", false, err
	}
	if err := writer.Close(); err != nil {
		return nil, "", false, err
	}
	return &buf, writer.FormDataContentType(), gzipped, nil
}

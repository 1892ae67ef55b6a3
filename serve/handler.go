package serve

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/googlegsa/library/adaptor"
	"github.com/googlegsa/library/common"
	"github.com/googlegsa/library/docid"
	"github.com/labstack/echo/v4"
)

// ifModifiedSinceLayouts is the order in which a client's If-Modified-Since
// value is attempted: the modern RFC1123 form first, then the older
// RFC1036 form, then the asctime form some very old clients still send.
var ifModifiedSinceLayouts = []string{
	time.RFC1123,
	"Monday, 02-Jan-06 15:04:05 MST", // RFC1036
	time.ANSIC,                       // asctime
}

func parseIfModifiedSince(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range ifModifiedSinceLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Handler serves document content and authorization checks for a single
// adaptor, implementing the appliance's trusted-client GET/HEAD content
// protocol on top of echo, in the teacher's own server-construction idiom
// (http/server.go's echo.Echo wiring).
type Handler struct {
	adaptor      adaptor.Adaptor
	trust        *TrustList
	sessions     *SessionStore
	transforms   *TransformPipeline
	authnHandler adaptor.AuthnHandler
	logger       *common.ContextLogger
}

// NewHandler builds a Handler for a. transforms may be nil, in which case
// content is served untransformed.
func NewHandler(a adaptor.Adaptor, trust *TrustList, sessions *SessionStore, transforms *TransformPipeline) *Handler {
	if transforms == nil {
		transforms = NewTransformPipeline(0, false)
	}
	return &Handler{
		adaptor:    a,
		trust:      trust,
		sessions:   sessions,
		transforms: transforms,
		logger:     common.ServiceLogger("serve"),
	}
}

// SetAuthnHandler installs the handler invoked when an unauthenticated
// client is denied access, satisfying adaptor.Capabilities.RegisterAuthnHandler.
func (h *Handler) SetAuthnHandler(handler adaptor.AuthnHandler) {
	h.authnHandler = handler
}

// docBasePath is the fixed prefix under which every DocId is served; the
// remainder of the request path is the dot-run-escaped unique ID produced
// by docid.EncodePath.
const docBasePath = "/doc/"

// Register wires the document-serving route onto e.
func (h *Handler) Register(e *echo.Echo) {
	e.GET(docBasePath+"*", h.serveDoc)
	e.HEAD(docBasePath+"*", h.serveDoc)
}

// isSecurityManagerProbe reports whether the request is a SecMgr "HEAD
// for authz" connectivity probe rather than a genuine content fetch;
// these are rejected outright before any session or authorization work,
// since a probe carries no identity to authenticate.
func isSecurityManagerProbe(r *http.Request) bool {
	return r.Header.Get("User-Agent") == "SecMgr"
}

func (h *Handler) serveDoc(c echo.Context) error {
	ctx := c.Request().Context()
	r := c.Request()

	if isSecurityManagerProbe(r) {
		return c.NoContent(http.StatusForbidden)
	}

	docID, err := docid.DecodePath(c.Param("*"))
	if err != nil {
		return c.String(http.StatusBadRequest, "invalid document id")
	}

	req := &adaptor.Request{
		DocId:            docID,
		Method:           r.Method,
		AcceptsGzip:      strings.Contains(r.Header.Get("Accept-Encoding"), "gzip"),
		TrustedAppliance: h.trust.IsTrusted(r),
	}
	if ims, ok := parseIfModifiedSince(r.Header.Get("If-Modified-Since")); ok {
		req.IfModifiedSince = &ims
	}

	identity, hasIdentity := h.identityFor(r)

	status, err := h.authorize(ctx, identity, docID)
	if err != nil {
		h.logger.WithError(err).Warn("serve: authorization check failed")
		return c.NoContent(http.StatusInternalServerError)
	}

	switch status {
	case adaptor.Indeterminate:
		return c.NoContent(http.StatusNotFound)
	case adaptor.Deny:
		if !hasIdentity && h.authnHandler != nil {
			if err := h.authnHandler.HandleUnauthenticated(ctx, req); err != nil {
				return c.NoContent(http.StatusInternalServerError)
			}
			return nil
		}
		return c.NoContent(http.StatusForbidden)
	}

	return h.serveContent(c, req)
}

func (h *Handler) identityFor(r *http.Request) (string, bool) {
	cookie, err := r.Cookie("GSA_SESSION")
	if err != nil || cookie.Value == "" {
		return "", false
	}
	identity, ok := h.sessions.Lookup(cookie.Value)
	return identity, ok
}

func (h *Handler) authorize(ctx context.Context, identity string, id docid.DocId) (adaptor.AuthzStatus, error) {
	results, err := h.adaptor.IsUserAuthorized(ctx, identity, []docid.DocId{id})
	if err != nil {
		return 0, err
	}
	status, ok := results[id]
	if !ok {
		return adaptor.Deny, nil
	}
	return status, nil
}

func (h *Handler) serveContent(c echo.Context, req *adaptor.Request) error {
	resp := newResponse()
	var buf writerBuffer
	resp.output = &buf

	if err := h.adaptor.GetDocContent(c.Request().Context(), req, resp); err != nil {
		h.logger.WithError(err).Warn("serve: GetDocContent failed")
		return c.NoContent(http.StatusInternalServerError)
	}

	switch resp.state {
	case stateNotModified:
		return c.NoContent(http.StatusNotModified)
	case stateNotFound:
		return c.NoContent(http.StatusNotFound)
	case stateSetup:
		// The adaptor never wrote anything; treat as empty content.
		resp.state = stateStreaming
	}

	return h.renderStreaming(c, req, resp, buf.Bytes())
}

func (h *Handler) renderStreaming(c echo.Context, req *adaptor.Request, resp *response, content []byte) error {
	transformed, err := h.transforms.Run(c.Request().Context(), resp.contentType, content)
	if err != nil {
		h.logger.WithError(err).Warn("serve: transform pipeline failed")
		return c.NoContent(http.StatusInternalServerError)
	}

	w := c.Response()
	header := w.Header()

	if resp.contentType != "" {
		header.Set(echo.HeaderContentType, resp.contentType)
	}
	if req.TrustedAppliance {
		h.setTrustedHeaders(header, resp)
	}

	if req.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return nil
	}

	if req.AcceptsGzip {
		header.Set("Content-Encoding", "gzip")
		w.WriteHeader(http.StatusOK)
		gz := gzip.NewWriter(w)
		defer gz.Close()
		_, err := gz.Write(transformed)
		return err
	}

	header.Set("Content-Length", strconv.Itoa(len(transformed)))
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(transformed)
	return err
}

func (h *Handler) setTrustedHeaders(header http.Header, resp *response) {
	meta := resp.builtMetadata()
	if meta.Len() > 0 {
		header.Add(headerExternalMetadata, metadataHeaderValue(meta))
	}
	if resp.hasAcl {
		header.Add(headerExternalMetadata, aclHeaderValue(resp.acl))
	}
	if len(resp.anchors) > 0 {
		header.Set(headerExternalAnchor, anchorHeaderValue(resp.anchors))
	}
	if robots := robotsTagValue(resp.noIndex, resp.noFollow, resp.noArchive); robots != "" {
		header.Set(headerRobotsTag, robots)
	}
	header.Set(headerServeSecurity, serveSecurityValue(resp.hasAcl))
}

// writerBuffer is the in-memory sink a response writes its content
// stream into before the handler applies transforms and trusted-client
// headers; GetOutputStream hands the adaptor this writer directly.
type writerBuffer struct {
	data []byte
}

func (b *writerBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *writerBuffer) Bytes() []byte { return b.data }

var _ io.Writer = (*writerBuffer)(nil)

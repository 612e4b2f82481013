// Package api serves weight decoding over HTTP.
package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/weightdecode/internal/blobfile"
	"github.com/samcharles93/weightdecode/internal/logger"
	"github.com/samcharles93/weightdecode/internal/version"
	"github.com/samcharles93/weightdecode/pkg/layout"
	"github.com/samcharles93/weightdecode/pkg/wdb"
	"github.com/samcharles93/weightdecode/pkg/weights"
)

// DefaultMaxBodyBytes bounds an uploaded request body.
const DefaultMaxBodyBytes int64 = 1 << 30

// multipartMemory is how much of a multipart body is kept in memory before
// parts spill to temporary files.
const multipartMemory = 32 << 20

type Config struct {
	// Decoder is the base decode configuration. Requests may override its
	// Format and Encoding through query parameters.
	Decoder      weights.Config
	MaxBodyBytes int64
	Logger       logger.Logger
}

type Server struct {
	decoder weights.Config
	maxBody int64
	log     logger.Logger
	clock   func() time.Time
}

func NewServer(cfg Config) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	return &Server{
		decoder: cfg.Decoder,
		maxBody: cfg.MaxBodyBytes,
		log:     cfg.Logger,
		clock:   time.Now,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)
	e.POST("/v1/decode", s.handleDecode)
	e.POST("/v1/inspect", s.handleInspect)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return writeJSON(c, http.StatusOK, HealthResponse{Status: "ok", Version: version.String()})
}

// decoderFor applies the request's format and encoding overrides.
func (s *Server) decoderFor(c *echo.Context) (*weights.Decoder, error) {
	cfg := s.decoder
	if q := c.QueryParam("format"); q != "" {
		f, err := weights.ParseFormat(q)
		if err != nil {
			return nil, newInvalidRequest("format", err.Error())
		}
		cfg.Format = f
	}
	if q := c.QueryParam("encoding"); q != "" {
		enc, err := wdb.ParseEncoding(q)
		if err != nil {
			return nil, newInvalidRequest("encoding", err.Error())
		}
		cfg.Encoding = enc
	}
	cfg.Logger = s.log
	return weights.NewWithConfig(cfg), nil
}

func (s *Server) handleDecode(c *echo.Context) error {
	req := c.Request()
	if req.ContentLength > s.maxBody {
		return writeTooLarge(c, s.maxBody)
	}
	dec, err := s.decoderFor(c)
	if err != nil {
		return writeBadRequest(c, err)
	}

	req.Body = http.MaxBytesReader(c.Response(), req.Body, s.maxBody)
	if err := req.ParseMultipartForm(multipartMemory); err != nil {
		if isTooLarge(err) {
			return writeTooLarge(c, s.maxBody)
		}
		return writeBadRequest(c, newInvalidRequest("", "expected multipart/form-data with layout and weights: "+err.Error()))
	}
	defer func() { _ = req.MultipartForm.RemoveAll() }()

	layoutJSON, err := formBytes(req.MultipartForm, "layout", s.maxBody)
	if err != nil {
		if isTooLarge(err) {
			return writeTooLarge(c, s.maxBody)
		}
		return writeBadRequest(c, err)
	}
	ml, err := layout.ParseJSON(layoutJSON)
	if err != nil {
		return writeBadRequest(c, newInvalidRequest("layout", err.Error()))
	}

	blob, err := s.readWeights(req)
	if err != nil {
		if isTooLarge(err) {
			return writeTooLarge(c, s.maxBody)
		}
		return writeBadRequest(c, err)
	}

	start := s.clock()
	ctx := req.Context()
	fut := dec.Decode(ctx, blob.Bytes(), ml)
	buf, err := fut.Wait(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// Client went away; the decode finishes in the background.
			return err
		}
		return writeError(c, decodeStatus(err), weights.Kind(err), err.Error(), "")
	}
	s.log.Info("decode served",
		"decode_id", fut.ID(),
		"total_size", len(buf),
		"bytes_in", blob.Len(),
		"elapsed", s.clock().Sub(start),
	)

	body := weights.EncodeRawF32(buf)
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, echo.MIMEOctetStream)
	res.Header().Set(echo.HeaderContentLength, strconv.Itoa(len(body)))
	res.Header().Set(HeaderDecodeID, fut.ID())
	res.Header().Set(HeaderTotalSize, strconv.Itoa(len(buf)))
	res.WriteHeader(http.StatusOK)
	_, err = res.Write(body)
	return err
}

func (s *Server) readWeights(req *http.Request) (*blobfile.Blob, error) {
	var (
		b   *blobfile.Blob
		err error
	)
	if fhs := req.MultipartForm.File["weights"]; len(fhs) > 0 {
		f, openErr := fhs[0].Open()
		if openErr != nil {
			return nil, openErr
		}
		defer func() { _ = f.Close() }()
		b, err = blobfile.FromReaderAt(f, fhs[0].Size, s.maxBody)
	} else if vs := req.MultipartForm.Value["weights"]; len(vs) > 0 {
		b, err = blobfile.FromReaderAt(strings.NewReader(vs[0]), int64(len(vs[0])), s.maxBody)
	} else {
		return nil, newInvalidRequest("weights", "missing form file weights")
	}
	if errors.Is(err, blobfile.ErrTooLarge) {
		return nil, &http.MaxBytesError{Limit: s.maxBody}
	}
	return b, err
}

func (s *Server) handleInspect(c *echo.Context) error {
	req := c.Request()
	if req.ContentLength > s.maxBody {
		return writeTooLarge(c, s.maxBody)
	}
	data, err := io.ReadAll(http.MaxBytesReader(c.Response(), req.Body, s.maxBody))
	if err != nil {
		if isTooLarge(err) {
			return writeTooLarge(c, s.maxBody)
		}
		return writeBadRequest(c, err)
	}

	ct, err := wdb.Parse(data)
	if err != nil {
		return writeError(c, decodeStatus(err), weights.Kind(err), err.Error(), "")
	}
	out := InspectResponse{
		Object: "wdb.container",
		Major:  ct.Header.Major,
		Minor:  ct.Header.Minor,
		Blocks: make([]BlockInfo, 0, len(ct.Blocks)),
	}
	for _, b := range ct.Blocks {
		out.Blocks = append(out.Blocks, BlockInfo{
			Name:         b.Name,
			Encoding:     b.Encoding.String(),
			Compression:  b.Compression.String(),
			Count:        b.Count,
			PayloadBytes: b.PayloadSize,
			Offset:       b.Offset,
		})
	}
	return writeJSON(c, http.StatusOK, out)
}

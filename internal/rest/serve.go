// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package rest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mlnoga/autochrome/internal/ops"
	"github.com/mlnoga/autochrome/internal/ops/autochrome"
	"github.com/mlnoga/autochrome/internal/pixbuf"
	"github.com/mlnoga/autochrome/web"
)

// Server configuration
type Config struct {
	Addr           string                 // listen address, e.g. ":3000"
	UploadDir      string                 // directory for uploaded and processed images, served under /uploads
	MaxUploadMB    int64                  // maximum request size in MiB, 0=unlimited
	MaxDim         int                    // downscale larger uploads to this many pixels on the longest side, 0=never
	Threads        int                    // threads per request, 0=default
	Quality        int                    // JPEG output quality, 0=default
	GrainWhenUnset autochrome.GrainPolicy // grain when a request has no filmGrain value
	Debug          bool                   // verbose text logging instead of JSON
}

// An autochrome upload server
type Server struct {
	cfg    Config
	logger *logrus.Logger
	now    func() time.Time
}

// Creates a logger for the server. Text output on debug, JSON otherwise
func NewLogger(debug bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if debug {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05"})
	}
	return logger
}

// Creates a server with the given configuration, creating the upload directory if necessary
func NewServer(cfg Config, logger *logrus.Logger) (*Server, error) {
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}
	if cfg.GrainWhenUnset == "" {
		cfg.GrainWhenUnset = autochrome.GrainUnsetDefault
	}
	if err := os.MkdirAll(cfg.UploadDir, 0755); err != nil {
		return nil, err
	}
	return &Server{cfg: cfg, logger: logger, now: time.Now}, nil
}

// Starts the server and blocks until it fails
func Serve(cfg Config) error {
	logger := NewLogger(cfg.Debug)
	s, err := NewServer(cfg, logger)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"addr":      cfg.Addr,
		"uploadDir": s.cfg.UploadDir,
		"grain":     s.cfg.GrainWhenUnset,
	}).Info("Starting autochrome server")
	return s.Router().Run(cfg.Addr)
}

// Returns the gin router serving the API, the uploads and the web page
func (s *Server) Router() *gin.Engine {
	if !s.cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), cors())

	r.GET("/", getIndex)
	r.StaticFS("/js", web.JavascriptFS())
	r.Static("/uploads", s.cfg.UploadDir)

	api := r.Group("/api")
	{
		api.POST("/process-image", s.limitBody(), s.postProcessImage)
		v1 := api.Group("/v1")
		{
			v1.GET("/ping", getPing)
			v1.POST("/process", s.postProcess)
		}
	}
	return r
}

// Logs one line per request
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := s.logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"client":  c.ClientIP(),
		})
		if len(c.Errors) > 0 {
			entry.WithField("errors", c.Errors.String()).Warn("Request failed")
		} else {
			entry.Info("Request")
		}
	}
}

// Allows cross-origin requests from any origin
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Limits the request body to the configured upload size
func (s *Server) limitBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.MaxUploadMB > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadMB<<20)
		}
		c.Next()
	}
}

func getIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", web.IndexHTML)
}

func getPing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

// Returns a per-request operator context writing its log to the given writer
func (s *Server) newContext(logWriter io.Writer) *ops.Context {
	c := ops.NewContext(logWriter)
	if s.cfg.Threads > 0 {
		c.MaxThreads = s.cfg.Threads
	}
	if s.cfg.Quality > 0 {
		c.Quality = s.cfg.Quality
	}
	c.Limits.MaxDim = s.cfg.MaxDim
	return c
}

// Processes a multipart upload with the image in field "image" and the options as form fields.
// Responds with the URLs of the stored original and processed images
func (s *Server) postProcessImage(c *gin.Context) {
	fh, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.Error(err)
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("Image larger than %d MiB", s.cfg.MaxUploadMB)})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image file provided"})
		return
	}

	opts, err := s.optionsFromForm(c)
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	base := sanitizeFileName(fh.Filename)
	originalName := fmt.Sprintf("%d-%s", s.now().UnixMilli(), base)
	originalPath := filepath.Join(s.cfg.UploadDir, originalName)
	if err := c.SaveUploadedFile(fh, originalPath); err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error processing image"})
		return
	}

	var log bytes.Buffer
	ctx := s.newContext(&log)
	defer func() {
		s.logger.WithField("file", originalName).Debug(log.String())
	}()

	b, err := pixbuf.NewBufferFromFile(originalPath, 0, ctx.Limits, ctx.Log)
	if err != nil {
		c.Error(err)
		var le *pixbuf.LoadError
		if errors.As(err, &le) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported or corrupt image file"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error processing image"})
		return
	}

	if _, err := autochrome.Process(b, opts, ctx); err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error processing image"})
		return
	}

	processedName := processedFileName(s.now().UnixMilli(), base)
	if err := b.WriteFile(filepath.Join(s.cfg.UploadDir, processedName), ctx.Quality); err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error processing image"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"original":  "/uploads/" + originalName,
		"processed": "/uploads/" + processedName,
	})
}

// Parses the processing options from the form fields. Missing, unparseable
// or zero numbers count as absent. Rejects unknown grain policies
func (s *Server) optionsFromForm(c *gin.Context) (opts autochrome.Options, err error) {
	opts.YellowTint = formPercent(c.PostForm("yellowTint"))
	opts.GreenTint = formPercent(c.PostForm("greenTint"))
	opts.MagentaTint = formPercent(c.PostForm("magentaTint"))
	opts.FilmGrain = formPercent(c.PostForm("filmGrain"))

	opts.GrainWhenUnset = s.cfg.GrainWhenUnset
	if p, ok := c.GetPostForm("grainWhenUnset"); ok {
		if opts.GrainWhenUnset, err = autochrome.ParseGrainPolicy(p); err != nil {
			return opts, err
		}
	}
	if seed, err := strconv.ParseUint(c.PostForm("seed"), 10, 32); err == nil {
		opts.Seed = uint32(seed)
	}
	return opts, nil
}

// Parses a percentage form value. Returns nil for values which are missing, unparseable, zero or NaN
func formPercent(s string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v == 0 || math.IsNaN(v) {
		return nil
	}
	return autochrome.Percent(v)
}

// Reduces an uploaded file name to its base name, for both slash conventions
func sanitizeFileName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == ".." {
		return "upload"
	}
	return base
}

// Returns the name for a processed image. Appends .png to names without a writable suffix
func processedFileName(millis int64, base string) string {
	name := fmt.Sprintf("processed-%d-%s", millis, base)
	if pixbuf.FormatFromFileName(name) == "" {
		name += ".png"
	}
	return name
}

type postProcessArgs struct {
	FileName string             `json:"fileName"` // input, relative to the upload directory
	Options  autochrome.Options `json:"options"`
	Out      string             `json:"out"` // output, relative to the upload directory
}

func printArgs(logWriter io.Writer, prefix, suffix string, args interface{}) error {
	m, err := json.MarshalIndent(args, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "%s%s%s", prefix, string(m), suffix)
	return nil
}

// Processes a file from the upload directory, streaming the operator log as plain text
func (s *Server) postProcess(c *gin.Context) {
	logWriter := c.Writer
	var args postProcessArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !ops.IsPathAllowed(args.FileName) || !ops.IsPathAllowed(args.Out) || args.FileName == "" || args.Out == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fileName and out must be relative paths within the upload directory"})
		return
	}
	if args.Options.GrainWhenUnset == "" {
		args.Options.GrainWhenUnset = s.cfg.GrainWhenUnset
	}

	header := logWriter.Header()
	header.Set("Content-Type", "text/plain")
	logWriter.WriteHeader(http.StatusOK)

	if err := printArgs(logWriter, "Arguments:\n", "\n", args); err != nil {
		fmt.Fprintf(logWriter, "Error printing arguments: %s\n", err.Error())
		return
	}

	ctx := s.newContext(logWriter)
	seq := ops.NewOpSequence(
		ops.NewOpLoad(0, filepath.Join(s.cfg.UploadDir, args.FileName)),
		autochrome.NewOpProcess(args.Options),
		ops.NewOpSave(filepath.Join(s.cfg.UploadDir, args.Out)),
	)
	promises, err := seq.MakePromises(nil, ctx)
	if err == nil {
		_, err = ops.MaterializeAll(promises, 1, true)
	}
	if err != nil {
		c.Error(err)
		fmt.Fprintf(logWriter, "error: %s\n", err.Error())
	} else {
		fmt.Fprintf(logWriter, "processed: /uploads/%s\n", filepath.ToSlash(args.Out))
	}
	logWriter.Flush()
}

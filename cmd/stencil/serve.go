package main

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/benjaminschreck/go-stencil-odf/pkg/stencil"
)

const (
	requestIDHeader  = "X-Request-Id"
	imageFieldPrefix = "image."
	maxUploadMemory  = 32 << 20
)

// newRouter wires the HTTP API around an engine.
//
//	POST /render    multipart: template file, data (JSON field or json/yaml/toml file),
//	                image.<name> files; returns the rendered document
//	POST /validate  multipart: template file; returns the validation result
//	POST /refs      multipart: template file; returns the references
//	GET  /healthz
func newRouter(engine *stencil.Engine) *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = maxUploadMemory
	r.Use(requestIDMiddleware())
	r.Use(requestLogger())
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.POST("/render", renderHandler(engine))
	r.POST("/validate", validateHandler)
	r.POST("/refs", refsHandler)
	return r
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			if u, err := uuid.NewV4(); err == nil {
				id = u.String()
			}
		}
		c.Header(requestIDHeader, id)
		c.Set(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		ev := stencil.GetLogger().Info()
		if len(c.Errors) > 0 {
			ev = stencil.GetLogger().Warn().Str("error", c.Errors.String())
		}
		ev.Str("request_id", c.GetString(requestIDHeader)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

func abortWithError(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	body := gin.H{"error": err.Error()}
	var te *stencil.TemplateError
	if errors.As(err, &te) {
		body["kind"] = te.Kind.String()
		if te.Part != "" {
			body["part"] = te.Part
		}
	}
	c.AbortWithStatusJSON(status, body)
}

// statusFor maps render failures to HTTP statuses.
func statusFor(err error) int {
	switch {
	case stencil.IsTemplateError(err):
		return http.StatusUnprocessableEntity
	case stencil.IsDocumentError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func templateUpload(c *gin.Context) ([]byte, string, error) {
	fh, err := c.FormFile("template")
	if err != nil {
		return nil, "", fmt.Errorf("template file is required: %w", err)
	}
	raw, err := readFormFile(fh)
	if err != nil {
		return nil, "", fmt.Errorf("read template: %w", err)
	}
	return raw, filepath.Base(fh.Filename), nil
}

// requestData reads the data form field as JSON, or the data file in the
// format its extension names.
func requestData(c *gin.Context) (stencil.TemplateData, error) {
	if fh, err := c.FormFile("data"); err == nil {
		format, err := formatForPath(fh.Filename)
		if err != nil {
			return nil, err
		}
		raw, err := readFormFile(fh)
		if err != nil {
			return nil, fmt.Errorf("read data: %w", err)
		}
		return decodeData(raw, format)
	}
	return decodeData([]byte(c.PostForm("data")), formatJSON)
}

// requestOptions reads optional render flags from form fields.
func requestOptions(c *gin.Context) []stencil.Option {
	var opts []stencil.Option
	if v, ok := c.GetPostForm("ignore_undefined"); ok {
		opts = append(opts, stencil.WithIgnoreUndefined(cast.ToBool(v)))
	}
	if v, ok := c.GetPostForm("escape_false"); ok {
		opts = append(opts, stencil.WithEscapeFalse(cast.ToBool(v)))
	}
	return opts
}

func renderHandler(engine *stencil.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, name, err := templateUpload(c)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, err)
			return
		}
		data, err := requestData(c)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, err)
			return
		}

		tmpl, err := engine.Load(bytes.NewReader(raw), requestOptions(c)...)
		if err != nil {
			abortWithError(c, statusFor(err), err)
			return
		}
		defer tmpl.Close()

		if form, err := c.MultipartForm(); err == nil {
			for field, files := range form.File {
				imgName, ok := strings.CutPrefix(field, imageFieldPrefix)
				if !ok || imgName == "" || len(files) == 0 {
					continue
				}
				img, err := readFormFile(files[0])
				if err != nil {
					abortWithError(c, http.StatusBadRequest, fmt.Errorf("read image %s: %w", imgName, err))
					return
				}
				tmpl.SetImage(imgName, img)
			}
		}

		out, err := tmpl.RenderBytes(data)
		if err != nil {
			abortWithError(c, statusFor(err), err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		c.Data(http.StatusOK, packageMediaType(out), out)
	}
}

func validateHandler(c *gin.Context) {
	raw, _, err := templateUpload(c)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}
	result, err := stencil.ValidateTemplate(stencil.ValidateTemplateInput{
		Template:           raw,
		TemplateRevisionID: c.PostForm("revision"),
		MaxIssues:          cast.ToInt(c.PostForm("max_issues")),
	})
	if err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func refsHandler(c *gin.Context) {
	raw, _, err := templateUpload(c)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}
	result, err := stencil.ExtractReferences(stencil.ExtractReferencesInput{
		Template:           raw,
		TemplateRevisionID: c.PostForm("revision"),
	})
	if err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// packageMediaType returns the mimetype entry of an ODF package.
func packageMediaType(doc []byte) string {
	const fallback = "application/octet-stream"
	zr, err := zip.NewReader(bytes.NewReader(doc), int64(len(doc)))
	if err != nil || len(zr.File) == 0 || zr.File[0].Name != "mimetype" {
		return fallback
	}
	rc, err := zr.File[0].Open()
	if err != nil {
		return fallback
	}
	defer rc.Close()
	mt, err := io.ReadAll(io.LimitReader(rc, 256))
	if err != nil || len(mt) == 0 {
		return fallback
	}
	return strings.TrimSpace(string(mt))
}

func newServeCmd(g *globalOptions) *cobra.Command {
	var (
		addr            string
		shutdownTimeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the render API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !stencil.IsDebugMode() {
				gin.SetMode(gin.ReleaseMode)
			}
			engine := g.engine()
			defer engine.Close()

			srv := &http.Server{
				Addr:              addr,
				Handler:           newRouter(engine),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				stencil.GetLogger().Info().Str("addr", addr).Msg("listening")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-cmd.Context().Done():
			}

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 10*time.Second, "graceful shutdown timeout")
	return cmd
}

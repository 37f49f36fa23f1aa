package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meaningapp/meaning/internal/api"
	"github.com/meaningapp/meaning/internal/extract"
	"github.com/meaningapp/meaning/internal/svcctx"
)

const (
	// ErrMsgNotPDF is returned when a path does not name a .pdf file.
	ErrMsgNotPDF = "Only .pdf files are supported."

	// ErrMsgNoInput is returned when neither a file nor a path was given.
	ErrMsgNoInput = `Provide a PDF via multipart field "file" or JSON body { "path": "path/to/file.pdf" }.`

	maxJSONBody        = 2 << 20 // 2 MiB
	defaultMaxUploadMB = 50
)

// ParseRequest is the JSON body of POST /parse.
type ParseRequest struct {
	Path string `json:"path"`
}

// ParseResponse is the extracted text of a document.
type ParseResponse struct {
	Pages *int   `json:"pages"`
	Text  string `json:"text"`
}

// ParseEndpoint handles POST /parse.
type ParseEndpoint struct {
	// DocumentRoot overrides extract.root for relative paths.
	DocumentRoot string
}

var _ api.Endpoint = (*ParseEndpoint)(nil)

func (e *ParseEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/parse", e.handler
}

func (e *ParseEndpoint) RequiresAuth() bool { return false }

// handler godoc
//
//	@Summary		Extract text from a PDF
//	@Description	Accepts a multipart "file" upload or a JSON body naming a server-local path.
//	@Description	Pages in the returned text are separated by "-- i of n --" markers.
//	@Tags			extract
//	@Accept			json,mpfd
//	@Produce		json
//	@Param			request	body		ParseRequest	false	"Server-local PDF path"
//	@Param			file	formData	file			false	"PDF to extract"
//	@Param			limit	query		int				false	"Truncate text to this many characters"
//	@Success		200		{object}	ParseResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		413		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/parse [post]
func (e *ParseEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	pool := svcctx.ExtractorFrom(r.Context())
	if pool == nil {
		writeError(w, http.StatusServiceUnavailable, "extractor not initialized")
		return
	}
	logger := svcctx.LoggerFrom(r.Context())

	data, status, msg := e.readInput(w, r)
	if status != 0 {
		writeError(w, status, msg)
		return
	}

	res, err := pool.Extract(r.Context(), data)
	if err != nil {
		if errors.Is(err, extract.ErrQueueFull) || errors.Is(err, extract.ErrPoolStopped) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		logger.Warn("extraction failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	text := res.Text
	if limit, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("limit"))); err == nil && limit > 0 {
		text = extract.Truncate(text, limit)
	}

	writeJSON(w, http.StatusOK, ParseResponse{Pages: res.Pages, Text: text})
}

// readInput returns the PDF bytes, or a status and message to fail with.
func (e *ParseEndpoint) readInput(w http.ResponseWriter, r *http.Request) ([]byte, int, string) {
	path := ""

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, e.maxUpload(r))
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return nil, statusForBodyError(err), fmt.Sprintf("failed to parse form: %v", err)
		}
		defer r.MultipartForm.RemoveAll()

		if file, _, err := r.FormFile("file"); err == nil {
			defer file.Close()
			data, err := io.ReadAll(file)
			if err != nil {
				return nil, http.StatusInternalServerError, fmt.Sprintf("failed to read upload: %v", err)
			}
			return data, 0, ""
		}
		path = r.FormValue("path")
	} else {
		var req ParseRequest
		err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, http.StatusRequestEntityTooLarge, "request body too large"
		}
		path = req.Path
	}

	if path == "" {
		return nil, http.StatusBadRequest, ErrMsgNoInput
	}

	resolved := e.resolve(r, path)
	if !strings.HasSuffix(strings.ToLower(resolved), ".pdf") {
		return nil, http.StatusBadRequest, ErrMsgNotPDF
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, http.StatusInternalServerError, err.Error()
	}
	return data, 0, ""
}

// resolve makes path absolute against the document root.
func (e *ParseEndpoint) resolve(r *http.Request, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	root := e.DocumentRoot
	if root == "" {
		if cm := svcctx.ConfigFrom(r.Context()); cm != nil {
			root = cm.Get().Extract.Root
		}
	}
	if root == "" {
		if h := svcctx.HomeFrom(r.Context()); h != nil {
			root = h.DocumentsDir()
		}
	}
	if root == "" {
		if wd, err := os.Getwd(); err == nil {
			root = wd
		}
	}
	return filepath.Join(root, path)
}

func (e *ParseEndpoint) maxUpload(r *http.Request) int64 {
	mb := defaultMaxUploadMB
	if cm := svcctx.ConfigFrom(r.Context()); cm != nil && cm.Get().Extract.MaxUploadMB > 0 {
		mb = cm.Get().Extract.MaxUploadMB
	}
	return int64(mb) << 20
}

func statusForBodyError(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func (e *ParseEndpoint) Command(getServerURL func() string) *cobra.Command {
	var file string
	var limit int
	var textOnly bool
	cmd := &cobra.Command{
		Use:   "parse [server-path]",
		Short: "Extract text from a PDF",
		Long: `Extract text from a PDF.

Pass --file to upload a local PDF, or give a path the server can read
(relative paths resolve against the server's extract.root).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())

			path := "/parse"
			if limit > 0 {
				path += "?limit=" + strconv.Itoa(limit)
			}

			var resp ParseResponse
			switch {
			case file != "":
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", file, err)
				}
				if err := client.Upload(ctx, path, "file", filepath.Base(file), data, nil, &resp); err != nil {
					return err
				}
			case len(args) == 1:
				if err := client.Post(ctx, path, ParseRequest{Path: args[0]}, &resp); err != nil {
					return err
				}
			default:
				return fmt.Errorf("provide a server path or --file")
			}

			if textOnly {
				fmt.Println(resp.Text)
				return nil
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Local PDF to upload")
	cmd.Flags().IntVar(&limit, "limit", 0, "Truncate text to this many characters")
	cmd.Flags().BoolVar(&textOnly, "text", false, "Print only the extracted text")
	return cmd
}

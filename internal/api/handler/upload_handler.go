package handler

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/geodonis/geodonis-web/internal/core/domain"
	"github.com/geodonis/geodonis-web/internal/core/ports"
)

// UploadHandler serves file uploads and downloads.
type UploadHandler struct {
	uploadService ports.UploadService
}

func NewUploadHandler(uploadService ports.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

type uploadResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	FileName string `json:"file_name"`
	FileType string `json:"file_type"`
}

type fileListResponse struct {
	Success bool              `json:"success"`
	Files   []domain.FileInfo `json:"files"`
}

// Upload stores a multipart file.
//
// @Summary      Upload a file
// @Tags         uploads
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file_type  formData  string  true  "File type"  Enums(venue_gps_trace)
// @Param        file_name  formData  string  true  "Stored file name"
// @Param        update     formData  bool    true  "Overwrite an existing file"
// @Param        file       formData  file    true  "File content"
// @Success      200        {object}  uploadResponse
// @Failure      400        {object}  messageResponse
// @Failure      401        {object}  messageResponse
// @Router       /api/uploads/upload-file [post]
func (h *UploadHandler) Upload(c echo.Context) error {
	in, err := parseUploadForm(c)
	if err != nil {
		return err
	}

	fh, err := c.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		return domain.NewClientError("No file part in the request")
	default:
		in.Filename = fh.Filename
		f, err := fh.Open()
		if err != nil {
			return fmt.Errorf("open upload: %w", err)
		}
		defer f.Close()
		in.Content = f
	}

	res, err := h.uploadService.Upload(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, uploadResponse{
		Success:  true,
		Message:  "File uploaded successfully",
		FileName: res.FileName,
		FileType: res.FileType,
	})
}

// List returns the stored files of a type.
//
// @Summary      List uploads
// @Tags         uploads
// @Produce      json
// @Security     BearerAuth
// @Param        file_type  path      string  true   "File type"
// @Param        recursive  query     bool    false  "Include nested folders"
// @Success      200        {object}  fileListResponse
// @Failure      400        {object}  messageResponse
// @Router       /api/uploads/{file_type} [get]
func (h *UploadHandler) List(c echo.Context) error {
	recursive, _ := strconv.ParseBool(c.QueryParam("recursive"))
	files, err := h.uploadService.List(c.Request().Context(), c.Param("file_type"), recursive)
	if err != nil {
		return err
	}
	if files == nil {
		files = []domain.FileInfo{}
	}
	return c.JSON(http.StatusOK, fileListResponse{Success: true, Files: files})
}

// Delete removes a stored file.
//
// @Summary      Delete upload
// @Tags         uploads
// @Produce      json
// @Security     BearerAuth
// @Param        file_type  path      string  true  "File type"
// @Param        file_name  path      string  true  "File name"
// @Success      200        {object}  messageResponse
// @Failure      403        {object}  messageResponse
// @Failure      404        {object}  messageResponse
// @Router       /api/uploads/{file_type}/{file_name} [delete]
func (h *UploadHandler) Delete(c echo.Context) error {
	if err := h.uploadService.Delete(c.Request().Context(), c.Param("file_type"), c.Param("file_name")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Success: true, Message: "File deleted"})
}

// Download streams a stored file back to the caller.
//
// @Summary      Download upload
// @Tags         uploads
// @Produce      octet-stream
// @Security     BearerAuth
// @Param        file_type  path  string  true  "File type"
// @Param        file_name  path  string  true  "File name"
// @Success      200
// @Failure      404  {object}  messageResponse
// @Router       /file/uploads/{file_type}/{file_name} [get]
func (h *UploadHandler) Download(c echo.Context) error {
	name := c.Param("file_name")
	data, err := h.uploadService.Download(c.Request().Context(), c.Param("file_type"), name)
	if err != nil {
		return err
	}

	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", path.Base(name)))
	return c.Blob(http.StatusOK, contentType, data)
}

// parseUploadForm reads the text fields. Missing or malformed fields are
// reported together in one message.
func parseUploadForm(c echo.Context) (ports.UploadInput, error) {
	var (
		in       ports.UploadInput
		problems []string
	)
	form, err := c.MultipartForm()
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return in, domain.NewClientError("Invalid input: %s", err.Error())
	}

	field := func(name string) (string, bool) {
		if form != nil {
			if v, ok := form.Value[name]; ok && len(v) > 0 {
				return v[0], true
			}
		}
		v := c.FormValue(name)
		return v, v != ""
	}

	if v, ok := field("file_type"); ok {
		in.FileType = v
	} else {
		problems = append(problems, "'file_type': ['Missing data for required field.']")
	}
	if v, ok := field("file_name"); ok {
		in.FileName = v
	} else {
		problems = append(problems, "'file_name': ['Missing data for required field.']")
	}
	if v, ok := field("update"); !ok {
		problems = append(problems, "'update': ['Missing data for required field.']")
	} else if b, ok := parseFormBool(v); ok {
		in.Update = b
	} else {
		problems = append(problems, "'update': ['Not a valid boolean.']")
	}

	if len(problems) > 0 {
		return in, domain.NewClientError("Invalid input: {%s}", strings.Join(problems, ", "))
	}
	return in, nil
}

func parseFormBool(v string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "t", "1", "yes", "y", "on":
		return true, true
	case "false", "f", "0", "no", "n", "off":
		return false, true
	}
	return false, false
}

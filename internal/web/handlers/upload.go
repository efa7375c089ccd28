package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/kozaktomas/signet/internal/constants"
)

var errNoFiles = errors.New("no files provided")

// upload is one signature image read from a multipart form.
type upload struct {
	Filename string
	Data     []byte
}

// readUploadedFiles reads every multipart file in the file[] field. Files
// with an extension outside the image allow-list are rejected.
func readUploadedFiles(files []*multipart.FileHeader) ([]upload, error) {
	if len(files) == 0 {
		return nil, errNoFiles
	}
	uploads := make([]upload, 0, len(files))
	for _, fileHeader := range files {
		safeName := filepath.Base(fileHeader.Filename)
		ext := strings.ToLower(filepath.Ext(safeName))
		if !constants.AllowedImageExtensions[ext] {
			return nil, fmt.Errorf("unsupported file type: %s", safeName)
		}

		data, err := func() ([]byte, error) {
			file, err := fileHeader.Open()
			if err != nil {
				return nil, fmt.Errorf("failed to open file: %s", safeName)
			}
			defer file.Close()
			data, err := io.ReadAll(file)
			if err != nil {
				return nil, fmt.Errorf("failed to read file: %s", safeName)
			}
			return data, nil
		}()
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, upload{Filename: safeName, Data: data})
	}
	return uploads, nil
}

// parseUploads parses the multipart request and returns its signature images.
// On failure it writes a 400 response and returns false.
func parseUploads(w http.ResponseWriter, r *http.Request) ([]upload, bool) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return nil, false
	}
	uploads, err := readUploadedFiles(r.MultipartForm.File[constants.UploadFormField])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return uploads, true
}

// parseSingleUpload is parseUploads for endpoints taking exactly one query image.
func parseSingleUpload(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	uploads, ok := parseUploads(w, r)
	if !ok {
		return nil, false
	}
	if len(uploads) != 1 {
		respondError(w, http.StatusBadRequest, "exactly one image is required")
		return nil, false
	}
	return uploads[0].Data, true
}

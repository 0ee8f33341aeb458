// Package http provides HTTP server and handler implementations.
//
// This file implements parsing and validation of the plan upload form and
// of the history query parameters.

package http

import (
	"errors"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"risparmi/internal/storage"
)

// Form field names of POST /calculate_expenses.
const (
	FieldCSVFile     = "csv_file"
	FieldSavingsGoal = "savings_goal"
	FieldExcluded    = "excluded_categories"
)

// Client-facing validation messages.
const (
	MsgFileNotProvided = "CSV file not provided"
	MsgInvalidInput    = "Invalid input"
)

// multipartMemory is how much of an upload is kept in memory before
// spilling to a temp file.
const multipartMemory = 1 << 20

// PlanForm is a validated upload request.
type PlanForm struct {
	File        multipart.File
	Filename    string
	SavingsGoal int
	Excluded    string

	form *multipart.Form
}

// Close releases the uploaded file and any temp files behind it.
func (f *PlanForm) Close() error {
	var errs []error
	if f.File != nil {
		errs = append(errs, f.File.Close())
	}
	if f.form != nil {
		errs = append(errs, f.form.RemoveAll())
	}
	return errors.Join(errs...)
}

// ParsePlanForm reads the multipart upload, capped at maxBytes. On failure it
// returns the response to send instead: a missing file is reported before
// a bad goal or category.
func ParsePlanForm(w http.ResponseWriter, r *http.Request, maxBytes int64) (*PlanForm, *ResponseBuilder) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(min(maxBytes, multipartMemory)); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, TooLargeError(maxBytes)
		}
		return nil, BadRequestError(MsgFileNotProvided)
	}

	file, header, err := r.FormFile(FieldCSVFile)
	if err != nil {
		r.MultipartForm.RemoveAll()
		return nil, BadRequestError(MsgFileNotProvided)
	}

	form := &PlanForm{File: file, Filename: header.Filename, form: r.MultipartForm}

	goal, ok := ParseSavingsGoal(r.FormValue(FieldSavingsGoal))
	excluded := sanitizeInput(r.FormValue(FieldExcluded))
	if !ok || excluded == "" {
		form.Close()
		return nil, BadRequestError(MsgInvalidInput)
	}
	form.SavingsGoal = goal
	form.Excluded = excluded
	return form, nil
}

// ParseSavingsGoal accepts an integer percentage between 0 and 100.
func ParseSavingsGoal(s string) (int, bool) {
	goal, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || goal < 0 || goal > 100 {
		return 0, false
	}
	return goal, true
}

// ParseLimit reads the "limit" query parameter for history listings,
// defaulting and clamping to the storage bounds.
func ParseLimit(query url.Values) int {
	limit := storage.DefaultListLimit
	if v := strings.TrimSpace(query.Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	return min(limit, storage.MaxListLimit)
}

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavel-fokin/files-vault/internal/files"
)

type fileReference struct {
	Key string `json:"key" validate:"required"`
	ID  string `json:"id" validate:"required,objectid"`
}

func (f fileReference) toRequest() files.RetrieveRequest {
	return files.RetrieveRequest{Key: f.Key, ID: f.ID}
}

type retrieveFilesRequest struct {
	Files []fileReference `json:"files" validate:"required,min=1,dive"`
}

type downloadFileRequest struct {
	File *fileReference `json:"file" validate:"required"`
}

// requestValidator checks decoded bodies and reports failures with JSON field names.
type requestValidator struct {
	validate *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("objectid", validateObjectID); err != nil {
		panic(fmt.Sprintf("failed to register validation rule 'objectid': %v", err))
	}
	return &requestValidator{validate: v}
}

// validateObjectID accepts exactly 24 hex digits in either case, no prefix.
func validateObjectID(fl validator.FieldLevel) bool {
	_, err := primitive.ObjectIDFromHex(fl.Field().String())
	return err == nil
}

func (v *requestValidator) Validate(req any) error {
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err
	}

	messages := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		messages = append(messages, fmt.Sprintf("field '%s': %s", fieldPath(fe), fieldMessage(fe)))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(messages, "; "))
}

// fieldPath drops the struct name from the namespace, "retrieveFilesRequest.files[0].id" becomes "files[0].id".
func fieldPath(fe validator.FieldError) string {
	if _, path, found := strings.Cut(fe.Namespace(), "."); found {
		return path
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
	case "objectid":
		return "must be a 24-character hexadecimal id"
	default:
		return fmt.Sprintf("failed on the '%s' rule", fe.Tag())
	}
}

// decodeJSON reads a JSON body into dst. An oversized body keeps its
// *http.MaxBytesError so it maps to 413.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return err
		}
		return fmt.Errorf("%w: malformed JSON body: %v", ErrValidation, err)
	}
	return nil
}

func decodeRetrieveFiles(r *http.Request, v *requestValidator) ([]files.RetrieveRequest, error) {
	var body retrieveFilesRequest
	if err := decodeJSON(r, &body); err != nil {
		return nil, err
	}
	for i := range body.Files {
		body.Files[i].Key = strings.TrimSpace(body.Files[i].Key)
	}
	if err := v.Validate(&body); err != nil {
		return nil, err
	}

	requests := make([]files.RetrieveRequest, len(body.Files))
	for i, f := range body.Files {
		requests[i] = f.toRequest()
	}
	return requests, nil
}

func decodeDownloadFile(r *http.Request, v *requestValidator) (files.RetrieveRequest, error) {
	var body downloadFileRequest
	if err := decodeJSON(r, &body); err != nil {
		return files.RetrieveRequest{}, err
	}
	if body.File != nil {
		body.File.Key = strings.TrimSpace(body.File.Key)
	}
	if err := v.Validate(&body); err != nil {
		return files.RetrieveRequest{}, err
	}
	return body.File.toRequest(), nil
}

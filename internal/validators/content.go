package validators

import (
	"context"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/MKhiriev/go-content-sync/models"
)

const (
	FieldContentID   = "content_id"
	FieldKind        = "kind"
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldBody        = "body"
	FieldEditFields  = "edit_fields"
	FieldVisibility  = "visibility"
	FieldStatuses    = "statuses"
	FieldLimit       = "limit"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
	MaxBodySize          = 1 << 20
	MaxPageSize          = 500
)

type ContentValidator struct {
}

func NewContentValidator() Validator {
	return &ContentValidator{}
}

func (v *ContentValidator) Validate(ctx context.Context, obj any, fields ...string) error {
	switch value := obj.(type) {
	case models.Draft:
		return v.validateDraft(ctx, value, fields...)
	case *models.Draft:
		return v.validateDraft(ctx, *value, fields...)

	case models.ContentEdit:
		return v.validateEdit(ctx, value, fields...)
	case *models.ContentEdit:
		return v.validateEdit(ctx, *value, fields...)

	case models.Content:
		return v.validateContent(ctx, value, fields...)
	case *models.Content:
		return v.validateContent(ctx, *value, fields...)

	case models.ContentFilter:
		return v.validateFilter(ctx, value, fields...)
	case *models.ContentFilter:
		return v.validateFilter(ctx, *value, fields...)

	default:
		return ErrUnsupportedType
	}
}

func (v *ContentValidator) validateDraft(_ context.Context, draft models.Draft, fields ...string) error {
	if len(fields) == 0 {
		fields = []string{FieldKind, FieldTitle, FieldDescription, FieldBody}
	}

	for _, f := range fields {
		switch f {
		case FieldKind:
			if !draft.Kind.Valid() {
				return ErrInvalidKind
			}
		case FieldTitle:
			if err := validateTitle(draft.Title); err != nil {
				return err
			}
		case FieldDescription:
			if err := validateDescription(draft.Description); err != nil {
				return err
			}
		case FieldBody:
			if err := validateBody(draft.Body); err != nil {
				return err
			}
		default:
			return ErrUnknownField
		}
	}

	return nil
}

func (v *ContentValidator) validateEdit(_ context.Context, edit models.ContentEdit, fields ...string) error {
	if len(fields) == 0 {
		fields = []string{FieldEditFields, FieldTitle, FieldDescription, FieldBody}
	}

	for _, f := range fields {
		switch f {
		case FieldEditFields:
			if edit.Title == nil && edit.Description == nil && !edit.ClearDescription && edit.Body == nil {
				return ErrNoFieldsToUpdate
			}
		case FieldTitle:
			if edit.Title != nil {
				if err := validateTitle(*edit.Title); err != nil {
					return err
				}
			}
		case FieldDescription:
			if edit.ClearDescription && edit.Description != nil {
				return ErrConflictingEdit
			}
			if err := validateDescription(edit.Description); err != nil {
				return err
			}
		case FieldBody:
			if edit.Body != nil {
				if err := validateBody(*edit.Body); err != nil {
					return err
				}
			}
		default:
			return ErrUnknownField
		}
	}

	return nil
}

// validateContent checks that a stored record and its body can be sent to
// the remote service.
func (v *ContentValidator) validateContent(_ context.Context, content models.Content, fields ...string) error {
	if len(fields) == 0 {
		fields = []string{FieldContentID, FieldKind, FieldTitle, FieldDescription, FieldBody}
	}

	for _, f := range fields {
		switch f {
		case FieldContentID:
			if content.Record.ID == "" {
				return ErrInvalidContentID
			}
		case FieldKind:
			if !content.Record.Kind.Valid() {
				return ErrInvalidKind
			}
		case FieldTitle:
			if err := validateTitle(content.Record.Title); err != nil {
				return err
			}
		case FieldDescription:
			if err := validateDescription(content.Record.Description); err != nil {
				return err
			}
		case FieldBody:
			if err := validateBody(content.Body); err != nil {
				return err
			}
		default:
			return ErrUnknownField
		}
	}

	return nil
}

func (v *ContentValidator) validateFilter(_ context.Context, filter models.ContentFilter, fields ...string) error {
	if len(fields) == 0 {
		fields = []string{FieldKind, FieldVisibility, FieldStatuses, FieldLimit}
	}

	for _, f := range fields {
		switch f {
		case FieldKind:
			for _, k := range filter.Kinds {
				if !k.Valid() {
					return fmt.Errorf("%w: %q", ErrInvalidKind, k)
				}
			}
		case FieldVisibility:
			switch filter.Visibility {
			case "", models.VisibilityPrivate, models.VisibilityPublic:
			default:
				return ErrInvalidVisibility
			}
		case FieldStatuses:
			for _, s := range filter.Statuses {
				if !isValidSyncStatus(s) {
					return fmt.Errorf("%w: %q", ErrInvalidSyncStatus, s)
				}
			}
		case FieldLimit:
			if filter.Limit > MaxPageSize {
				return ErrInvalidFilterWindow
			}
		default:
			return ErrUnknownField
		}
	}

	return nil
}

func validateTitle(title string) error {
	if title == "" {
		return ErrEmptyTitle
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return ErrTitleTooLong
	}
	return nil
}

func validateDescription(description *string) error {
	if description != nil && utf8.RuneCountInString(*description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

func validateBody(body models.Body) error {
	switch body.Format {
	case models.BodyFormatMarkdown, models.BodyFormatPlain:
	case models.BodyFormatJSON:
		if body.Content != "" && !json.Valid([]byte(body.Content)) {
			return ErrMalformedJSONBody
		}
	default:
		return ErrInvalidBodyFormat
	}

	if body.Content == "" {
		return ErrEmptyBody
	}
	if len(body.Content) > MaxBodySize {
		return ErrBodyTooLarge
	}
	return nil
}

func isValidSyncStatus(s models.SyncStatus) bool {
	switch s {
	case models.SyncStatusSynced,
		models.SyncStatusPendingPublish,
		models.SyncStatusPendingUnpublish,
		models.SyncStatusPendingUpdate,
		models.SyncStatusFailed:
		return true
	}
	return false
}

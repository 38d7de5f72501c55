package activity

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	v1 "github.com/brightcart-lab/recsys/internal/api/v1"
	httperr "github.com/brightcart-lab/recsys/internal/core/errors"
	"github.com/brightcart-lab/recsys/internal/core/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgReadBodyFailed = "Failed to read request body"
	msgInvalidJSON    = "Invalid JSON body"
	msgPersistFailed  = "Failed to persist activity event"
	msgDuplicateEvent = "Activity event already exists"
	msgUnknownProduct = "Unknown product"
	msgCounterFailed  = "Failed to update product counters"
)

// intakeError carries the structured HTTP error shape from a helper back
// to the orchestrator. Helpers return this instead of writing to
// gin.Context directly, keeping them decoupled from HTTP.
type intakeError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

func (e *intakeError) Error() string {
	return e.message
}

// IntakeHandler handles HTTP POST requests for activity intake.
func (s *Service) IntakeHandler(c *gin.Context) {
	evt, payloadSize, err := s.parseEvent(c)
	if err != nil {
		writeError(c, err)
		return
	}

	if verr := evt.Validate(); verr != nil {
		slog.Warn("Envelope validation failed", "error", verr, "event_id", evt.ID)
		writeError(c, &intakeError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpValidationError,
			message:    verr.Error(),
		})
		return
	}

	slog.Info("Received activity event",
		"event_id", evt.ID,
		"product_id", evt.ProductID,
		"actor_id", evt.ActorID,
		"kind", evt.Kind,
		"payload_size", payloadSize)

	if err := s.persistEvent(c.Request.Context(), evt); err != nil {
		writeError(c, err)
		return
	}

	// Counters bump immediately; the cached popularity score catches up
	// on the next recompute cycle.
	if err := s.bumpCounter(c.Request.Context(), evt); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "event_id": evt.ID})
}

// parseEvent reads the raw request body and binds it into an ActivityEvent.
// Returns the parsed event and the raw payload size (used for structured
// logging upstream).
func (s *Service) parseEvent(c *gin.Context) (*v1.ActivityEvent, int, *intakeError) {
	// Enforce maximum body size to prevent OOM attacks
	maxBytes := int64(s.maxBodySizeBytes)
	limitedBody := io.LimitReader(c.Request.Body, maxBytes+1) // +1 to detect oversized requests

	bodyBytes, err := io.ReadAll(limitedBody)
	if err != nil {
		slog.Error("Failed to read request body", "error", err)
		return nil, 0, &intakeError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgReadBodyFailed,
		}
	}

	if int64(len(bodyBytes)) > maxBytes {
		slog.Warn("Request body exceeds maximum size", "size", len(bodyBytes), "max", maxBytes)
		return nil, len(bodyBytes), &intakeError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpValidationError,
			message:    "Request body exceeds maximum allowed size",
			details: map[string]interface{}{
				"max_size_mb": maxBytes / (1024 * 1024),
			},
		}
	}

	c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

	var evt v1.ActivityEvent
	if err := c.ShouldBindJSON(&evt); err != nil {
		slog.Warn("Invalid JSON body received", "error", err, "payload_size", len(bodyBytes))
		return nil, len(bodyBytes), &intakeError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpValidationError,
			message:    msgInvalidJSON,
		}
	}

	// The id doubles as the idempotency key; assign one when the client
	// did not supply it.
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	evt.RecordedAt = time.Now().UTC()
	return &evt, len(bodyBytes), nil
}

// persistEvent saves the event to the backing store.
func (s *Service) persistEvent(ctx context.Context, evt *v1.ActivityEvent) *intakeError {
	if err := s.events.SaveEvent(ctx, evt); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			slog.Info("Duplicate activity event rejected", "event_id", evt.ID, "actor_id", evt.ActorID)
			return &intakeError{
				statusCode: http.StatusConflict,
				errorType:  httperr.HttpDuplicateEventError,
				message:    msgDuplicateEvent,
			}
		}

		slog.Error("Failed to persist activity event", "error", err, "event_id", evt.ID)
		return &intakeError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgPersistFailed,
		}
	}

	return nil
}

// bumpCounter increments the product counter matching the event kind.
func (s *Service) bumpCounter(ctx context.Context, evt *v1.ActivityEvent) *intakeError {
	if err := s.products.IncrementCounter(ctx, evt.ProductID, evt.Kind); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			slog.Warn("Activity event for unknown product", "event_id", evt.ID, "product_id", evt.ProductID)
			return &intakeError{
				statusCode: http.StatusNotFound,
				errorType:  httperr.HttpNotFoundError,
				message:    msgUnknownProduct,
				details: map[string]interface{}{
					"product_id": evt.ProductID,
				},
			}
		}

		slog.Error("Failed to update product counters", "error", err, "event_id", evt.ID, "product_id", evt.ProductID)
		return &intakeError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgCounterFailed,
		}
	}

	return nil
}

// writeError serializes an intakeError as the JSON HTTP response.
func writeError(c *gin.Context, err *intakeError) {
	c.JSON(err.statusCode, httperr.ErrorResponse{
		ErrorType: err.errorType,
		Message:   err.message,
		Details:   err.details,
	})
}

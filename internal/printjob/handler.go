package printjob

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/frahmantamala/photobooth-payment/internal"
	"github.com/frahmantamala/photobooth-payment/internal/transport"
)

// MaxRequestBody leaves room for a composited strip sent as a data URL.
const MaxRequestBody = 20 << 20

type PrintRequest struct {
	ImageData string `json:"imageData"`
	PrintID   string `json:"printId"`
}

type PrintResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	PrintID    string `json:"printId,omitempty"`
	FileName   string `json:"fileName"`
	Platform   string `json:"platform"`
	Fallback   bool   `json:"fallback"`
	Suggestion string `json:"suggestion,omitempty"`
	ImageSize  int    `json:"imageSize"`
}

type Handler struct {
	*transport.BaseHandler
	Dispatcher Dispatcher
	now        func() time.Time
}

func NewHandler(baseHandler *transport.BaseHandler, dispatcher Dispatcher) *Handler {
	if dispatcher == nil {
		dispatcher = BrowserFallback{}
	}
	return &Handler{
		BaseHandler: baseHandler,
		Dispatcher:  dispatcher,
		now:         time.Now,
	}
}

// Submit handles POST /api/print
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req PrintRequest
	if appErr := h.DecodeJSONLimit(w, r, &req, MaxRequestBody); appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	img, err := DecodeImage(req.ImageData)
	switch {
	case errors.Is(err, ErrNoImage):
		h.HandleError(w, apperrors.NewValidationFieldError("imageData", "No image data provided", apperrors.ErrCodeValidationFailed))
		return
	case err != nil:
		h.HandleError(w, apperrors.NewValidationFieldError("imageData", "imageData must be base64 or an image data URL", apperrors.ErrCodeInvalidImage))
		return
	}

	h.Logger.Info("Submit: print job received", "print_id", req.PrintID, "image_size", len(img))

	outcome, err := h.Dispatcher.Dispatch(r.Context(), Job{PrintID: req.PrintID, Image: img})
	if err != nil {
		h.HandleError(w, &apperrors.AppError{
			Type:       apperrors.ErrorTypeInternal,
			Code:       apperrors.ErrCodePrintFailed,
			Message:    "Failed to send print job",
			Details:    "Check the printer connection or use browser printing",
			StatusCode: http.StatusInternalServerError,
			Cause:      err,
		})
		return
	}

	h.WriteJSON(w, http.StatusOK, PrintResponse{
		Success:    true,
		Message:    outcome.Message,
		PrintID:    req.PrintID,
		FileName:   fmt.Sprintf("print_%d.png", h.now().UnixMilli()),
		Platform:   outcome.Platform,
		Fallback:   outcome.Fallback,
		Suggestion: outcome.Suggestion,
		ImageSize:  len(img),
	})
}

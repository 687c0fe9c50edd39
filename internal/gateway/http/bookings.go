package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/innerpeace-app/gateway/internal/gateway/auth"
	"github.com/innerpeace-app/gateway/internal/gateway/calendar"
	"github.com/innerpeace-app/gateway/pkg/httpx"
	"github.com/innerpeace-app/gateway/pkg/slogx"
)

// BookingsHandler bridges the app's session-booking flows onto the
// shared practice calendar.
type BookingsHandler struct {
	Calendar *calendar.Client
}

type bookingsListResponse struct {
	Bookings []calendar.Booking `json:"bookings"`
}

// HandleList returns upcoming bookings, soonest first.
func (h *BookingsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	maxResults := 50
	if raw := r.URL.Query().Get("maxResults"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			maxResults = min(max(n, 1), 250)
		}
	}

	bookings, err := h.Calendar.ListUpcoming(r.Context(), maxResults)
	if err != nil {
		log.Error("bookings list failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Calendar list failed")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, bookingsListResponse{Bookings: bookings})
}

type createBookingRequest struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Location string `json:"location"`
	WithMeet bool   `json:"withMeet"`
}

// HandleCreate books a session. The attendee is always the caller; the
// request body only carries the slot.
func (h *BookingsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Start == "" || req.End == "" {
		httpx.WriteError(w, http.StatusBadRequest, "start and end are required")
		return
	}

	var attendeeEmail string
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		attendeeEmail = id.Email
	}

	booking, err := h.Calendar.CreateBooking(r.Context(), calendar.BookingRequest{
		Start:         req.Start,
		End:           req.End,
		AttendeeEmail: attendeeEmail,
		Location:      req.Location,
		WithMeet:      req.WithMeet,
	})
	if err != nil {
		log.Error("booking create failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Calendar insert failed")
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, booking)
}

// HandleCancel removes a booking by event ID.
func (h *BookingsHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	eventID := r.PathValue("id")
	if eventID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "id required")
		return
	}

	if err := h.Calendar.CancelBooking(r.Context(), eventID); err != nil {
		if errors.Is(err, calendar.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "Not found")
			return
		}
		log.Error("booking cancel failed", "event_id", eventID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Calendar delete failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type availabilityResponse struct {
	Busy []calendar.BusyInterval `json:"busy"`
}

// HandleAvailability reports provider busy windows between start and end,
// passed through untouched so the client owns slot math.
func (h *BookingsHandler) HandleAvailability(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")
	if start == "" || end == "" {
		httpx.WriteError(w, http.StatusBadRequest, "start and end are required")
		return
	}

	busy, err := h.Calendar.FreeBusy(r.Context(), start, end)
	if err != nil {
		log.Error("availability query failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "FreeBusy query failed")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, availabilityResponse{Busy: busy})
}

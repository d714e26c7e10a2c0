package bill

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
)

// maxUploadSize bounds multipart parsing; 50MB covers high-resolution phone
// photos
const maxUploadSize = int64(50 << 20)

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeJSON writes a JSON response with CORS headers set
func writeJSON(w http.ResponseWriter, status int, v any) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusForError maps session errors to HTTP statuses. Validation failures
// keep their user-facing message; anything unexpected becomes a 500.
func statusForError(err error) int {
	var dup *DuplicateParticipantError
	var unassigned *UnassignedItemsError
	switch {
	case errors.Is(err, ErrItemNotFound),
		errors.Is(err, ErrParticipantNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNoBill),
		errors.Is(err, ErrNoParticipants),
		errors.Is(err, ErrNoItems),
		errors.Is(err, ErrAnalysisSuperseded),
		errors.As(err, &unassigned):
		return http.StatusConflict
	case errors.Is(err, ErrEmptyParticipantName),
		errors.Is(err, ErrEmptyItemName),
		errors.Is(err, ErrZeroItemSum),
		errors.Is(err, ErrUnsupportedFile),
		errors.As(err, &dup):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeSessionError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "error", err)
		writeError(w, status, "Internal server error")
		return
	}
	writeError(w, status, err.Error())
}

// handleSession returns the current step and in-progress bill
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	step, b := s.session.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"step": step,
		"bill": b,
	})
}

// handleUploadReceipt accepts a receipt upload, runs the analyzer and opens
// the edit step. Analysis failures still create an (empty) bill; the
// response carries a warning so the user knows to enter items by hand.
func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		if err.Error() == "http: request body too large" {
			errorMsg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		writeError(w, http.StatusBadRequest, errorMsg)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		errorMsg := "No file provided"
		if err.Error() == "http: no such file" {
			errorMsg = "No file was selected. Please choose a file to upload."
		}
		writeError(w, http.StatusBadRequest, errorMsg)
		return
	}
	defer f.Close()

	if header.Size > maxUploadSize {
		writeError(w, http.StatusBadRequest, "File is too large. Maximum size is 50MB. Please compress or resize your image.")
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, "Error reading file. Please try again.")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = contentTypeFromExtension(header.Filename)
	}

	b, err := s.session.StartBill(header.Filename, data, contentType, r.FormValue("description"))
	if err != nil && b == nil {
		uploadsTotal.WithLabelValues("rejected").Inc()
		writeSessionError(w, err)
		return
	}
	if err != nil {
		// Analyzer failed but the bill was created; surface the failure and
		// let the user proceed manually
		uploadsTotal.WithLabelValues("analysis_failed").Inc()
		writeJSON(w, http.StatusCreated, map[string]any{
			"bill":    b,
			"warning": "Could not read the receipt automatically. Add the items by hand.",
		})
		return
	}

	uploadsTotal.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusCreated, map[string]any{"bill": b})
}

// contentTypeFromExtension guesses a MIME type when the browser sent none
func contentTypeFromExtension(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

// handleCurrentBill returns the in-progress bill
func (s *Server) handleCurrentBill(w http.ResponseWriter, r *http.Request) {
	_, b := s.session.Current()
	if b == nil {
		writeError(w, http.StatusNotFound, ErrNoBill.Error())
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// handleDiscardBill abandons the in-progress bill
func (s *Server) handleDiscardBill(w http.ResponseWriter, r *http.Request) {
	s.session.Discard()
	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleAddParticipant adds a participant to the bill
func (s *Server) handleAddParticipant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	p, err := s.session.AddParticipant(req.Name)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// handleRemoveParticipant removes a participant; their items revert to
// unassigned
func (s *Server) handleRemoveParticipant(w http.ResponseWriter, r *http.Request) {
	if err := s.session.RemoveParticipant(r.PathValue("id")); err != nil {
		writeSessionError(w, err)
		return
	}
	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}

type itemRequest struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// handleAddItem appends an item to the bill
func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	item, err := s.session.AddItem(req.Name, req.Quantity, req.Price)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// handleUpdateItem replaces an item's fields
func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	item, err := s.session.UpdateItem(r.PathValue("id"), req.Name, req.Quantity, req.Price)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// handleRemoveItem deletes an item and its assignment
func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	if err := s.session.RemoveItem(r.PathValue("id")); err != nil {
		writeSessionError(w, err)
		return
	}
	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleAssignItem assigns an item to a participant; an empty participant_id
// reverts it to unassigned
func (s *Server) handleAssignItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ParticipantID string `json:"participant_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.session.AssignItem(r.PathValue("id"), req.ParticipantID); err != nil {
		writeSessionError(w, err)
		return
	}
	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleSetCharges updates tax and service fee amounts
func (s *Server) handleSetCharges(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TaxAmount        *float64 `json:"tax_amount"`
		ServiceFeeAmount *float64 `json:"service_fee_amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	b, err := s.session.SetCharges(req.TaxAmount, req.ServiceFeeAmount)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// handleDefaultServiceFee applies the standard percentage service fee
func (s *Server) handleDefaultServiceFee(w http.ResponseWriter, r *http.Request) {
	b, err := s.session.ApplyDefaultServiceFee()
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// handleSummary validates the gates and returns the computed shares plus the
// shareable text
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	b, shares, err := s.session.Summary()
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"bill":       b,
		"shares":     shares,
		"share_text": FormatSummary(b, shares),
	})
}

// handleSaveBill freezes the shares into history and resets the session
func (s *Server) handleSaveBill(w http.ResponseWriter, r *http.Request) {
	stored, err := s.session.Save()
	if err != nil {
		writeSessionError(w, err)
		return
	}
	billsSavedTotal.Inc()
	writeJSON(w, http.StatusCreated, stored)
}

// handleListHistory returns all stored bills, newest first
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.History())
}

// handleViewStored returns a stored bill with its frozen shares
func (s *Server) handleViewStored(w http.ResponseWriter, r *http.Request) {
	stored, err := s.session.ViewStored(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Bill not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"bill":       stored,
		"share_text": FormatSummary(&stored.Bill, stored.CalculatedShares),
	})
}

// handleStoredImage returns the receipt image for a stored bill
func (s *Server) handleStoredImage(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.session.StoredImage(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Image not found")
		return
	}
	setCORSHeaders(w)
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteStored removes one bill from history
func (s *Server) handleDeleteStored(w http.ResponseWriter, r *http.Request) {
	if err := s.session.DeleteStored(r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, "Bill not found")
		return
	}
	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleClearHistory removes every stored bill and resets the session
func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.session.ClearHistory(); err != nil {
		slog.Error("Error clearing history", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}

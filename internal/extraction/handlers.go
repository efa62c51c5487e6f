package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/zombor/arabic-ocr/internal/scanning"
)

const (
	msgNoFile       = "لم يتم اختيار أي ملف. اختر صورة للرفع."
	msgBadForm      = "تعذر قراءة النموذج المرسل."
	msgUnreadable   = "تعذر قراءة الصورة. الصيغ المدعومة: JPEG وPNG وGIF وWebP وBMP وTIFF وHEIC وPDF."
	msgReadFailed   = "حدث خطأ أثناء قراءة الملف. حاول مرة أخرى."
	msgInternal     = "حدث خطأ أثناء المعالجة، تأكد من اتصالك بالإنترنت."
	msgFileTooLarge = "حجم الملف كبير جداً. الحد الأقصى %d ميغابايت."
)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// jsonError writes a JSON {"error": message} response with CORS headers set
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// ErrorMessage returns the Arabic message shown to users for an error
// returned by Service.Extract. Causes are never included.
func ErrorMessage(err error) string {
	var (
		decodeErr *scanning.DecodeError
		ioErr     *scanning.IOError
	)
	switch {
	case errors.As(err, &decodeErr):
		return msgUnreadable
	case errors.As(err, &ioErr):
		return msgReadFailed
	case errors.Is(err, scanning.ErrExtractionFailed):
		return scanning.ErrExtractionFailed.Error()
	default:
		return msgInternal
	}
}

func errorStatus(err error) int {
	var decodeErr *scanning.DecodeError
	switch {
	case errors.As(err, &decodeErr):
		return http.StatusBadRequest
	case errors.Is(err, scanning.ErrExtractionFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleExtract streams the "file" part of a multipart upload into the
// service and returns the extracted text. The upload is never buffered to disk.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	mr, err := r.MultipartReader()
	if err != nil {
		slog.Error("Error reading multipart form", "error", err)
		jsonError(w, msgBadForm, http.StatusBadRequest)
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			jsonError(w, msgNoFile, http.StatusBadRequest)
			return
		}
		if err != nil {
			slog.Error("Error parsing multipart form", "error", err)
			if isTooLarge(err) {
				jsonError(w, fmt.Sprintf(msgFileTooLarge, s.maxUploadBytes>>20), http.StatusRequestEntityTooLarge)
				return
			}
			jsonError(w, msgBadForm, http.StatusBadRequest)
			return
		}
		if part.FormName() != "file" || part.FileName() == "" {
			part.Close()
			continue
		}

		s.extractPart(w, r, part)
		part.Close()
		return
	}
}

func (s *Server) extractPart(w http.ResponseWriter, r *http.Request, part *multipart.Part) {
	extraction, err := s.service.Extract(r.Context(), part.FileName(), part)
	if err != nil {
		if isTooLarge(err) {
			jsonError(w, fmt.Sprintf(msgFileTooLarge, s.maxUploadBytes>>20), http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, ErrorMessage(err), errorStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(extraction); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func isTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge)
}

// handleListExtractions returns all recorded extractions
func (s *Server) handleListExtractions(w http.ResponseWriter, r *http.Request) {
	extractions, err := s.service.ListExtractions()
	if err != nil {
		if errors.Is(err, ErrHistoryDisabled) {
			corsError(w, "Extraction history is disabled", http.StatusNotFound)
			return
		}
		slog.Error("Error listing extractions", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(extractions); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleGetExtraction returns a single recorded extraction
func (s *Server) handleGetExtraction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Extraction ID required", http.StatusBadRequest)
		return
	}
	extraction, err := s.service.GetExtraction(id)
	if err != nil {
		switch {
		case errors.Is(err, ErrHistoryDisabled):
			corsError(w, "Extraction history is disabled", http.StatusNotFound)
		case errors.Is(err, ErrNotFound):
			corsError(w, "Extraction not found", http.StatusNotFound)
		default:
			slog.Error("Error getting extraction", "id", id, "error", err)
			corsError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(extraction); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleDeleteExtraction deletes a recorded extraction
func (s *Server) handleDeleteExtraction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Extraction ID required", http.StatusBadRequest)
		return
	}
	if err := s.service.DeleteExtraction(id); err != nil {
		switch {
		case errors.Is(err, ErrHistoryDisabled):
			corsError(w, "Extraction history is disabled", http.StatusNotFound)
		case errors.Is(err, ErrNotFound):
			corsError(w, "Extraction not found", http.StatusNotFound)
		default:
			slog.Error("Error deleting extraction", "id", id, "error", err)
			corsError(w, "Error deleting extraction", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleStaticCSS serves the CSS file
func (s *Server) handleStaticCSS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/css")
	w.Write(appCSS)
}

// handleStaticJS serves the JavaScript file
func (s *Server) handleStaticJS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Write(appJS)
}

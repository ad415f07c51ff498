package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/angeloszaimis/endpoint-gateway/internal/apierror"
)

type statusRecorder struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
	err         error
	attrs       []slog.Attr
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.statusCode = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// annotate attaches attributes to the request's log line. It is a no-op
// outside Wrap.
func annotate(w http.ResponseWriter, attrs ...slog.Attr) {
	if rec, ok := w.(*statusRecorder); ok {
		rec.attrs = append(rec.attrs, attrs...)
	}
}

func noteError(w http.ResponseWriter, err error) {
	if rec, ok := w.(*statusRecorder); ok {
		rec.err = err
	}
}

// Wrap recovers panics in next, counts the response and emits the single
// log line of the request.
func (h *Handler) Wrap(fn string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}

				rec.err = fmt.Errorf("panic: %v", p)
				rec.attrs = append(rec.attrs, slog.String("stack", string(debug.Stack())))
				if !rec.wroteHeader {
					apierror.ErrInternalServer.WriteJSON(rec)
				} else {
					rec.statusCode = http.StatusInternalServerError
				}
			}

			if reg, err := h.state.Metrics(); err == nil {
				reg.RecordHandled(fn, rec.statusCode)
			}

			h.logRequest(r, fn, rec, time.Since(start))
		}()

		next(rec, r)
	})
}

func (h *Handler) logRequest(r *http.Request, fn string, rec *statusRecorder, d time.Duration) {
	attrs := []slog.Attr{
		slog.String("fn", fn),
		slog.String("method", r.Method),
	}
	if fn == FnNotFound || fn == FnPassthrough {
		attrs = append(attrs, slog.String("path", r.URL.RequestURI()))
	}
	attrs = append(attrs,
		slog.Int("status", rec.statusCode),
		slog.Duration("duration", d))
	attrs = append(attrs, rec.attrs...)

	level := slog.LevelInfo
	if rec.err != nil {
		attrs = append(attrs, slog.Any("err", rec.err))
		level = slog.LevelWarn
		if rec.statusCode == http.StatusInternalServerError {
			level = slog.LevelError
		}
	}

	h.logger.LogAttrs(r.Context(), level, "request handled", attrs...)
}

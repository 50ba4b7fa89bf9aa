// Package httputil provides HTTP handler utilities for consistent error
// handling, JSON encoding and request parsing.
//
// Response helpers:
//
//	httputil.WriteSuccess(w, report)
//	httputil.WriteBadRequest(w, "invalid date")
//	httputil.WriteInternalError(w, err)
//
// Date ranges:
//
//	from, to, ok := httputil.ParseDateRangeOrError(w, r)
//	if !ok {
//		return // 400 already written
//	}
//
// Middleware:
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.LoggingMiddleware,
//		httputil.RecoveryMiddleware,
//		httputil.TimeoutMiddleware(45*time.Second),
//	)(router)
package httputil

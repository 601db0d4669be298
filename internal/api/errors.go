package api

import "fmt"

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.Code, e.Body)
	}
	return fmt.Sprintf("%s: backend returned %d", e.Op, e.Code)
}

// AppError is returned when a 2xx response carries success:false.
type AppError struct {
	Op      string
	Message string
}

func (e *AppError) Error() string {
	if e.Message == "" {
		return e.Op + ": request rejected"
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}
